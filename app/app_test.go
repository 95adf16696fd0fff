package app

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soocke/barcode-scanner-go/assets"
	"github.com/soocke/barcode-scanner-go/config"
	"github.com/soocke/barcode-scanner-go/domain/capture"
	"github.com/soocke/barcode-scanner-go/domain/capture/capturetest"
	"github.com/soocke/barcode-scanner-go/domain/recognition"
	"github.com/soocke/barcode-scanner-go/domain/scanner"
)

var discardLogger = slog.New(slog.DiscardHandler)

func testContainer(t *testing.T, dev capture.Device) *AppContainer {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.DetectIntervalMS = 2
	return &AppContainer{
		Config: cfg,
		Logger: discardLogger,
		Device: dev,
		Live:   recognition.NewContinuous(recognition.Options{}),
		Still:  recognition.NewStatic(recognition.Options{}),
	}
}

func TestBuildContainer(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Source = config.SourceScreen
	cfg.Facing = "front"
	c, err := BuildContainer(cfg, discardLogger)
	require.NoError(t, err)
	assert.Equal(t, "screen", c.Device.Name())
	assert.Equal(t, capture.FacingFront, c.Hint().Facing)
	assert.True(t, c.Live.Available())

	var logs bytes.Buffer
	cfg = config.DefaultConfig()
	cfg.Formats = []string{"qr_code", "ean_13"}
	_, err = BuildContainer(cfg, slog.New(slog.NewJSONHandler(&logs, nil)))
	require.NoError(t, err)
	assert.Contains(t, logs.String(), `"formats":["QR_CODE","EAN_13"]`)

	cfg = config.DefaultConfig()
	cfg.Formats = []string{}
	c, err = BuildContainer(cfg, discardLogger)
	require.NoError(t, err)
	assert.Equal(t, "camera", c.Device.Name())
	assert.False(t, c.Live.Available(), "empty format list disables recognition")

	cfg.Formats = []string{"PDF_417"}
	_, err = BuildContainer(cfg, discardLogger)
	assert.Error(t, err)
}

func TestApp_ScanLiveEndToEnd(t *testing.T) {
	sample, err := assets.SampleBarcodeImage()
	require.NoError(t, err)
	dev := &capturetest.Device{Frame: sample, FrameDelay: 5 * time.Millisecond}
	var out bytes.Buffer
	a := NewApp(testContainer(t, dev), &out)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	res, err := a.ScanLive(ctx)
	require.NoError(t, err)
	assert.Equal(t, assets.SampleBarcodeCode, res.Code)
	assert.Equal(t, recognition.FormatEAN13, res.Format)
	assert.Equal(t, scanner.MethodLive, res.Method)
	assert.True(t, dev.AllReleased())

	var printed map[string]any
	require.NoError(t, json.Unmarshal(out.Bytes(), &printed))
	assert.Equal(t, "EAN_13", printed["format"])
	assert.Equal(t, "live", printed["method"])
}

func TestApp_ScanLivePermissionDenied(t *testing.T) {
	dev := &capturetest.Device{OpenErr: capture.ErrPermissionDenied}
	a := NewApp(testContainer(t, dev), &bytes.Buffer{})

	_, err := a.ScanLive(context.Background())
	var serr *scanner.ScanError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, scanner.KindPermissionDenied, serr.Kind)
}

func TestApp_ScanLiveCancelled(t *testing.T) {
	dev := &capturetest.Device{}
	a := NewApp(testContainer(t, dev), &bytes.Buffer{})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := a.ScanLive(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.True(t, dev.AllReleased())
}

func TestApp_ScanFiles(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.png")
	bad := filepath.Join(dir, "bad.jpg")
	require.NoError(t, os.WriteFile(good, assets.SampleBarcodePNG, 0o644))
	require.NoError(t, os.WriteFile(bad, []byte("garbage"), 0o644))
	missing := filepath.Join(dir, "missing.png")

	var out bytes.Buffer
	a := NewApp(testContainer(t, &capturetest.Device{}), &out)
	results, err := a.ScanFiles(context.Background(), []string{good, bad, missing}, 2)
	require.NoError(t, err)
	require.Len(t, results, 3)

	require.NotNil(t, results[0].Result)
	assert.Equal(t, assets.SampleBarcodeCode, results[0].Result.Code)
	assert.Equal(t, scanner.MethodUploaded, results[0].Result.Method)
	assert.Nil(t, results[1].Result)
	assert.Equal(t, scanner.KindDecodeFailed, results[1].Kind)
	assert.Equal(t, scanner.KindUnknown, results[2].Kind)
	assert.Equal(t, 3, strings.Count(out.String(), "\n"), "one JSON line per file")
}

func TestApp_SubmitCodeAndSelfTest(t *testing.T) {
	var out bytes.Buffer
	a := NewApp(testContainer(t, &capturetest.Device{}), &out)

	res, err := a.SubmitCode("96385074")
	require.NoError(t, err)
	assert.Equal(t, recognition.FormatEAN8, res.Format)
	assert.Equal(t, scanner.MethodManual, res.Method)

	_, err = a.SubmitCode("96385075")
	assert.ErrorIs(t, err, &scanner.ScanError{Kind: scanner.KindDecodeFailed})

	require.NoError(t, a.SelfTest(context.Background()))
	assert.Contains(t, out.String(), assets.SampleBarcodeCode)
}

func TestApp_Router(t *testing.T) {
	a := NewApp(testContainer(t, &capturetest.Device{}), &bytes.Buffer{})
	require.NoError(t, a.SelfTest(context.Background()))
	srv := httptest.NewServer(a.Router())
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	var body bytes.Buffer
	_, err = body.ReadFrom(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, body.String(), "barcode_scanner_detections_total")
}
