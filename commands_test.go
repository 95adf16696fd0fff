package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soocke/barcode-scanner-go/assets"
	"github.com/soocke/barcode-scanner-go/config"
)

func runCLI(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out, errOut bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	cfg := filepath.Join(t.TempDir(), "none.json")
	cmd.SetArgs(append([]string{"--config", cfg}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestCLI_SelfTest(t *testing.T) {
	out, err := runCLI(t, "selftest")
	require.NoError(t, err)
	assert.Contains(t, out, `"code":"`+assets.SampleBarcodeCode+`"`)
	assert.Contains(t, out, `"method":"uploaded"`)
}

func TestCLI_Code(t *testing.T) {
	out, err := runCLI(t, "code", "3017620422003")
	require.NoError(t, err)
	assert.Contains(t, out, `"method":"manual"`)

	_, err = runCLI(t, "code", "3017620422009")
	assert.Error(t, err)
}

func TestCLI_Image(t *testing.T) {
	p := filepath.Join(t.TempDir(), "sample.png")
	require.NoError(t, os.WriteFile(p, assets.SampleBarcodePNG, 0o644))
	out, err := runCLI(t, "image", p)
	require.NoError(t, err)
	assert.Contains(t, out, assets.SampleBarcodeCode)

	_, err = runCLI(t, "image")
	assert.Error(t, err, "needs at least one file")
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, "DEBUG", parseLevel("debug").String())
	assert.Equal(t, "WARN", parseLevel("WARNING").String())
	assert.Equal(t, "INFO", parseLevel("nonsense").String())
}

func TestCLI_ConfigWritesEffectiveSettings(t *testing.T) {
	p := filepath.Join(t.TempDir(), "scanner.yaml")
	out, err := runCLI(t, "--log-level", "warn", "--metrics-addr", "127.0.0.1:9464", "config", p)
	require.NoError(t, err)
	assert.Contains(t, out, p)

	cfg, err := config.Load(p)
	require.NoError(t, err)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, "127.0.0.1:9464", cfg.MetricsAddr)
	assert.Equal(t, config.DefaultConfig().Formats, cfg.Formats)
}
