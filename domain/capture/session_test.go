package capture_test

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/soocke/barcode-scanner-go/domain/capture"
	"github.com/soocke/barcode-scanner-go/domain/capture/capturetest"
)

var discardLogger = slog.New(slog.DiscardHandler)

func waitReady(t *testing.T, s *capture.Session) {
	t.Helper()
	select {
	case <-s.Ready():
	case <-time.After(time.Second):
		t.Fatal("session never produced a frame")
	}
}

func TestSession_AcquireProducesFrames(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	dev := &capturetest.Device{}
	s := capture.NewSession(dev, discardLogger)
	assert.Equal(t, capture.StatusUnacquired, s.Status())
	_, ok := s.CurrentFrame()
	assert.False(t, ok, "no frame before acquire")

	hint := capture.Hint{Facing: capture.FacingFront, Width: 640, Height: 480}
	require.NoError(t, s.Acquire(context.Background(), hint))
	assert.Equal(t, capture.StatusActive, s.Status())
	assert.Equal(t, hint, dev.LastHint())

	waitReady(t, s)
	first, ok := s.CurrentFrame()
	require.True(t, ok)
	assert.NotNil(t, first.Image)
	assert.NotZero(t, first.Sequence)

	require.Eventually(t, func() bool {
		next, _ := s.CurrentFrame()
		return next.Sequence > first.Sequence
	}, time.Second, time.Millisecond)

	require.NoError(t, s.Release())
	assert.Equal(t, capture.StatusReleased, s.Status())
	assert.True(t, dev.AllReleased())
	assert.NotZero(t, s.Stats().Frames)
}

func TestSession_ReleaseStopsEveryTrack(t *testing.T) {
	dev := &capturetest.Device{Tracks: 3}
	s := capture.NewSession(dev, discardLogger)
	require.NoError(t, s.Acquire(context.Background(), capture.DefaultHint()))
	require.NoError(t, s.Release())

	streams := dev.Streams()
	require.Len(t, streams, 1)
	require.Len(t, streams[0].Tracks(), 3)
	assert.True(t, streams[0].Released())
	select {
	case <-s.Ended():
	default:
		t.Fatal("pump still running after release")
	}
}

func TestSession_ReleaseIdempotentAndConcurrent(t *testing.T) {
	dev := &capturetest.Device{}
	s := capture.NewSession(dev, discardLogger)
	require.NoError(t, s.Acquire(context.Background(), capture.DefaultHint()))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.Release())
		}()
	}
	wg.Wait()
	assert.NoError(t, s.Release())
	assert.Equal(t, capture.StatusReleased, s.Status())
	assert.True(t, dev.AllReleased())
}

func TestSession_ReleaseBeforeAcquire(t *testing.T) {
	dev := &capturetest.Device{}
	s := capture.NewSession(dev, discardLogger)
	require.NoError(t, s.Release())
	assert.Equal(t, capture.StatusReleased, s.Status())
	assert.ErrorIs(t, s.Acquire(context.Background(), capture.DefaultHint()), capture.ErrSessionReleased)
	assert.Zero(t, dev.Opens())
}

func TestSession_AcquireTwice(t *testing.T) {
	dev := &capturetest.Device{}
	s := capture.NewSession(dev, discardLogger)
	require.NoError(t, s.Acquire(context.Background(), capture.DefaultHint()))
	defer s.Release()
	assert.ErrorIs(t, s.Acquire(context.Background(), capture.DefaultHint()), capture.ErrSessionUsed)
	assert.Equal(t, 1, dev.Opens())
}

func TestSession_AcquireFailureIsClassified(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"permission", capture.ErrPermissionDenied, capture.ErrPermissionDenied},
		{"missing", capture.ErrDeviceNotFound, capture.ErrDeviceNotFound},
		{"busy text", errors.New("VIDIOC_STREAMON: device or resource busy"), capture.ErrDeviceBusy},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := &capturetest.Device{OpenErr: tt.err}
			s := capture.NewSession(dev, discardLogger)
			err := s.Acquire(context.Background(), capture.DefaultHint())
			require.ErrorIs(t, err, tt.want)
			assert.Equal(t, capture.StatusUnacquired, s.Status(), "failed acquire never becomes active")
			assert.Empty(t, dev.Streams())
		})
	}
}

func TestSession_ReleaseDuringAcquireStopsLateStream(t *testing.T) {
	block := make(chan struct{})
	dev := &capturetest.Device{Block: block}
	s := capture.NewSession(dev, discardLogger)

	errCh := make(chan error, 1)
	go func() { errCh <- s.Acquire(context.Background(), capture.DefaultHint()) }()
	require.Eventually(t, func() bool { return dev.Opens() == 1 }, time.Second, time.Millisecond)

	require.NoError(t, s.Release())
	close(block)

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, capture.ErrSessionReleased)
	case <-time.After(time.Second):
		t.Fatal("acquire did not return")
	}
	assert.Equal(t, capture.StatusReleased, s.Status())
	assert.True(t, dev.AllReleased(), "stream opened after release must be stopped")
}

func TestSession_StreamEndClosesEnded(t *testing.T) {
	dev := &capturetest.Device{}
	s := capture.NewSession(dev, discardLogger)
	require.NoError(t, s.Acquire(context.Background(), capture.DefaultHint()))
	waitReady(t, s)

	dev.Streams()[0].End()
	select {
	case <-s.Ended():
	case <-time.After(time.Second):
		t.Fatal("ended not closed after stream end")
	}
	require.NoError(t, s.Release())
	assert.True(t, dev.AllReleased())
}

func TestSession_NoFramesNeverReady(t *testing.T) {
	dev := &capturetest.Device{NoFrames: true}
	s := capture.NewSession(dev, discardLogger)
	require.NoError(t, s.Acquire(context.Background(), capture.DefaultHint()))
	select {
	case <-s.Ready():
		t.Fatal("ready without frames")
	case <-time.After(20 * time.Millisecond):
	}
	_, ok := s.CurrentFrame()
	assert.False(t, ok)
	require.NoError(t, s.Release())
}

func TestSession_EmptyReadsAreThrottled(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	dev := &capturetest.Device{NilFrames: true}
	s := capture.NewSession(dev, discardLogger)
	require.NoError(t, s.Acquire(context.Background(), capture.DefaultHint()))
	select {
	case <-s.Ready():
		t.Fatal("ready without frames")
	case <-time.After(50 * time.Millisecond):
	}
	require.NoError(t, s.Release())

	streams := dev.Streams()
	require.Len(t, streams, 1)
	reads := streams[0].Reads()
	assert.NotZero(t, reads)
	assert.Less(t, reads, uint64(40), "empty reads wait between attempts")
	_, ok := s.CurrentFrame()
	assert.False(t, ok)
}
