package scanner

import (
	"context"
	"errors"
	"image"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soocke/barcode-scanner-go/domain/capture"
	"github.com/soocke/barcode-scanner-go/domain/recognition"
)

// stillSource serves a fixed frame sequence number until bumped.
type stillSource struct {
	seq   atomic.Uint64
	ended chan struct{}
}

func newStillSource() *stillSource { return &stillSource{ended: make(chan struct{})} }

func (s *stillSource) CurrentFrame() (capture.FrameSnapshot, bool) {
	n := s.seq.Load()
	if n == 0 {
		return capture.FrameSnapshot{}, false
	}
	return capture.FrameSnapshot{Image: image.NewGray(image.Rect(0, 0, 4, 4)), Sequence: n}, true
}

func (s *stillSource) Ended() <-chan struct{} { return s.ended }

func TestDetectionLoop_SkipsSeenFrames(t *testing.T) {
	src := newStillSource()
	live := &scriptedCapability{}
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() {
		_, err := detectionLoop(ctx, src, live, time.Millisecond, discardLogger)
		errCh <- err
	}()

	time.Sleep(10 * time.Millisecond)
	assert.Zero(t, live.Calls(), "no frame yet")
	src.seq.Store(1)
	require.Eventually(t, func() bool { return live.Calls() == 1 }, time.Second, time.Millisecond)
	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, 1, live.Calls(), "same frame is not decoded twice")
	src.seq.Store(2)
	require.Eventually(t, func() bool { return live.Calls() == 2 }, time.Second, time.Millisecond)

	cancel()
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("loop ignored cancellation")
	}
}

func TestDetectionLoop_DiscardsResultAfterCancel(t *testing.T) {
	src := newStillSource()
	src.seq.Store(1)
	ctx, cancel := context.WithCancel(context.Background())
	live := &scriptedCapability{script: func(int) ([]recognition.Candidate, error) {
		cancel()
		return []recognition.Candidate{nutella}, nil
	}}

	_, err := detectionLoop(ctx, src, live, time.Millisecond, discardLogger)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDetectionLoop_FirstCandidateWins(t *testing.T) {
	src := newStillSource()
	src.seq.Store(1)
	second := recognition.Candidate{Code: "96385074", Format: recognition.FormatEAN8}
	live := &scriptedCapability{script: func(int) ([]recognition.Candidate, error) {
		return []recognition.Candidate{nutella, second}, nil
	}}

	got, err := detectionLoop(context.Background(), src, live, time.Millisecond, discardLogger)
	require.NoError(t, err)
	assert.Equal(t, nutella, got)
}

func TestDetectionLoop_EndsWithSource(t *testing.T) {
	src := newStillSource()
	close(src.ended)
	_, err := detectionLoop(context.Background(), src, &scriptedCapability{}, time.Millisecond, discardLogger)
	assert.True(t, errors.Is(err, capture.ErrStreamEnded))
}
