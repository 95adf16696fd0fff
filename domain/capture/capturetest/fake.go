// Package capturetest provides in-memory capture devices for tests.
package capturetest

import (
	"context"
	"fmt"
	"image"
	"sync"
	"sync/atomic"
	"time"

	"github.com/soocke/barcode-scanner-go/domain/capture"
)

// Track records whether it was stopped. Stopping any track ends its stream.
type Track struct {
	id      string
	stopped atomic.Bool
	stream  *Stream
}

func (t *Track) ID() string { return t.id }

func (t *Track) Stop() error {
	t.stopped.Store(true)
	t.stream.end()
	return nil
}

func (t *Track) Stopped() bool { return t.stopped.Load() }

// Stream produces a frame every FrameDelay until a track is stopped or End
// is called.
type Stream struct {
	tracks   []*Track
	ended    chan struct{}
	once     sync.Once
	delay    time.Duration
	frame    image.Image
	noFrames bool
	nilFrame bool
	reads    atomic.Uint64
}

func (s *Stream) Tracks() []capture.Track {
	out := make([]capture.Track, len(s.tracks))
	for i, t := range s.tracks {
		out[i] = t
	}
	return out
}

func (s *Stream) ReadFrame(ctx context.Context) (image.Image, error) {
	if s.noFrames {
		select {
		case <-s.ended:
			return nil, capture.ErrStreamEnded
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if s.nilFrame {
		select {
		case <-s.ended:
			return nil, capture.ErrStreamEnded
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		s.reads.Add(1)
		return nil, nil
	}
	select {
	case <-s.ended:
		return nil, capture.ErrStreamEnded
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(s.delay):
	}
	s.reads.Add(1)
	return s.frame, nil
}

// Reads reports how many reads returned without the stream ending.
func (s *Stream) Reads() uint64 { return s.reads.Load() }

// End simulates the device going away without anyone stopping the tracks.
func (s *Stream) End() { s.end() }

func (s *Stream) end() { s.once.Do(func() { close(s.ended) }) }

// Released reports whether every track was stopped.
func (s *Stream) Released() bool {
	for _, t := range s.tracks {
		if !t.Stopped() {
			return false
		}
	}
	return true
}

// Device hands out Streams. Zero value: one track, a frame every
// millisecond, Open succeeds immediately.
type Device struct {
	// OpenErr is returned by Open when set.
	OpenErr error
	// Block, when non-nil, makes Open wait until it is closed or ctx ends.
	Block chan struct{}
	// Tracks per stream; 0 means 1.
	Tracks int
	// FrameDelay between frames; 0 means 1ms.
	FrameDelay time.Duration
	// Frame returned by every read; nil means a small gray image.
	Frame image.Image
	// NoFrames makes streams never produce a frame.
	NoFrames bool
	// NilFrames makes every read return immediately with no image and no
	// error.
	NilFrames bool

	mu       sync.Mutex
	opens    int
	lastHint capture.Hint
	streams  []*Stream
}

func (d *Device) Name() string { return "fake" }

func (d *Device) Open(ctx context.Context, hint capture.Hint) (capture.Stream, error) {
	d.mu.Lock()
	d.opens++
	d.lastHint = hint
	block, openErr := d.Block, d.OpenErr
	d.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if openErr != nil {
		return nil, openErr
	}

	s := &Stream{ended: make(chan struct{}), delay: d.FrameDelay, frame: d.Frame, noFrames: d.NoFrames, nilFrame: d.NilFrames}
	if s.delay <= 0 {
		s.delay = time.Millisecond
	}
	if s.frame == nil {
		s.frame = image.NewGray(image.Rect(0, 0, 8, 8))
	}
	n := d.Tracks
	if n <= 0 {
		n = 1
	}
	d.mu.Lock()
	for i := 0; i < n; i++ {
		s.tracks = append(s.tracks, &Track{id: fmt.Sprintf("fake-%d-%d", len(d.streams), i), stream: s})
	}
	d.streams = append(d.streams, s)
	d.mu.Unlock()
	return s, nil
}

// Opens reports how many times Open was called.
func (d *Device) Opens() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.opens
}

// LastHint reports the hint passed to the latest Open.
func (d *Device) LastHint() capture.Hint {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.lastHint
}

// Streams returns every stream handed out so far.
func (d *Device) Streams() []*Stream {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]*Stream(nil), d.streams...)
}

// AllReleased reports whether every stream handed out has all tracks stopped.
func (d *Device) AllReleased() bool {
	for _, s := range d.Streams() {
		if !s.Released() {
			return false
		}
	}
	return true
}

var _ capture.Device = (*Device)(nil)
