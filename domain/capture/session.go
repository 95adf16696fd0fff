package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle position of a Session.
type Status int

const (
	StatusUnacquired Status = iota
	StatusActive
	StatusReleased
)

func (s Status) String() string {
	switch s {
	case StatusUnacquired:
		return "unacquired"
	case StatusActive:
		return "active"
	case StatusReleased:
		return "released"
	default:
		return "unknown"
	}
}

const (
	releaseWait   = 2 * time.Second
	readErrorWait = 5 * time.Millisecond
)

// Session owns one exclusive stream from a Device. A pump goroutine copies
// frames from the stream into an atomically swapped snapshot so readers
// never block. Use NewSession to construct an instance; a Session is single
// use: once released it cannot be acquired again.
type Session struct {
	id     string
	device Device
	logger *slog.Logger

	mu        sync.Mutex
	status    Status
	acquiring bool
	stream    Stream
	cancel    context.CancelFunc
	pumpDone  chan struct{}

	ready     chan struct{}
	readyOnce sync.Once
	ended     chan struct{}

	latest     atomic.Pointer[FrameSnapshot]
	sequence   atomic.Uint64
	frames     atomic.Uint64
	readErrors atomic.Uint64
	acquiredAt atomic.Int64
}

// NewSession returns an unacquired session bound to device.
func NewSession(device Device, logger *slog.Logger) *Session {
	return &Session{
		id:     uuid.NewString(),
		device: device,
		logger: logger,
		ready:  make(chan struct{}),
		ended:  make(chan struct{}),
	}
}

func (s *Session) ID() string { return s.id }

func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Ready is closed once the first frame has been captured.
func (s *Session) Ready() <-chan struct{} { return s.ready }

// Ended is closed when the frame pump stops, either because the session
// was released or because the stream ended on its own.
func (s *Session) Ended() <-chan struct{} { return s.ended }

// Acquire opens the device with hint and starts the frame pump. It fails
// with ErrSessionUsed if the session was acquired before and with
// ErrSessionReleased if Release ran while the device was opening; in that
// case the late stream is stopped before returning.
func (s *Session) Acquire(ctx context.Context, hint Hint) error {
	s.mu.Lock()
	if s.status == StatusReleased {
		s.mu.Unlock()
		return ErrSessionReleased
	}
	if s.status != StatusUnacquired || s.acquiring {
		s.mu.Unlock()
		return ErrSessionUsed
	}
	s.acquiring = true
	s.mu.Unlock()

	stream, err := s.device.Open(ctx, hint)
	if err == nil && stream == nil {
		err = fmt.Errorf("%s returned no stream", s.device.Name())
	}

	s.mu.Lock()
	s.acquiring = false
	if err != nil {
		s.mu.Unlock()
		return fmt.Errorf("capture: acquire %s: %w", s.device.Name(), classifyOpenError(err))
	}
	if s.status == StatusReleased {
		s.mu.Unlock()
		if stopErr := stopTracks(stream); stopErr != nil && s.logger != nil {
			s.logger.Warn("capture.late stream stop", "session", s.id, "error", stopErr)
		}
		return ErrSessionReleased
	}
	pumpCtx, cancel := context.WithCancel(context.Background())
	s.stream = stream
	s.cancel = cancel
	s.pumpDone = make(chan struct{})
	s.status = StatusActive
	s.acquiredAt.Store(time.Now().UnixNano())
	done := s.pumpDone
	s.mu.Unlock()

	if s.logger != nil {
		s.logger.Debug("capture.acquired",
			"session", s.id,
			"device", s.device.Name(),
			"tracks", len(stream.Tracks()),
			"facing", hint.Facing.String(),
			"width", hint.Width,
			"height", hint.Height,
		)
	}
	go s.pump(pumpCtx, stream, done)
	return nil
}

// CurrentFrame returns the freshest snapshot. ok is false until the first
// frame has been captured.
func (s *Session) CurrentFrame() (FrameSnapshot, bool) {
	snap := s.latest.Load()
	if snap == nil {
		return FrameSnapshot{}, false
	}
	return *snap, true
}

// Release stops every track of the stream and marks the session released.
// It is safe to call concurrently and more than once; only the first call
// does any work. It waits a bounded time for the pump goroutine to exit.
func (s *Session) Release() error {
	s.mu.Lock()
	if s.status == StatusReleased {
		s.mu.Unlock()
		return nil
	}
	prev := s.status
	s.status = StatusReleased
	stream, cancel, done := s.stream, s.cancel, s.pumpDone
	s.stream, s.cancel = nil, nil
	s.mu.Unlock()

	if prev != StatusActive {
		return nil
	}
	cancel()
	err := stopTracks(stream)

	select {
	case <-done:
	case <-time.After(releaseWait):
		if s.logger != nil {
			s.logger.Warn("capture.pump did not exit", "session", s.id, "wait", releaseWait)
		}
	}
	if s.logger != nil {
		st := s.Stats()
		s.logger.Debug("capture.released",
			"session", s.id,
			"frames", st.Frames,
			"read_errors", st.ReadErrors,
			"active_for", st.ActiveFor,
		)
	}
	return err
}

func (s *Session) pump(ctx context.Context, stream Stream, done chan struct{}) {
	defer close(s.ended)
	defer close(done)
	for {
		img, err := stream.ReadFrame(ctx)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			if errors.Is(err, ErrStreamEnded) {
				if s.logger != nil {
					s.logger.Info("capture.stream ended", "session", s.id)
				}
				return
			}
			s.readErrors.Add(1)
		}
		if err != nil || img == nil {
			select {
			case <-ctx.Done():
				return
			case <-time.After(readErrorWait):
			}
			continue
		}
		seq := s.sequence.Add(1)
		s.latest.Store(&FrameSnapshot{Image: img, CapturedAt: time.Now(), Sequence: seq})
		s.frames.Add(1)
		s.readyOnce.Do(func() { close(s.ready) })
	}
}

// stopTracks stops every track even when some fail and joins the errors.
func stopTracks(stream Stream) error {
	if stream == nil {
		return nil
	}
	var errs []error
	for _, t := range stream.Tracks() {
		if err := t.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop track %s: %w", t.ID(), err))
		}
	}
	return errors.Join(errs...)
}

var _ FrameSource = (*Session)(nil)
