package scanner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/soocke/barcode-scanner-go/domain/capture"
	"github.com/soocke/barcode-scanner-go/domain/recognition"
)

// Controller is the scanner state machine. Each accepted Start begins an
// episode identified by a counter; Stop and every terminal outcome bump or
// check that counter under the lock, so at most one result or error is
// emitted per episode and nothing from a stale episode reaches the caller.
// The capture session is always released before an outcome is emitted.
type Controller struct {
	logger *slog.Logger
	device capture.Device
	live   recognition.Capability
	still  recognition.Capability
	opts   Options
	cb     Callbacks
	disp   *dispatcher

	mu        sync.Mutex
	state     State
	episode   uint64
	session   *capture.Session
	cancel    context.CancelFunc
	runDone   chan struct{}
	lastErr   *ScanError
	upload    UploadState
	listeners []StateListener
	shutdown  bool

	runs sync.WaitGroup
}

// stopWait bounds how long Stop waits for an episode goroutine stuck in a
// device call that ignores cancellation.
const stopWait = 3 * time.Second

// NewController wires a device and two capabilities: live is polled against
// camera frames, still decodes uploads. A nil capability is treated as
// recognition.Unavailable.
func NewController(logger *slog.Logger, device capture.Device, live, still recognition.Capability, opts Options, cb Callbacks) *Controller {
	if live == nil {
		live = recognition.Unavailable()
	}
	if still == nil {
		still = recognition.Unavailable()
	}
	return &Controller{
		logger: logger,
		device: device,
		live:   live,
		still:  still,
		opts:   opts.withDefaults(),
		cb:     cb,
		disp:   newDispatcher(logger),
	}
}

// AddListener registers l for camera state transitions. Listeners run on
// the dispatch goroutine in transition order.
func (c *Controller) AddListener(l StateListener) {
	if l == nil {
		return
	}
	c.mu.Lock()
	c.listeners = append(c.listeners, l)
	c.mu.Unlock()
}

func (c *Controller) Current() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// LastError returns the error of the latest episode that ended in
// StateError, or nil.
func (c *Controller) LastError() *ScanError {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lastErr
}

func (c *Controller) UploadState() UploadState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.upload
}

// Start begins a live scanning episode. It returns once the acquisition
// request is issued; progress arrives through listeners and the outcome
// through Callbacks. Cancelling ctx ends the episode like Stop.
func (c *Controller) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.shutdown {
		return ErrClosed
	}
	if !c.state.canStart() {
		return ErrAlreadyActive
	}
	c.episode++
	ep := c.episode
	c.lastErr = nil

	if !c.live.Available() {
		c.failLocked(ep, newScanError(KindCapabilityUnavailable, msgLiveUnsupported, recognition.ErrUnavailable))
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	session := capture.NewSession(c.device, c.logger)
	done := make(chan struct{})
	c.session = session
	c.cancel = cancel
	c.runDone = done
	c.setStateLocked(StateRequestingPermission)
	if c.logger != nil {
		c.logger.Info("scanner.start", "episode", ep, "session", session.ID(), "device", c.device.Name())
	}
	c.runs.Add(1)
	go c.run(runCtx, ep, session, done)
	return nil
}

// Stop cancels the running episode, releases its session and moves to
// StateClosed once the episode's goroutine has exited. It is idempotent and
// valid from any state.
func (c *Controller) Stop() {
	c.mu.Lock()
	c.episode++
	ep := c.episode
	session, cancel, done := c.session, c.cancel, c.runDone
	c.session, c.cancel, c.runDone = nil, nil, nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	c.release(session)
	if done != nil {
		select {
		case <-done:
		case <-time.After(stopWait):
			if c.logger != nil {
				c.logger.Warn("scanner.stop: episode still running", "wait", stopWait)
			}
		}
	}

	c.mu.Lock()
	if c.episode == ep {
		c.setStateLocked(StateClosed)
	}
	c.mu.Unlock()
}

// Shutdown stops the controller, waits for background goroutines and
// drains pending callbacks. Later calls to Start fail with ErrClosed.
// Calling Shutdown from a callback blocks until ctx is done.
func (c *Controller) Shutdown(ctx context.Context) error {
	c.mu.Lock()
	c.shutdown = true
	c.mu.Unlock()
	c.Stop()

	done := make(chan struct{})
	go func() {
		c.runs.Wait()
		c.disp.close()
		<-c.disp.done
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// run owns one episode: acquire, wait for the first frame, then poll.
func (c *Controller) run(ctx context.Context, ep uint64, session *capture.Session, done chan struct{}) {
	defer c.runs.Done()
	defer close(done)
	defer func() {
		if r := recover(); r != nil {
			if c.logger != nil {
				c.logger.Error("scanner.run panic", "episode", ep, "error", r, "stack", string(debug.Stack()))
			}
			c.fail(ep, session, newScanError(KindUnknown, msgCameraFailed, fmt.Errorf("panic: %v", r)))
		}
	}()

	started := time.Now()
	acqCtx, cancelWatchdog := ctx, context.CancelFunc(func() {})
	if c.opts.AcquireTimeout > 0 {
		acqCtx, cancelWatchdog = context.WithTimeout(ctx, c.opts.AcquireTimeout)
	}
	defer cancelWatchdog()

	if err := session.Acquire(acqCtx, c.opts.Hint); err != nil {
		if ctx.Err() != nil || errors.Is(err, capture.ErrSessionReleased) {
			c.abandon(ep, session)
			return
		}
		c.fail(ep, session, classifyAcquire(err))
		return
	}
	if !c.advance(ep, StateRequestingPermission, StateStreaming) {
		c.release(session)
		return
	}

	select {
	case <-session.Ready():
	case <-session.Ended():
		c.fail(ep, session, classifyLoop(capture.ErrStreamEnded))
		return
	case <-acqCtx.Done():
		if ctx.Err() != nil {
			c.abandon(ep, session)
			return
		}
		c.fail(ep, session, classifyAcquire(acqCtx.Err()))
		return
	}
	cancelWatchdog()
	acquireSeconds.Observe(time.Since(started).Seconds())
	if !c.advance(ep, StateStreaming, StateScanning) {
		c.release(session)
		return
	}

	cand, err := detectionLoop(ctx, session, c.live, c.opts.DetectInterval, c.logger)
	switch {
	case err == nil:
		c.detected(ep, session, cand)
	case ctx.Err() != nil:
		c.abandon(ep, session)
	default:
		c.fail(ep, session, classifyLoop(err))
	}
}

// advance moves from one running state to the next if ep is still current.
func (c *Controller) advance(ep uint64, from, to State) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.episode != ep || c.state != from {
		return false
	}
	c.setStateLocked(to)
	return true
}

func (c *Controller) detected(ep uint64, session *capture.Session, cand recognition.Candidate) {
	c.release(session)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.episode != ep {
		return
	}
	c.endEpisodeLocked()
	res := ScanResult{Code: cand.Code, Format: cand.Format, Method: MethodLive, DetectedAt: time.Now()}
	c.setStateLocked(StateDetected)
	recordDetection(res)
	if c.logger != nil {
		c.logger.Info("scanner.detected", "episode", ep, "code", res.Code, "format", res.Format.String())
	}
	c.emitResult(res)
}

func (c *Controller) fail(ep uint64, session *capture.Session, serr *ScanError) {
	c.release(session)

	c.mu.Lock()
	defer c.mu.Unlock()
	c.failLocked(ep, serr)
}

func (c *Controller) failLocked(ep uint64, serr *ScanError) {
	if c.episode != ep {
		return
	}
	c.endEpisodeLocked()
	c.lastErr = serr
	c.setStateLocked(StateError)
	recordError("live", serr)
	if c.logger != nil {
		c.logger.Warn("scanner.error", "episode", ep, "kind", string(serr.Kind), "error", serr.Err)
	}
	c.emitError(serr)
}

// abandon handles an episode whose context was cancelled by the caller.
// After Stop it only makes sure the session is released.
func (c *Controller) abandon(ep uint64, session *capture.Session) {
	c.release(session)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.episode != ep {
		return
	}
	c.endEpisodeLocked()
	c.setStateLocked(StateClosed)
}

// endEpisodeLocked invalidates the current episode.
func (c *Controller) endEpisodeLocked() {
	c.episode++
	if c.cancel != nil {
		c.cancel()
	}
	c.session, c.cancel, c.runDone = nil, nil, nil
}

func (c *Controller) release(session *capture.Session) {
	if session == nil {
		return
	}
	if err := session.Release(); err != nil && c.logger != nil {
		c.logger.Warn("scanner.release", "session", session.ID(), "error", err)
	}
}

func (c *Controller) setStateLocked(next State) {
	prev := c.state
	if prev == next {
		return
	}
	c.state = next
	stateTransitions.WithLabelValues(next.String()).Inc()
	if c.logger != nil {
		c.logger.Debug("scanner.state", "from", prev.String(), "to", next.String())
	}
	if len(c.listeners) == 0 {
		return
	}
	ls := append([]StateListener(nil), c.listeners...)
	c.disp.post(func() {
		for _, l := range ls {
			l(prev, next)
		}
	})
}

func (c *Controller) emitResult(r ScanResult) {
	if c.cb.Result != nil {
		fn := c.cb.Result
		c.disp.post(func() { fn(r) })
	}
}

func (c *Controller) emitError(e *ScanError) {
	if c.cb.Error != nil {
		fn := c.cb.Error
		c.disp.post(func() { fn(e) })
	}
}
