package scanner

import (
	"log/slog"
	"runtime/debug"
	"sync"
)

// dispatcher runs callbacks in post order on a single goroutine. Posting
// never blocks, so it is safe while holding the controller lock.
type dispatcher struct {
	logger *slog.Logger

	mu     sync.Mutex
	queue  []func()
	closed bool
	wake   chan struct{}
	done   chan struct{}
}

func newDispatcher(logger *slog.Logger) *dispatcher {
	d := &dispatcher{logger: logger, wake: make(chan struct{}, 1), done: make(chan struct{})}
	go d.loop()
	return d
}

// post queues fn. It reports false once the dispatcher is closed.
func (d *dispatcher) post(fn func()) bool {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return false
	}
	d.queue = append(d.queue, fn)
	d.mu.Unlock()
	d.signal()
	return true
}

// close stops accepting work; queued callbacks still run.
func (d *dispatcher) close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.signal()
}

func (d *dispatcher) signal() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

func (d *dispatcher) loop() {
	defer close(d.done)
	for {
		d.mu.Lock()
		for len(d.queue) == 0 {
			if d.closed {
				d.mu.Unlock()
				return
			}
			d.mu.Unlock()
			<-d.wake
			d.mu.Lock()
		}
		batch := d.queue
		d.queue = nil
		d.mu.Unlock()
		for _, fn := range batch {
			d.run(fn)
		}
	}
}

func (d *dispatcher) run(fn func()) {
	defer func() {
		if r := recover(); r != nil && d.logger != nil {
			d.logger.Error("scanner.callback panic", "error", r, "stack", string(debug.Stack()))
		}
	}()
	fn()
}
