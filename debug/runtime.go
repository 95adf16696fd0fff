package debug

// Periodic runtime logger, started only when config.Debug is true. Emits
// goroutine count, stack and heap usage plus process RSS so long scanning
// sessions can be checked for leaked pumps or frame buffers.

import (
	"context"
	"log/slog"
	"runtime"
	"runtime/metrics"
	"time"
)

// StartRuntimeLogger logs runtime stats every interval until ctx is done.
// The returned channel is closed once the logger goroutine has exited.
func StartRuntimeLogger(ctx context.Context, interval time.Duration, logger *slog.Logger) <-chan struct{} {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		t := time.NewTicker(interval)
		defer t.Stop()
		var rssErrLogged bool
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
			}
			rssErrLogged = logRuntime(logger, rssErrLogged)
		}
	}()
	return done
}

func logRuntime(logger *slog.Logger, rssErrLogged bool) bool {
	samples := []metrics.Sample{{Name: "/sched/goroutines:goroutines"}}
	metrics.Read(samples)
	var goroutines uint64
	if samples[0].Value.Kind() == metrics.KindUint64 {
		goroutines = samples[0].Value.Uint64()
	}
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	rss, err := processRSS()
	if err != nil && !rssErrLogged {
		logger.Warn("runtime: rss query failed", slog.String("err", err.Error()))
		rssErrLogged = true
	}
	logger.Info("runtime",
		slog.Uint64("goroutines", goroutines),
		slog.Uint64("stack_inuse", ms.StackInuse),
		slog.Uint64("heap_alloc", ms.HeapAlloc),
		slog.Uint64("heap_inuse", ms.HeapInuse),
		slog.Uint64("heap_sys", ms.HeapSys),
		slog.Uint64("next_gc", ms.NextGC),
		slog.Uint64("num_gc", uint64(ms.NumGC)),
		slog.Uint64("rss", rss),
	)
	return rssErrLogged
}
