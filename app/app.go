package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/soocke/barcode-scanner-go/assets"
	"github.com/soocke/barcode-scanner-go/domain/scanner"
)

const shutdownWait = 5 * time.Second

// App is the console caller of the scanner: it runs one operation per
// invocation and writes each outcome to out as a JSON line.
type App struct {
	c      *AppContainer
	logger *slog.Logger

	mu  sync.Mutex
	out *json.Encoder
}

func NewApp(c *AppContainer, out io.Writer) *App {
	return &App{c: c, logger: c.Logger, out: json.NewEncoder(out)}
}

// FileResult is the outcome of scanning one image file.
type FileResult struct {
	Path   string              `json:"path"`
	Result *scanner.ScanResult `json:"result,omitempty"`
	Kind   scanner.Kind        `json:"kind,omitempty"`
	Error  string              `json:"error,omitempty"`
}

func (a *App) emit(v any) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.out.Encode(v)
}

func (a *App) shutdown(ctrl *scanner.Controller) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownWait)
	defer cancel()
	if err := ctrl.Shutdown(ctx); err != nil {
		a.logger.Warn("app.shutdown", "error", err)
	}
}

// ScanLive runs one live episode and returns its result. Cancelling ctx
// stops the camera and returns ctx.Err().
func (a *App) ScanLive(ctx context.Context) (scanner.ScanResult, error) {
	type outcome struct {
		res scanner.ScanResult
		err error
	}
	ch := make(chan outcome, 1)
	ctrl := a.c.NewController(scanner.Callbacks{
		Result: func(r scanner.ScanResult) { ch <- outcome{res: r} },
		Error:  func(e *scanner.ScanError) { ch <- outcome{err: e} },
	})
	defer a.shutdown(ctrl)
	ctrl.AddListener(func(prev, next scanner.State) {
		a.logger.Info("scan.state", "from", prev.String(), "to", next.String())
	})

	if err := ctrl.Start(ctx); err != nil {
		return scanner.ScanResult{}, err
	}
	select {
	case o := <-ch:
		if o.err != nil {
			return scanner.ScanResult{}, o.err
		}
		return o.res, a.emit(o.res)
	case <-ctx.Done():
		ctrl.Stop()
		return scanner.ScanResult{}, ctx.Err()
	}
}

// ScanFiles decodes every path with at most workers files in flight.
// Per-file failures are reported in the results; the returned error is
// only set when ctx ends or output cannot be written.
func (a *App) ScanFiles(ctx context.Context, paths []string, workers int) ([]FileResult, error) {
	if workers <= 0 {
		workers = 4
	}
	ctrl := a.c.NewController(scanner.Callbacks{})
	defer a.shutdown(ctrl)

	results := make([]FileResult, len(paths))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, p := range paths {
		g.Go(func() error {
			results[i] = a.scanFile(gctx, ctrl, p)
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return results, err
	}
	for _, r := range results {
		if err := a.emit(r); err != nil {
			return results, err
		}
	}
	return results, nil
}

func (a *App) scanFile(ctx context.Context, ctrl *scanner.Controller, path string) FileResult {
	fr := FileResult{Path: path}
	f, err := os.Open(path)
	if err != nil {
		fr.Kind, fr.Error = scanner.KindUnknown, err.Error()
		return fr
	}
	defer f.Close()
	res, err := ctrl.SubmitImage(ctx, f)
	if err != nil {
		var serr *scanner.ScanError
		if errors.As(err, &serr) {
			fr.Kind, fr.Error = serr.Kind, serr.Message
		} else {
			fr.Kind, fr.Error = scanner.KindUnknown, err.Error()
		}
		a.logger.Debug("app.file failed", "path", path, "error", err)
		return fr
	}
	fr.Result = &res
	return fr
}

// SubmitCode validates a typed code and prints it.
func (a *App) SubmitCode(code string) (scanner.ScanResult, error) {
	ctrl := a.c.NewController(scanner.Callbacks{})
	defer a.shutdown(ctrl)
	res, err := ctrl.SubmitCode(code)
	if err != nil {
		return scanner.ScanResult{}, err
	}
	return res, a.emit(res)
}

// SelfTest decodes the embedded sample barcode through the upload path.
func (a *App) SelfTest(ctx context.Context) error {
	ctrl := a.c.NewController(scanner.Callbacks{})
	defer a.shutdown(ctrl)
	res, err := ctrl.SubmitImage(ctx, bytes.NewReader(assets.SampleBarcodePNG))
	if err != nil {
		return fmt.Errorf("selftest: %w", err)
	}
	if res.Code != assets.SampleBarcodeCode {
		return fmt.Errorf("selftest: decoded %q, want %q", res.Code, assets.SampleBarcodeCode)
	}
	return a.emit(res)
}

// Router exposes Prometheus metrics and a health probe.
func (a *App) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = io.WriteString(w, "ok\n")
	})
	r.Handle("/metrics", promhttp.Handler())
	return r
}

// ServeMetrics serves Router on addr until ctx is done.
func (a *App) ServeMetrics(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: a.Router(), ReadHeaderTimeout: 5 * time.Second}
	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()
	a.logger.Info("app.metrics listening", "addr", addr)
	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		sctx, cancel := context.WithTimeout(context.Background(), shutdownWait)
		defer cancel()
		return srv.Shutdown(sctx)
	}
}
