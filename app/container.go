package app

import (
	"fmt"
	"log/slog"

	"github.com/soocke/barcode-scanner-go/config"
	"github.com/soocke/barcode-scanner-go/domain/capture"
	"github.com/soocke/barcode-scanner-go/domain/recognition"
	"github.com/soocke/barcode-scanner-go/domain/scanner"
)

// AppContainer assembles the capture device and recognition capabilities
// described by the configuration.
type AppContainer struct {
	Config *config.Config
	Logger *slog.Logger
	Device capture.Device
	Live   recognition.Capability
	Still  recognition.Capability
}

// BuildContainer constructs all components. Devices are not opened here.
func BuildContainer(cfg *config.Config, logger *slog.Logger) (*AppContainer, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	_ = cfg.Validate()
	// nil keeps every format; an explicit empty list disables recognition.
	var formats []recognition.Format
	if cfg.Formats != nil {
		var err error
		if formats, err = recognition.ParseFormats(cfg.Formats); err != nil {
			return nil, fmt.Errorf("app: formats: %w", err)
		}
	}
	opts := recognition.Options{
		Formats:      formats,
		TryHarder:    cfg.TryHarder,
		MaxDimension: cfg.MaxDimension,
		Logger:       logger,
	}
	still := recognition.NewStatic(opts)
	opts.ScanWindow = cfg.ScanWindow
	c := &AppContainer{
		Config: cfg,
		Logger: logger,
		Live:   recognition.NewContinuous(opts),
		Still:  still,
	}
	switch cfg.Source {
	case config.SourceScreen:
		c.Device = capture.NewScreenDevice(cfg.Selection(), cfg.ScreenFPS, logger)
	default:
		c.Device = capture.NewCameraDevice(logger)
	}
	if logger != nil {
		logger.Info("app.container", "device", c.Device.Name(), "formats", formatNames(still.Formats()), "scan_window", cfg.ScanWindow)
	}
	return c, nil
}

func formatNames(fs []recognition.Format) []string {
	out := make([]string, len(fs))
	for i, f := range fs {
		out[i] = f.String()
	}
	return out
}

// Hint translates the configured capture preferences.
func (c *AppContainer) Hint() capture.Hint {
	return capture.Hint{
		Facing: capture.ParseFacing(c.Config.Facing),
		Width:  c.Config.Width,
		Height: c.Config.Height,
	}
}

// NewController returns a scanner bound to the container's device and
// capabilities.
func (c *AppContainer) NewController(cb scanner.Callbacks) *scanner.Controller {
	return scanner.NewController(c.Logger, c.Device, c.Live, c.Still, scanner.Options{
		Hint:           c.Hint(),
		DetectInterval: c.Config.DetectInterval(),
		AcquireTimeout: c.Config.AcquireTimeout(),
	}, cb)
}
