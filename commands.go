package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/soocke/barcode-scanner-go/app"
	"github.com/soocke/barcode-scanner-go/config"
	"github.com/soocke/barcode-scanner-go/debug"
)

// cli carries state shared by the subcommands of one invocation.
type cli struct {
	cfgPath     string
	debug       bool
	logLevel    string
	metricsAddr string

	cfg    *config.Config
	logger *slog.Logger
	app    *app.App
	stop   context.CancelFunc
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "barcode-scanner",
		Short:         "Scan product barcodes from a camera, the screen, image files or typed input",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&c.cfgPath, "config", "scanner.json", "config file (.json, .yaml or .yml)")
	pf.BoolVar(&c.debug, "debug", false, "log runtime stats periodically")
	pf.StringVar(&c.logLevel, "log-level", "", "debug, info, warn or error (overrides config)")
	pf.StringVar(&c.metricsAddr, "metrics-addr", "", "serve /metrics and /healthz on this address")

	root.PersistentPostRun = func(*cobra.Command, []string) {
		if c.stop != nil {
			c.stop()
		}
	}

	root.AddCommand(
		c.cameraCmd(),
		c.screenCmd(),
		c.imageCmd(),
		c.codeCmd(),
		c.selftestCmd(),
		c.configCmd(),
	)
	return root
}

// setup loads the config, applies flag overrides and builds the app. adjust
// runs before validation so subcommands can add their own overrides.
func (c *cli) setup(cmd *cobra.Command, adjust func(*config.Config)) error {
	cfg, err := config.Load(c.cfgPath)
	if err != nil {
		return err
	}
	if c.debug {
		cfg.Debug = true
	}
	if c.logLevel != "" {
		cfg.LogLevel = c.logLevel
	}
	if c.metricsAddr != "" {
		cfg.MetricsAddr = c.metricsAddr
	}
	if adjust != nil {
		adjust(cfg)
	}
	_ = cfg.Validate()
	if cfg.Debug && c.logLevel == "" {
		cfg.LogLevel = "debug"
	}
	c.cfg = cfg
	c.logger = NewLogger(cmd.ErrOrStderr(), parseLevel(cfg.LogLevel))

	container, err := app.BuildContainer(cfg, c.logger)
	if err != nil {
		return err
	}
	c.app = app.NewApp(container, cmd.OutOrStdout())

	bg, stop := context.WithCancel(cmd.Context())
	c.stop = stop
	if cfg.Debug {
		debug.StartRuntimeLogger(bg, 2*time.Second, c.logger)
	}
	if cfg.MetricsAddr != "" {
		go func() {
			if err := c.app.ServeMetrics(bg, cfg.MetricsAddr); err != nil {
				c.logger.Error("metrics server", "error", err)
			}
		}()
	}
	return nil
}

func (c *cli) cameraCmd() *cobra.Command {
	var (
		facing        string
		width, height int
		timeout       time.Duration
	)
	cmd := &cobra.Command{
		Use:   "camera",
		Short: "Scan live from a camera until a barcode is found",
		RunE: func(cmd *cobra.Command, _ []string) error {
			err := c.setup(cmd, func(cfg *config.Config) {
				cfg.Source = config.SourceCamera
				if cmd.Flags().Changed("facing") {
					cfg.Facing = facing
				}
				if width > 0 {
					cfg.Width = width
				}
				if height > 0 {
					cfg.Height = height
				}
			})
			if err != nil {
				return err
			}
			return c.scanLive(cmd.Context(), timeout)
		},
	}
	cmd.Flags().StringVar(&facing, "facing", "rear", "preferred camera: rear or front")
	cmd.Flags().IntVar(&width, "width", 0, "preferred frame width")
	cmd.Flags().IntVar(&height, "height", 0, "preferred frame height")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "give up after this long (0 waits until interrupted)")
	return cmd
}

func (c *cli) screenCmd() *cobra.Command {
	var (
		x, y, w, h int
		fps        float64
		timeout    time.Duration
	)
	cmd := &cobra.Command{
		Use:   "screen",
		Short: "Scan a region of the screen until a barcode is found",
		RunE: func(cmd *cobra.Command, _ []string) error {
			err := c.setup(cmd, func(cfg *config.Config) {
				cfg.Source = config.SourceScreen
				if w > 0 && h > 0 {
					cfg.SelectionX, cfg.SelectionY, cfg.SelectionW, cfg.SelectionH = x, y, w, h
				}
				if fps > 0 {
					cfg.ScreenFPS = fps
				}
			})
			if err != nil {
				return err
			}
			return c.scanLive(cmd.Context(), timeout)
		},
	}
	cmd.Flags().IntVar(&x, "x", 0, "region left")
	cmd.Flags().IntVar(&y, "y", 0, "region top")
	cmd.Flags().IntVar(&w, "w", 0, "region width (0 uses config or a centered region)")
	cmd.Flags().IntVar(&h, "h", 0, "region height")
	cmd.Flags().Float64Var(&fps, "fps", 0, "screen grabs per second")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "give up after this long (0 waits until interrupted)")
	return cmd
}

func (c *cli) scanLive(ctx context.Context, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	_, err := c.app.ScanLive(ctx)
	return err
}

func (c *cli) imageCmd() *cobra.Command {
	var workers int
	cmd := &cobra.Command{
		Use:   "image FILE...",
		Short: "Decode barcodes from image files",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.setup(cmd, nil); err != nil {
				return err
			}
			results, err := c.app.ScanFiles(cmd.Context(), args, workers)
			if err != nil {
				return err
			}
			failed := 0
			for _, r := range results {
				if r.Result == nil {
					failed++
				}
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d images had no readable barcode", failed, len(results))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&workers, "workers", 4, "images decoded in parallel")
	return cmd
}

func (c *cli) codeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "code CODE",
		Short: "Validate a barcode typed by hand",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.setup(cmd, nil); err != nil {
				return err
			}
			_, err := c.app.SubmitCode(args[0])
			return err
		},
	}
}

func (c *cli) selftestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "selftest",
		Short: "Decode the built-in sample barcode",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.setup(cmd, nil); err != nil {
				return err
			}
			return c.app.SelfTest(cmd.Context())
		},
	}
}

func (c *cli) configCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config [PATH]",
		Short: "Write the effective configuration, defaults and overrides applied",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(c.cfgPath)
			if err != nil {
				return err
			}
			if c.debug {
				cfg.Debug = true
			}
			if c.logLevel != "" {
				cfg.LogLevel = c.logLevel
			}
			if c.metricsAddr != "" {
				cfg.MetricsAddr = c.metricsAddr
			}
			path := c.cfgPath
			if len(args) == 1 {
				path = args[0]
			}
			if err := cfg.Save(path); err != nil {
				return fmt.Errorf("config: save %s: %w", path, err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), path)
			return err
		},
	}
}
