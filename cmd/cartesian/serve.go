package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	cartesian "github.com/Trygon117/ProjectCartesian"
)

const shutdownTimeout = 5 * time.Second

func createServeCommand(globalFlags *GlobalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve [config.toml]",
		Short: "Run the monitor and the status panel",
		Long: `Run the host monitor, the status reconciler and the HTTP status API
until SIGINT or SIGTERM.

Examples:
  cartesian serve                   # defaults: pgrep firefox, 127.0.0.1:8700/api
  cartesian serve cartesian.toml`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, configPathFrom(globalFlags, args), cmd.OutOrStdout())
		},
	}
}

// runServe blocks until ctx is done, then deactivates the panel and shuts the
// servers down.
func runServe(ctx context.Context, configPath string, out io.Writer) error {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return err
	}

	logger, closer, err := cfg.Log.NewSlogger()
	if err != nil {
		return fmt.Errorf("setup logger: %w", err)
	}
	defer func() { _ = closer.Close() }()
	slog.SetDefault(logger)

	var metricsSrv *http.Server
	if cfg.Metrics.Enabled {
		if err := cartesian.RegisterMetricsDefault(); err != nil {
			logger.Warn("failed to register metrics", "error", err)
		}
		metricsSrv = cartesian.MetricsServer(cfg.Metrics.Listen)
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("metrics server error", "error", err)
			}
		}()
		logger.Info("metrics server started", "listen", cfg.Metrics.Listen)
	}

	panel, err := cartesian.NewPanel(cfg, cartesian.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("create panel: %w", err)
	}
	if err := panel.Start(ctx); err != nil {
		// the panel keeps serving its error state
		logger.Error("panel activation failed", "error", err)
	}

	var apiSrv *http.Server
	if cfg.Server.Enabled {
		protocol := "HTTP"
		if cfg.Server.TLS.Enabled {
			protocol = "HTTPS"
			apiSrv, err = cartesian.NewTLSServer(cfg.Server, panel)
		} else {
			apiSrv, err = cartesian.NewHTTPServer(cfg.Server.Listen, cfg.Server.BasePath, panel)
		}
		if err != nil {
			panel.Stop()
			return fmt.Errorf("failed to create %s server: %w", protocol, err)
		}
		_, _ = fmt.Fprintf(out, "Starting cartesian %s server on %s%s\n", protocol, cfg.Server.Listen, cfg.Server.BasePath)
	}

	<-ctx.Done()
	_, _ = fmt.Fprintln(out, "Shutting down...")
	panel.Stop()

	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	var errs []error
	for _, srv := range []*http.Server{apiSrv, metricsSrv} {
		if srv != nil {
			errs = append(errs, srv.Shutdown(sctx))
		}
	}
	return errors.Join(errs...)
}

func loadConfig(path string) (*cartesian.Config, error) {
	cfg, err := cartesian.LoadConfig(path)
	if err != nil {
		return nil, fmt.Errorf("error loading config: %w", err)
	}
	return cfg, nil
}
