// Package main implements the labelgraphd daemon: the label
// propagation service that derives effective label sets for entities
// and devices from a configured hierarchy and rule set, emulates areas
// on top of them, and publishes change deltas over NATS.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/arturpragacz/labelgraph/area"
	"github.com/arturpragacz/labelgraph/config"
	"github.com/arturpragacz/labelgraph/coordinator"
	"github.com/arturpragacz/labelgraph/engine"
	"github.com/arturpragacz/labelgraph/errors"
	"github.com/arturpragacz/labelgraph/health"
	"github.com/arturpragacz/labelgraph/metric"
	"github.com/arturpragacz/labelgraph/natsclient"
	"github.com/arturpragacz/labelgraph/pkg/retry"
	"github.com/arturpragacz/labelgraph/registry"
	"github.com/arturpragacz/labelgraph/types"
)

// Build information constants
const (
	Version = "0.1.0"
	appName = "labelgraphd"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := run(); err != nil {
		slog.Error("daemon failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cliCfg := parseFlags()
	if cliCfg.ShowVersion {
		fmt.Printf("%s %s\n", appName, Version)
		return nil
	}
	if err := validateFlags(cliCfg); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	cfg, err := config.Load(cliCfg.ConfigPath)
	if err != nil {
		return err
	}
	if cliCfg.LogLevel != "" {
		cfg.Logging.Level = cliCfg.LogLevel
	}
	if cliCfg.LogFormat != "" {
		cfg.Logging.Format = cliCfg.LogFormat
	}

	logger := setupLogger(cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(logger)
	logger.Info("starting", "config", cfg.String())

	if cliCfg.Validate {
		var diags errors.Diagnostics
		if _, err := config.LoadLabels(cfg.LabelsFile, &diags); err != nil {
			return err
		}
		if diags.HasErrors() {
			return diags.Err()
		}
		logger.Info("configuration is valid")
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics := metric.NewRegistry()
	monitor := health.NewMonitor()

	store := registry.NewStore()
	eng := engine.New(store, logger, engine.WithMetrics(metrics.Metrics))

	tieBreak := area.TieBreakID
	if cfg.Areas.TieBreak == "name" {
		tieBreak = area.TieBreakName
	}
	areas := area.New(eng, logger,
		area.WithTieBreak(tieBreak),
		area.WithMetrics(metrics.Metrics))

	nc := connectNATS(ctx, cfg, logger, monitor)
	if nc != nil {
		defer func() { _ = nc.Close() }()
	}

	loader := func(diags *errors.Diagnostics) ([]types.LabelRecord, error) {
		return config.LoadLabels(cfg.LabelsFile, diags)
	}

	opts := []coordinator.Option{coordinator.WithMetrics(metrics.Metrics)}
	if nc != nil {
		opts = append(opts, coordinator.WithPublisher(nc, cfg.NATS.SubjectPrefix))
	}
	coord := coordinator.New(eng, store, loader, logger, opts...)

	if err := coord.Start(ctx); err != nil {
		return err
	}
	defer func() { _ = coord.Stop() }()

	if err := coord.Reload(ctx); err != nil {
		// Keep serving the empty snapshot; operators can fix the file
		// and send SIGHUP.
		logger.Error("initial configuration load failed", "error", err)
		monitor.UpdateDegraded("coordinator", "initial load failed")
	} else {
		monitor.UpdateHealthy("coordinator", "configuration loaded")
	}

	if nc != nil {
		if err := subscribeIntake(ctx, nc, coord, cfg.NATS.SubjectPrefix, logger); err != nil {
			return err
		}
	}

	server := startHTTPServer(cfg.HTTP.Addr, metrics, monitor, eng, areas, store, logger)
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cliCfg.ShutdownTimeout)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	if cfg.Reload.WatchSignals {
		go watchReloadSignal(ctx, coord, monitor, logger)
	}

	logger.Info("started", "http", cfg.HTTP.Addr)
	<-ctx.Done()
	logger.Info("shutting down")
	return nil
}

// connectNATS attempts the initial NATS connection with backoff. The
// daemon runs degraded without it: queries still work, deltas are not
// published.
func connectNATS(ctx context.Context, cfg *config.Config, logger *slog.Logger, monitor *health.Monitor) *natsclient.Client {
	if cfg.NATS.URL == "" {
		monitor.UpdateDegraded("nats", "disabled")
		return nil
	}

	nc, err := natsclient.NewClient(cfg.NATS.URL,
		natsclient.WithLogger(logger),
		natsclient.WithName(cfg.NATS.Name),
		natsclient.WithTimeout(cfg.NATS.Timeout),
		natsclient.WithReconnectCallback(func() {
			monitor.UpdateHealthy("nats", "reconnected")
		}),
		natsclient.WithDisconnectCallback(func(error) {
			monitor.UpdateDegraded("nats", "disconnected")
		}),
	)
	if err != nil {
		logger.Error("creating nats client", "error", err)
		monitor.UpdateUnhealthy("nats", err.Error())
		return nil
	}

	if err := retry.Do(ctx, retry.Startup(), nc.Connect); err != nil {
		logger.Warn("nats unavailable, running without event transport", "error", err)
		monitor.UpdateDegraded("nats", "connect failed")
		return nil
	}
	monitor.UpdateHealthy("nats", "connected")
	return nc
}

// watchReloadSignal reloads the configuration on SIGHUP.
func watchReloadSignal(ctx context.Context, coord *coordinator.Coordinator, monitor *health.Monitor, logger *slog.Logger) {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	for {
		select {
		case <-ctx.Done():
			return
		case <-hup:
			logger.Info("reload requested")
			reloadCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
			if err := coord.Reload(reloadCtx); err != nil {
				logger.Error("reload failed, previous configuration stays active", "error", err)
				monitor.UpdateDegraded("coordinator", "last reload failed")
			} else {
				monitor.UpdateHealthy("coordinator", "configuration reloaded")
			}
			cancel()
		}
	}
}
