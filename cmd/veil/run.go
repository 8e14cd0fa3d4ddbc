package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"veil-hq/veil/pkg/challenge"
	"veil-hq/veil/pkg/config"
	"veil-hq/veil/pkg/gateway"
	"veil-hq/veil/pkg/telemetry/logging"
	"veil-hq/veil/pkg/telemetry/metrics"
)

var solverFlag string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the gateway",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run()
	},
}

func init() {
	runCmd.Flags().StringVar(&solverFlag, "solver", "", "captcha solver as provider:client_key")
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	if solverFlag != "" {
		s, err := challenge.ParseSolver(solverFlag)
		if err != nil {
			return err
		}
		cfg.Captcha.Solver.Provider = s.Provider
		cfg.Captcha.Solver.ClientKey = s.ClientKey
	}

	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}

	logger, err := logging.New(cfg.Telemetry.Logging, nil)
	if err != nil {
		return fmt.Errorf("failed to build logger: %w", err)
	}
	slog.SetDefault(logger)

	logger.Info("starting veil",
		"version", Version,
		"instance_id", uuid.NewString(),
		"bind", cfg.Server.Bind,
		"workers", cfg.Server.Workers,
	)

	if err := gateway.Init(cfg, logger); err != nil {
		return fmt.Errorf("failed to initialize gateway context: %w", err)
	}
	ctx := gateway.Instance()
	defer ctx.Close()

	var metricsSrv *http.Server
	if registry := ctx.MetricsRegistry(); registry != nil {
		mux := http.NewServeMux()
		mux.Handle(cfg.Telemetry.Metrics.Path, metrics.Handler(registry))
		metricsSrv = &http.Server{Addr: cfg.Server.Bind, Handler: mux}
		go func() {
			logger.Info("metrics endpoint listening",
				"addr", cfg.Server.Bind,
				"path", cfg.Telemetry.Metrics.Path,
			)
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server failed", "error", err)
			}
		}()
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	logger.Info("shutting down", "signal", sig.String())

	if metricsSrv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("metrics server shutdown failed", "error", err)
		}
	}

	return nil
}

func loadConfig() (*config.Config, error) {
	if cfgFile == "" {
		return config.Default(), nil
	}
	return config.LoadWithEnvOverrides(cfgFile)
}
