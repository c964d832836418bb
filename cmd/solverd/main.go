package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fieldworks-io/dispatch/adapter/api"
	"github.com/fieldworks-io/dispatch/internal/solver/vrp"
	"github.com/fieldworks-io/dispatch/pkg/config"
	"github.com/fieldworks-io/dispatch/pkg/observability"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		observability.NewLogger(observability.DefaultLogConfig()).
			Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(observability.LogConfig{
		Level:       observability.LogLevel(cfg.LogLevel),
		Format:      observability.LogFormat(cfg.LogFormat),
		ServiceName: "dispatch-solver",
	})
	metrics := observability.NewInMemoryMetrics()

	logger.Info("starting solver service",
		"addr", cfg.SolverListenAddr,
		"time_limit", cfg.SolverTimeLimit,
		"log_search", cfg.SolverLogSearch,
	)

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	handler := api.NewOptimizeHandler(vrp.Options{
		TimeLimit:      cfg.SolverTimeLimit,
		InfeasibleCost: cfg.InfeasibleCost,
		BasePenalty:    cfg.BasePenalty,
		LogSearch:      cfg.SolverLogSearch,
	}, metrics, logger)

	serverCfg := api.DefaultServerConfig()
	serverCfg.Addr = cfg.SolverListenAddr
	server := api.NewServer(serverCfg, handler, logger)

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		logger.Error("server failed", "error", err)
		os.Exit(1)
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server shutdown error", "error", err)
	}
	logger.Info("solver service stopped")
}
