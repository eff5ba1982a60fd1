// Command broker runs the stateless ROUTER/DEALER request-reply router
// described in SPEC_FULL.md §4.1.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/chatfed/chatfed/internal/broker"
	"github.com/chatfed/chatfed/internal/config"
	"github.com/chatfed/chatfed/internal/logging"
	"github.com/chatfed/chatfed/internal/metrics"
)

func main() {
	cfg, err := config.LoadBroker()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger, err := logging.New(cfg.LogLevel)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync() // nolint:errcheck

	reg := prometheus.NewRegistry()
	m := metrics.NewBroker(reg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	b := broker.New(ctx, m, logger)
	if err := b.Listen(cfg.FrontAddr, cfg.BackAddr); err != nil {
		logger.Fatal("broker listen failed", zap.Error(err))
	}
	defer b.Close()

	runErrCh := make(chan error, 1)
	go func() { runErrCh <- b.Run(ctx) }()

	httpErrCh := make(chan error, 1)
	go func() { httpErrCh <- runMetricsServer(ctx, cfg.MetricsAddr, reg, logger) }()

	logger.Info("broker started", zap.String("front", cfg.FrontAddr), zap.String("back", cfg.BackAddr))

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-runErrCh:
		if err != nil && ctx.Err() == nil {
			logger.Error("broker run error", zap.Error(err))
		}
	case err := <-httpErrCh:
		if err != nil {
			logger.Error("metrics server error", zap.Error(err))
		}
	}
}

func runMetricsServer(ctx context.Context, addr string, reg *prometheus.Registry, logger *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(reg))

	srv := &http.Server{Addr: addr, Handler: mux, ReadTimeout: 5 * time.Second, WriteTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("metrics http server starting", zap.String("addr", addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	}
}
