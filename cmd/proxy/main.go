// Command proxy runs the XSUB/XPUB topic-filtered publish/subscribe
// switch described in SPEC_FULL.md §4.2.
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

	"github.com/chatfed/chatfed/internal/config"
	"github.com/chatfed/chatfed/internal/logging"
	"github.com/chatfed/chatfed/internal/metrics"
	"github.com/chatfed/chatfed/internal/proxy"
)

func main() {
	cfg, err := config.LoadProxy()
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
	m := metrics.NewProxy(reg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	p := proxy.New(ctx, m, logger)
	if err := p.Listen(cfg.XSubAddr, cfg.XPubAddr); err != nil {
		logger.Fatal("proxy listen failed", zap.Error(err))
	}
	defer p.Close()

	runErrCh := make(chan error, 1)
	go func() { runErrCh <- p.Run(ctx) }()

	httpErrCh := make(chan error, 1)
	go func() { httpErrCh <- runMetricsServer(ctx, cfg.MetricsAddr, reg, logger) }()

	logger.Info("proxy started", zap.String("xsub", cfg.XSubAddr), zap.String("xpub", cfg.XPubAddr))

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-runErrCh:
		if err != nil && ctx.Err() == nil {
			logger.Error("proxy run error", zap.Error(err))
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
