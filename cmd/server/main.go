// Command server runs one application server instance: client command
// dispatch, channel/user registry, append-only logs, pub/sub emission,
// cross-server replication, and coordinator election. SPEC_FULL.md §4.3.
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
	"github.com/chatfed/chatfed/internal/server"
)

func main() {
	cfg, err := config.LoadServer()
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
	logger = logger.With(zap.String("server", cfg.Name))

	reg := prometheus.NewRegistry()
	m := metrics.NewServer(reg, cfg.Name)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv, err := server.New(ctx, server.Config{
		Name:         cfg.Name,
		BrokerBack:   cfg.BrokerBackAddr,
		ProxyXSub:    cfg.ProxyXSubAddr,
		ProxyXPub:    cfg.ProxyXPubAddr,
		RegistryAddr: cfg.RegistryAddr,
		DataDir:      cfg.DataDir,
		SyncEvery:    cfg.SyncEvery,
	}, m, logger)
	if err != nil {
		logger.Fatal("server init failed", zap.Error(err))
	}
	defer srv.Close()

	runErrCh := make(chan error, 1)
	go func() { runErrCh <- srv.Run(ctx, cfg.HeartbeatInterval) }()

	httpErrCh := make(chan error, 1)
	go func() { httpErrCh <- runHTTPServer(ctx, cfg.MetricsAddr, reg, srv, logger) }()

	logger.Info("server started",
		zap.String("broker_back", cfg.BrokerBackAddr),
		zap.String("proxy_xsub", cfg.ProxyXSubAddr),
		zap.String("proxy_xpub", cfg.ProxyXPubAddr),
		zap.String("registry", cfg.RegistryAddr),
	)

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-runErrCh:
		if err != nil && ctx.Err() == nil {
			logger.Error("server run error", zap.Error(err))
		}
	case err := <-httpErrCh:
		if err != nil {
			logger.Error("http server error", zap.Error(err))
		}
	}
}

func runHTTPServer(ctx context.Context, addr string, reg *prometheus.Registry, srv *server.Server, logger *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(reg))
	mux.Handle("/healthz", srv.HealthHandler())

	httpServer := &http.Server{Addr: addr, Handler: mux, ReadTimeout: 5 * time.Second, WriteTimeout: 5 * time.Second}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("metrics http server starting", zap.String("addr", addr))
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	}
}
