package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/retrieval-datasets/internal/app"
	"github.com/Adithya-Monish-Kumar-K/retrieval-datasets/internal/server"
	"github.com/Adithya-Monish-Kumar-K/retrieval-datasets/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/retrieval-datasets/pkg/grpc"
	"github.com/Adithya-Monish-Kumar-K/retrieval-datasets/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/retrieval-datasets/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/retrieval-datasets/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/retrieval-datasets/pkg/middleware"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "invalid config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting dataset service",
		"port", cfg.Server.Port,
		"queries", cfg.Dataset.QueryDir,
		"documents", cfg.Dataset.DocumentDir,
		"tables", cfg.Dataset.TablesSource,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(nil)
	if cfg.Metrics.Enabled {
		ms, err := metrics.Listen(fmt.Sprintf(":%d", cfg.Metrics.Port), nil)
		if err != nil {
			slog.Error("failed to start metrics server", "error", err)
			os.Exit(1)
		}
		defer ms.Shutdown(context.Background())
	}

	dataset, err := app.Open(ctx, cfg, app.Options{Metrics: m})
	if err != nil {
		slog.Error("failed to open dataset", "error", err)
		os.Exit(1)
	}
	defer dataset.Close()

	checker := health.NewChecker()
	dataset.RegisterHealth(checker)

	h := server.New(dataset.Collections(), dataset.Sampler)

	var rpcServer *grpc.Server
	if cfg.RPC.Enabled {
		rpcServer = grpc.NewServer()
		h.RegisterRPC(rpcServer)
		go func() {
			if err := rpcServer.Serve(cfg.RPC.Addr); err != nil {
				slog.Error("rpc server error", "error", err)
				stop()
			}
		}()
	}

	mux := http.NewServeMux()
	h.Register(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Metrics(m)(chain)
	chain = middleware.AccessLog(chain)
	chain = middleware.Trace(cfg.Server.SlowRequest)(chain)
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	chain = middleware.RateLimit(cfg.Server.RateLimit, cfg.Server.RateBurst)(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if rpcServer != nil {
			rpcServer.Stop()
		}
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("dataset service listening", "addr", server.Addr, "pairs", dataset.Sampler.Size())
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("dataset service stopped")
}
