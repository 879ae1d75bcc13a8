package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/Adithya-Monish-Kumar-K/retrieval-datasets/internal/pairs"
	"github.com/Adithya-Monish-Kumar-K/retrieval-datasets/internal/sampler"
	"github.com/Adithya-Monish-Kumar-K/retrieval-datasets/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/retrieval-datasets/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/retrieval-datasets/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/retrieval-datasets/pkg/metrics"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	out := flag.String("out", "", "TSV file to append pairs to (empty uses export.outPath)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *out != "" {
		cfg.Export.OutPath = *out
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting pair sink",
		"topic", cfg.Kafka.Topics.TrainingPairs,
		"group", cfg.Kafka.ConsumerGroup,
		"out", cfg.Export.OutPath,
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

	if err := os.MkdirAll(filepath.Dir(cfg.Export.OutPath), 0o755); err != nil {
		slog.Error("failed to create output directory", "error", err)
		os.Exit(1)
	}
	f, err := os.OpenFile(cfg.Export.OutPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		slog.Error("failed to open output file", "path", cfg.Export.OutPath, "error", err)
		os.Exit(1)
	}
	defer f.Close()

	var mu sync.Mutex
	w := pairs.NewWriter(f)
	handle := func(ctx context.Context, key []byte, value []byte) error {
		p, err := kafka.DecodeJSON[sampler.Pair](value)
		if err != nil {
			return err
		}
		mu.Lock()
		defer mu.Unlock()
		if err := w.Write(p); err != nil {
			return err
		}
		// Rows must be on disk before the offset is committed.
		if err := w.Flush(); err != nil {
			return fmt.Errorf("flushing pair rows: %w", err)
		}
		m.PairsExported("tsv", 1)
		return nil
	}

	consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.TrainingPairs, handle)
	if err := consumer.Start(ctx); err != nil {
		slog.Error("consumer error", "error", err)
	}

	slog.Info("pair sink stopped", "rows", w.Rows())
}
