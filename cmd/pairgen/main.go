package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Adithya-Monish-Kumar-K/retrieval-datasets/internal/app"
	"github.com/Adithya-Monish-Kumar-K/retrieval-datasets/internal/export"
	"github.com/Adithya-Monish-Kumar-K/retrieval-datasets/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/retrieval-datasets/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/retrieval-datasets/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/retrieval-datasets/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/retrieval-datasets/pkg/resilience"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	epochs := flag.Int("epochs", 0, "passes over the query universe (0 uses export.epochs)")
	out := flag.String("out", "file", "sink: file or kafka")
	path := flag.String("path", "", "output TSV path for -out file (empty uses export.outPath)")
	skipInvalid := flag.Bool("skip-invalid", false, "skip queries that cannot yield a pair instead of failing the run")
	remote := flag.String("remote", "", "read collections from a datasetd RPC address instead of local shards")
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
	if *epochs > 0 {
		cfg.Export.Epochs = *epochs
	}
	if *path != "" {
		cfg.Export.OutPath = *path
	}
	if *skipInvalid {
		cfg.Export.SkipInvalid = true
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting pair generator", "epochs", cfg.Export.Epochs, "out", *out, "remote", *remote)
	if cfg.Export.SkipInvalid {
		slog.Warn("queries with an empty candidate pool or a broken qrels join will be skipped")
	}

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

	if err := run(ctx, cfg, *out, *remote, m); err != nil {
		slog.Error("pair generation failed", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, out, remote string, m *metrics.Metrics) error {
	dataset, err := app.Open(ctx, cfg, app.Options{RemoteAddr: remote, Metrics: m})
	if err != nil {
		return fmt.Errorf("opening dataset: %w", err)
	}
	defer dataset.Close()

	sink, err := newSink(cfg, out)
	if err != nil {
		return err
	}

	exporter := export.New(dataset.Sampler, sink, export.Options{
		Seed:           cfg.Dataset.Seed,
		PairsPerSecond: cfg.Export.PairsPerSecond,
		SkipInvalid:    cfg.Export.SkipInvalid,
		Metrics:        m,
	})
	start := time.Now()
	stats, runErr := exporter.Run(ctx, cfg.Export.Epochs)

	closeCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := sink.Close(closeCtx); err != nil && runErr == nil {
		runErr = fmt.Errorf("closing %s sink: %w", sink.Name(), err)
	}

	slog.Info("pair generation finished",
		"written", stats.Written,
		"skipped", stats.Skipped,
		"epochs", stats.Epochs,
		"duration", time.Since(start),
	)
	return runErr
}

func newSink(cfg *config.Config, out string) (export.Sink, error) {
	switch out {
	case "file":
		return export.CreateTSVSink(cfg.Export.OutPath)
	case "kafka":
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.TrainingPairs)
		return export.NewKafkaSink(producer, export.KafkaSinkOptions{
			BatchSize:     cfg.Export.BatchSize,
			FlushInterval: cfg.Export.FlushInterval,
			Retry:         resilience.RetryConfig{MaxAttempts: 5, InitialDelay: 200 * time.Millisecond},
		}), nil
	default:
		return nil, fmt.Errorf("unknown sink %q (want file or kafka)", out)
	}
}
