package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/retrieval-datasets/internal/sampler"
	"github.com/Adithya-Monish-Kumar-K/retrieval-datasets/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/retrieval-datasets/pkg/resilience"
)

// Publisher writes a batch of events. *kafka.Producer implements it.
type Publisher interface {
	PublishBatch(ctx context.Context, events []kafka.Event) error
	Close() error
}

// KafkaSink buffers pairs and publishes them keyed by query id, when the
// buffer reaches the batch size and on every flush interval. Failed batches
// are retried with backoff; a batch that still fails stays buffered and its
// error is returned to the writer.
type KafkaSink struct {
	publisher     Publisher
	retry         resilience.RetryConfig
	mu            sync.Mutex
	buffer        []kafka.Event
	batchSize     int
	flushInterval time.Duration
	logger        *slog.Logger
	stop          chan struct{}
	done          chan struct{}
	loopErr       error
}

// KafkaSinkOptions configures NewKafkaSink. Zero values take defaults.
type KafkaSinkOptions struct {
	BatchSize     int
	FlushInterval time.Duration
	Retry         resilience.RetryConfig
}

// NewKafkaSink starts the periodic flush loop; Close stops it.
func NewKafkaSink(publisher Publisher, opts KafkaSinkOptions) *KafkaSink {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = 5 * time.Second
	}
	if opts.Retry.Retryable == nil {
		opts.Retry.Retryable = func(err error) bool {
			return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
		}
	}
	s := &KafkaSink{
		publisher:     publisher,
		retry:         opts.Retry,
		buffer:        make([]kafka.Event, 0, opts.BatchSize),
		batchSize:     opts.BatchSize,
		flushInterval: opts.FlushInterval,
		logger:        slog.Default().With("component", "kafka-sink"),
		stop:          make(chan struct{}),
		done:          make(chan struct{}),
	}
	go s.loop()
	s.logger.Info("kafka sink started",
		"batch_size", s.batchSize,
		"flush_interval", s.flushInterval,
	)
	return s
}

func (s *KafkaSink) Name() string { return "kafka" }

func (s *KafkaSink) loop() {
	defer close(s.done)
	ticker := time.NewTicker(s.flushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := s.flush(context.Background()); err != nil {
				s.mu.Lock()
				s.loopErr = err
				s.mu.Unlock()
			}
		case <-s.stop:
			return
		}
	}
}

// Write buffers p and publishes the buffer once it is full. An error from a
// background flush since the last Write is reported here.
func (s *KafkaSink) Write(ctx context.Context, p sampler.Pair) error {
	s.mu.Lock()
	if err := s.loopErr; err != nil {
		s.loopErr = nil
		s.mu.Unlock()
		return err
	}
	s.buffer = append(s.buffer, kafka.Event{Key: p.QueryID, Value: p})
	full := len(s.buffer) >= s.batchSize
	s.mu.Unlock()

	if full {
		return s.flush(ctx)
	}
	return nil
}

// Buffered returns the number of pairs waiting to be published.
func (s *KafkaSink) Buffered() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.buffer)
}

// Close stops the flush loop, publishes what is left and closes the
// publisher.
func (s *KafkaSink) Close(ctx context.Context) error {
	close(s.stop)
	<-s.done
	flushErr := s.flush(ctx)
	closeErr := s.publisher.Close()
	if flushErr != nil {
		return flushErr
	}
	return closeErr
}

func (s *KafkaSink) flush(ctx context.Context) error {
	s.mu.Lock()
	if len(s.buffer) == 0 {
		s.mu.Unlock()
		return nil
	}
	batch := s.buffer
	s.buffer = make([]kafka.Event, 0, s.batchSize)
	s.mu.Unlock()

	err := resilience.Retry(ctx, "kafka-sink-flush", s.retry, func() error {
		return s.publisher.PublishBatch(ctx, batch)
	})
	if err != nil {
		s.logger.Error("batch flush failed", "batch_size", len(batch), "error", err)
		s.mu.Lock()
		s.buffer = append(batch, s.buffer...)
		s.mu.Unlock()
		return fmt.Errorf("publishing %d pairs: %w", len(batch), err)
	}
	s.logger.Debug("batch flushed", "pairs", len(batch))
	return nil
}
