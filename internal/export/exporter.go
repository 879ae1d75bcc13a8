// Package export streams epochs of sampled training pairs into a sink.
package export

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"time"

	"golang.org/x/time/rate"

	"github.com/Adithya-Monish-Kumar-K/retrieval-datasets/internal/sampler"
	dserrors "github.com/Adithya-Monish-Kumar-K/retrieval-datasets/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/retrieval-datasets/pkg/metrics"
)

// Source produces training pairs by position. *sampler.Sampler implements it.
type Source interface {
	Size() int
	Get(ctx context.Context, i int) (sampler.Pair, error)
}

// Sink receives exported pairs. Close flushes anything buffered.
type Sink interface {
	Name() string
	Write(ctx context.Context, p sampler.Pair) error
	Close(ctx context.Context) error
}

// Options configures an Exporter.
type Options struct {
	// Seed fixes the per-epoch visiting order. Zero seeds from the clock.
	Seed int64
	// PairsPerSecond caps the export rate. Zero is unlimited.
	PairsPerSecond float64
	// SkipInvalid counts and skips queries whose pairs cannot be sampled
	// (no negative left, or a positive that is not a candidate) instead of
	// failing the run.
	SkipInvalid bool
	Metrics     *metrics.Metrics
	Logger      *slog.Logger
}

// Stats summarises a run.
type Stats struct {
	Written int
	Skipped int
	Epochs  int
}

// Exporter visits every query of a Source once per epoch, in a fresh random
// order each epoch, and writes the sampled pairs to a Sink.
type Exporter struct {
	source  Source
	sink    Sink
	limiter *rate.Limiter
	rng     *rand.Rand
	skip    bool
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func New(source Source, sink Sink, opts Options) *Exporter {
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	var limiter *rate.Limiter
	if opts.PairsPerSecond > 0 {
		burst := int(opts.PairsPerSecond)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(opts.PairsPerSecond), burst)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{
		source:  source,
		sink:    sink,
		limiter: limiter,
		rng:     rand.New(rand.NewPCG(uint64(seed), uint64(seed)>>1|1)),
		skip:    opts.SkipInvalid,
		metrics: opts.Metrics,
		logger:  logger.With("component", "exporter", "sink", sink.Name()),
	}
}

// Run exports epochs passes over the source. It stops at the first error
// that is not skippable, or when ctx ends, returning what was done so far.
// The sink is not closed.
func (e *Exporter) Run(ctx context.Context, epochs int) (Stats, error) {
	var stats Stats
	if epochs < 1 {
		return stats, dserrors.Newf(dserrors.ErrInvalidInput, "export.Run", "epochs must be positive, got %d", epochs)
	}
	n := e.source.Size()
	e.logger.Info("export started", "epochs", epochs, "queries", n)

	for epoch := 0; epoch < epochs; epoch++ {
		start := time.Now()
		written, skipped := 0, 0
		for _, i := range e.rng.Perm(n) {
			if e.limiter != nil {
				if err := e.limiter.Wait(ctx); err != nil {
					return stats, err
				}
			} else if err := ctx.Err(); err != nil {
				return stats, err
			}

			p, err := e.source.Get(ctx, i)
			if err != nil {
				if e.skip && skippable(err) {
					skipped++
					stats.Skipped++
					e.logger.Warn("query skipped", "epoch", epoch, "index", i, "kind", dserrors.Kind(err), "error", err)
					continue
				}
				return stats, err
			}
			if err := e.sink.Write(ctx, p); err != nil {
				return stats, err
			}
			written++
			stats.Written++
			e.metrics.PairsExported(e.sink.Name(), 1)
		}
		stats.Epochs++
		e.logger.Info("epoch exported",
			"epoch", epoch,
			"written", written,
			"skipped", skipped,
			"duration", time.Since(start),
		)
	}
	return stats, nil
}

func skippable(err error) bool {
	return dserrors.Is(err, dserrors.ErrEmptyCandidatePool) || dserrors.Is(err, dserrors.ErrInvariantViolation)
}
