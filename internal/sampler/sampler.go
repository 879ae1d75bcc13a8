// Package sampler builds hard-negative training pairs. For each query judged
// in the qrels and scored in the candidate table it draws one judged
// positive and one scored, non-positive candidate and resolves all three
// texts through the query and document collections.
package sampler

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"
	"sync"
	"time"

	"github.com/Adithya-Monish-Kumar-K/retrieval-datasets/internal/collection"
	"github.com/Adithya-Monish-Kumar-K/retrieval-datasets/internal/tables"
	dserrors "github.com/Adithya-Monish-Kumar-K/retrieval-datasets/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/retrieval-datasets/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/retrieval-datasets/pkg/tracing"
)

// Pair is one training example. Texts are trimmed; Relevance is the judged
// relevance of the positive.
type Pair struct {
	QueryID       string  `json:"query_id"`
	PositiveID    string  `json:"positive_id"`
	NegativeID    string  `json:"negative_id"`
	Query         string  `json:"query"`
	Positive      string  `json:"positive"`
	Negative      string  `json:"negative"`
	PositiveScore float64 `json:"positive_score"`
	NegativeScore float64 `json:"negative_score"`
	Relevance     int     `json:"relevance"`
}

// Options configures a Sampler.
type Options struct {
	// Seed fixes the sampling stream. Zero seeds from the clock.
	Seed    int64
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// Sampler draws training pairs. Each call to Get samples afresh, so the same
// index yields different pairs across calls whenever there is more than one
// positive or more than one negative to choose from. Get is safe for
// concurrent use; for a fixed seed and a fixed call order the sequence of
// pairs is reproducible.
type Sampler struct {
	queries  collection.Lookup
	docs     collection.Lookup
	scores   *tables.ScoreTable
	qrels    *tables.QrelsTable
	universe []string
	metrics  *metrics.Metrics
	logger   *slog.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// New joins the two tables into the query universe: the scored queries, in
// score table order, that also have qrels.
func New(queries, docs collection.Lookup, scores *tables.ScoreTable, qrels *tables.QrelsTable, opts Options) (*Sampler, error) {
	if queries == nil || docs == nil {
		return nil, dserrors.New(dserrors.ErrConfig, "sampler.New", "query and document collections are required")
	}
	if scores == nil || qrels == nil {
		return nil, dserrors.New(dserrors.ErrConfig, "sampler.New", "score and qrels tables are required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "pair-sampler")

	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	universe := make([]string, 0, scores.Len())
	for _, q := range scores.Queries() {
		if qrels.Has(q) {
			universe = append(universe, q)
		}
	}
	logger.Info("query universe built",
		"scored_queries", scores.Len(),
		"judged_queries", qrels.Len(),
		"universe", len(universe),
		"seed", seed,
	)

	return &Sampler{
		queries:  queries,
		docs:     docs,
		scores:   scores,
		qrels:    qrels,
		universe: universe,
		metrics:  opts.Metrics,
		logger:   logger,
		rng:      rand.New(rand.NewPCG(uint64(seed), uint64(seed)^0x9e3779b97f4a7c15)),
	}, nil
}

// Size returns the number of queries in the universe.
func (s *Sampler) Size() int {
	return len(s.universe)
}

// QueryID returns the canonical id of the i-th query of the universe.
func (s *Sampler) QueryID(i int) (string, error) {
	if i < 0 || i >= len(s.universe) {
		return "", dserrors.Newf(dserrors.ErrOutOfRange, "sampler.QueryID", "index %d outside [0, %d)", i, len(s.universe))
	}
	return s.universe[i], nil
}

// Get samples a pair for the i-th query of the universe.
func (s *Sampler) Get(ctx context.Context, i int) (Pair, error) {
	ctx, span := tracing.StartChildSpan(ctx, "sampler.get")
	defer span.End()
	span.SetAttr("index", i)
	p, err := s.get(ctx, i)
	if err == nil {
		span.SetAttr("query_id", p.QueryID)
	}
	s.metrics.PairSampled(err)
	return p, err
}

func (s *Sampler) get(ctx context.Context, i int) (Pair, error) {
	query, err := s.QueryID(i)
	if err != nil {
		return Pair{}, err
	}
	queryRec, err := s.queries.GetByID(ctx, query)
	if err != nil {
		return Pair{}, fmt.Errorf("query %s: %w", query, err)
	}

	positiveID, negativeID, err := s.draw(query)
	if err != nil {
		return Pair{}, err
	}
	posScore, _ := s.scores.Score(query, positiveID)
	negScore, _ := s.scores.Score(query, negativeID)
	relevance, _ := s.qrels.Relevance(query, positiveID)

	posRec, err := s.docs.GetByID(ctx, positiveID)
	if err != nil {
		return Pair{}, fmt.Errorf("positive %s of query %s: %w", positiveID, query, err)
	}
	negRec, err := s.docs.GetByID(ctx, negativeID)
	if err != nil {
		return Pair{}, fmt.Errorf("negative %s of query %s: %w", negativeID, query, err)
	}

	return Pair{
		QueryID:       query,
		PositiveID:    positiveID,
		NegativeID:    negativeID,
		Query:         strings.TrimSpace(queryRec.Text),
		Positive:      strings.TrimSpace(posRec.Text),
		Negative:      strings.TrimSpace(negRec.Text),
		PositiveScore: posScore,
		NegativeScore: negScore,
		Relevance:     relevance,
	}, nil
}

// draw removes the positives of query from its candidates and picks one of
// each. Every positive must be a scored candidate.
func (s *Sampler) draw(query string) (positive, negative string, err error) {
	positives := s.qrels.Positives(query)
	if len(positives) == 0 {
		return "", "", dserrors.Newf(dserrors.ErrInvariantViolation, "sampler.Get", "query %s has no judged positives", query)
	}
	candidates := s.scores.Candidates(query)

	isPositive := make(map[string]struct{}, len(positives))
	for _, p := range positives {
		isPositive[p] = struct{}{}
	}
	remaining := candidates[:0]
	found := 0
	for _, c := range candidates {
		if _, ok := isPositive[c]; ok {
			found++
			continue
		}
		remaining = append(remaining, c)
	}
	if found != len(positives) {
		return "", "", dserrors.Newf(dserrors.ErrInvariantViolation, "sampler.Get",
			"query %s: %s", query, missingPositives(positives, s.scores, query))
	}
	if len(remaining) == 0 {
		return "", "", dserrors.Newf(dserrors.ErrEmptyCandidatePool, "sampler.Get",
			"query %s: all %d candidates are positives", query, len(candidates))
	}

	s.mu.Lock()
	pi := s.rng.IntN(len(positives))
	ni := s.rng.IntN(len(remaining))
	s.mu.Unlock()
	return positives[pi], remaining[ni], nil
}

func missingPositives(positives []string, scores *tables.ScoreTable, query string) string {
	var missing []string
	for _, p := range positives {
		if _, ok := scores.Score(query, p); !ok {
			missing = append(missing, p)
		}
	}
	return fmt.Sprintf("positives %s are not scored candidates", strings.Join(missing, ", "))
}
