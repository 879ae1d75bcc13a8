// Package app wires the configured collections, relevance tables, record
// cache and pair sampler together for the binaries.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/Adithya-Monish-Kumar-K/retrieval-datasets/internal/collection"
	"github.com/Adithya-Monish-Kumar-K/retrieval-datasets/internal/sampler"
	"github.com/Adithya-Monish-Kumar-K/retrieval-datasets/internal/storage"
	"github.com/Adithya-Monish-Kumar-K/retrieval-datasets/internal/tables"
	"github.com/Adithya-Monish-Kumar-K/retrieval-datasets/pkg/config"
	dserrors "github.com/Adithya-Monish-Kumar-K/retrieval-datasets/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/retrieval-datasets/pkg/grpc"
	"github.com/Adithya-Monish-Kumar-K/retrieval-datasets/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/retrieval-datasets/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/retrieval-datasets/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/retrieval-datasets/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/retrieval-datasets/pkg/resilience"
)

// Collection names used by the HTTP and RPC surfaces.
const (
	QueriesCollection   = "queries"
	DocumentsCollection = "documents"
)

// Options selects how Open reaches the collections.
type Options struct {
	// RemoteAddr reads both collections from a running datasetd over RPC
	// instead of opening the shards locally.
	RemoteAddr string
	Metrics    *metrics.Metrics
}

// Dataset is everything the binaries serve or export from.
type Dataset struct {
	Queries   collection.Lookup
	Documents collection.Lookup
	Scores    *tables.ScoreTable
	Qrels     *tables.QrelsTable
	Sampler   *sampler.Sampler

	redis   *pkgredis.Client
	closers []func() error
	logger  *slog.Logger
}

// Open builds a Dataset from cfg. The caller must Close it.
func Open(ctx context.Context, cfg *config.Config, opts Options) (*Dataset, error) {
	d := &Dataset{logger: slog.Default().With("component", "dataset")}
	ok := false
	defer func() {
		if !ok {
			d.Close()
		}
	}()

	store, err := storage.New(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("creating store: %w", err)
	}

	if opts.RemoteAddr != "" {
		if err := d.openRemote(ctx, opts.RemoteAddr); err != nil {
			return nil, err
		}
	} else if err := d.openLocal(ctx, cfg, store, opts.Metrics); err != nil {
		return nil, err
	}

	var (
		scores *tables.ScoreTable
		qrels  *tables.QrelsTable
	)
	op := "app.loadTables(" + cfg.Dataset.TablesSource + ")"
	err = resilience.WithTimeout(ctx, cfg.Dataset.TablesTimeout, op, func(ctx context.Context) error {
		var err error
		scores, qrels, err = loadTables(ctx, cfg, store)
		return err
	})
	if err != nil {
		return nil, err
	}
	d.Scores, d.Qrels = scores, qrels
	d.logger.Info("tables loaded", "source", cfg.Dataset.TablesSource,
		"scored_queries", scores.Len(), "judged_queries", qrels.Len())

	d.Sampler, err = sampler.New(d.Queries, d.Documents, d.Scores, d.Qrels, sampler.Options{
		Seed:    cfg.Dataset.Seed,
		Metrics: opts.Metrics,
	})
	if err != nil {
		return nil, err
	}
	ok = true
	return d, nil
}

func (d *Dataset) openLocal(ctx context.Context, cfg *config.Config, store storage.Store, m *metrics.Metrics) error {
	open := func(name, dir string) (*collection.Accessor, error) {
		return collection.Open(ctx, store, collection.Options{
			Name:        name,
			Dir:         dir,
			Suffix:      cfg.Dataset.ShardSuffix,
			IndexIDs:    true,
			Concurrency: cfg.Dataset.IndexConcurrency,
			Metrics:     m,
		})
	}
	queries, err := open(QueriesCollection, cfg.Dataset.QueryDir)
	if err != nil {
		return err
	}
	docs, err := open(DocumentsCollection, cfg.Dataset.DocumentDir)
	if err != nil {
		return err
	}
	d.Queries, d.Documents = queries, docs

	if !cfg.Redis.Enabled {
		return nil
	}
	client, err := pkgredis.NewClient(cfg.Redis)
	if err != nil {
		d.logger.Warn("redis unavailable, record caching disabled", "addr", cfg.Redis.Addr, "error", err)
		return nil
	}
	d.redis = client
	d.closers = append(d.closers, client.Close)
	cachedQueries := collection.NewCached(queries, client, collection.CachedOptions{
		Name: QueriesCollection, TTL: cfg.Redis.CacheTTL, Metrics: m,
	})
	cachedDocs := collection.NewCached(docs, client, collection.CachedOptions{
		Name: DocumentsCollection, TTL: cfg.Redis.CacheTTL, Metrics: m,
	})
	if cfg.Redis.FlushOnStart {
		for _, c := range []*collection.Cached{cachedQueries, cachedDocs} {
			if err := c.Invalidate(ctx); err != nil {
				d.logger.Warn("record cache flush failed", "error", err)
			}
		}
	}
	d.Queries, d.Documents = cachedQueries, cachedDocs
	d.logger.Info("record cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL,
		"queries_fingerprint", queries.Fingerprint(), "documents_fingerprint", docs.Fingerprint())
	return nil
}

func (d *Dataset) openRemote(ctx context.Context, addr string) error {
	client, err := grpc.Dial(ctx, addr)
	if err != nil {
		return dserrors.Newf(dserrors.ErrConfig, "app.Open", "connecting to %s: %v", addr, err)
	}
	d.closers = append(d.closers, client.Close)
	if d.Queries, err = collection.NewRemote(ctx, client, QueriesCollection); err != nil {
		return err
	}
	if d.Documents, err = collection.NewRemote(ctx, client, DocumentsCollection); err != nil {
		return err
	}
	d.logger.Info("using remote collections", "addr", addr,
		"queries", d.Queries.Size(), "documents", d.Documents.Size())
	return nil
}

func loadTables(ctx context.Context, cfg *config.Config, store storage.Store) (*tables.ScoreTable, *tables.QrelsTable, error) {
	switch cfg.Dataset.TablesSource {
	case config.TablesFromPostgres:
		client, err := postgres.New(ctx, cfg.Postgres)
		if err != nil {
			return nil, nil, dserrors.Newf(dserrors.ErrConfig, "app.Open", "%v", err)
		}
		defer client.Close()
		var (
			scores *tables.ScoreTable
			qrels  *tables.QrelsTable
		)
		err = client.Snapshot(ctx, func(tx *sql.Tx) error {
			src := tables.NewPGSource(tx, cfg.Postgres.QrelsTable, cfg.Postgres.ScoresTable)
			var err error
			if scores, err = src.LoadScores(ctx); err != nil {
				return err
			}
			qrels, err = src.LoadQrels(ctx)
			return err
		})
		return scores, qrels, err
	default:
		scores, err := tables.LoadScoresFile(ctx, store, cfg.Dataset.ScoresPath)
		if err != nil {
			return nil, nil, err
		}
		qrels, err := tables.LoadQrelsFile(ctx, store, cfg.Dataset.QrelsPath)
		if err != nil {
			return nil, nil, err
		}
		return scores, qrels, nil
	}
}

// Collections returns the lookups keyed by their public names.
func (d *Dataset) Collections() map[string]collection.Lookup {
	return map[string]collection.Lookup{
		QueriesCollection:   d.Queries,
		DocumentsCollection: d.Documents,
	}
}

// RegisterHealth adds checks for every dependency the Dataset holds.
func (d *Dataset) RegisterHealth(c *health.Checker) {
	c.Register(QueriesCollection, health.SizeCheck(d.Queries.Size))
	c.Register(DocumentsCollection, health.SizeCheck(d.Documents.Size))
	c.Register("pairs", health.SizeCheck(d.Sampler.Size))
	if d.redis != nil {
		c.Register("redis", health.PingCheck(d.redis.Ping, health.StatusDegraded))
	}
}

func (d *Dataset) Close() error {
	var errs []error
	for i := len(d.closers) - 1; i >= 0; i-- {
		if err := d.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	d.closers = nil
	return errors.Join(errs...)
}
