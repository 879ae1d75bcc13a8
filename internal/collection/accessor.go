package collection

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/retrieval-datasets/internal/linereader"
	"github.com/Adithya-Monish-Kumar-K/retrieval-datasets/internal/record"
	"github.com/Adithya-Monish-Kumar-K/retrieval-datasets/internal/shard"
	"github.com/Adithya-Monish-Kumar-K/retrieval-datasets/internal/storage"
	"github.com/Adithya-Monish-Kumar-K/retrieval-datasets/internal/tables"
	dserrors "github.com/Adithya-Monish-Kumar-K/retrieval-datasets/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/retrieval-datasets/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/retrieval-datasets/pkg/tracing"
)

// Options configures Open.
type Options struct {
	// Name labels the collection in logs and metrics.
	Name string
	// Dir is the directory (or key prefix) holding the shards.
	Dir string
	// Suffix selects shard files; empty means shard.DefaultSuffix.
	Suffix string
	// IndexIDs makes Open scan every record once to support GetByID.
	IndexIDs    bool
	Concurrency int
	Metrics     *metrics.Metrics
	Logger      *slog.Logger
}

// Accessor reads records from the shards of one collection. The shard index
// and id index are built by Open and never change; every Get opens its own
// stream, so an Accessor is safe for concurrent use.
type Accessor struct {
	name    string
	reader  *linereader.Reader
	index   *shard.Index
	ids     map[string]int
	metrics *metrics.Metrics
	logger  *slog.Logger
}

// Open discovers the shards under opts.Dir and indexes them. It blocks until
// every shard has been counted.
func Open(ctx context.Context, store storage.Store, opts Options) (*Accessor, error) {
	if opts.Name == "" {
		opts.Name = opts.Dir
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "collection", "collection", opts.Name)

	names, err := shard.Discover(ctx, store, opts.Dir, opts.Suffix)
	if err != nil {
		return nil, dserrors.Newf(dserrors.ErrConfig, "collection.Open", "%s: %v", opts.Name, err)
	}
	if len(names) == 0 {
		logger.Warn("no shards found", "dir", opts.Dir, "suffix", opts.Suffix)
	}

	reader := linereader.NewReader(store)
	idx, err := shard.Build(ctx, reader, names, shard.Options{
		Concurrency: opts.Concurrency,
		Logger:      logger,
	})
	if err != nil {
		return nil, fmt.Errorf("indexing %s: %w", opts.Name, err)
	}

	a := &Accessor{
		name:    opts.Name,
		reader:  reader,
		index:   idx,
		metrics: opts.Metrics,
		logger:  logger,
	}
	if opts.IndexIDs {
		start := time.Now()
		if err := a.buildIDIndex(ctx, opts.Concurrency); err != nil {
			return nil, fmt.Errorf("indexing ids of %s: %w", opts.Name, err)
		}
		logger.Info("id index built", "ids", len(a.ids), "duration", time.Since(start))
	}
	a.metrics.SetCollection(a.name, idx.Total(), idx.Len())
	logger.Info("collection opened", "records", idx.Total(), "shards", idx.Len())
	return a, nil
}

// buildIDIndex scans every shard and maps each record id to its global
// position. When an id repeats, its first position wins.
func (a *Accessor) buildIDIndex(ctx context.Context, concurrency int) error {
	entries := a.index.Entries()
	perShard := make([][]string, len(entries))

	g, gctx := errgroup.WithContext(ctx)
	if concurrency < 1 {
		concurrency = 1
	}
	g.SetLimit(concurrency)
	for i, e := range entries {
		if e.Lines() == 0 {
			continue
		}
		g.Go(func() error {
			ids := make([]string, 0, e.Lines())
			err := a.reader.Scan(gctx, e.Name, func(local int, line []byte) error {
				rec, err := record.Decode(line)
				if err != nil {
					return fmt.Errorf("%s line %d: %w", e.Name, local, err)
				}
				ids = append(ids, rec.ID)
				return nil
			})
			if err != nil {
				return err
			}
			if len(ids) != e.Lines() {
				return dserrors.Newf(dserrors.ErrCorruptShard, "collection.buildIDIndex",
					"%s has %d lines, indexed with %d", e.Name, len(ids), e.Lines())
			}
			perShard[i] = ids
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	a.ids = make(map[string]int, a.index.Total())
	duplicates := 0
	for i, e := range entries {
		for local, id := range perShard[i] {
			if _, seen := a.ids[id]; seen {
				duplicates++
				continue
			}
			a.ids[id] = e.Start + local
		}
	}
	if duplicates > 0 {
		a.logger.Warn("duplicate record ids, keeping first occurrence", "duplicates", duplicates)
	}
	return nil
}

// Name returns the collection label.
func (a *Accessor) Name() string {
	return a.name
}

// Size returns the total number of records.
func (a *Accessor) Size() int {
	return a.index.Total()
}

// Shards returns the shard intervals in global order.
func (a *Accessor) Shards() []shard.Entry {
	return a.index.Entries()
}

// Fingerprint identifies the shard set by shard names and line counts.
func (a *Accessor) Fingerprint() string {
	h := sha256.New()
	for _, e := range a.index.Entries() {
		fmt.Fprintf(h, "%s\x00%d\n", e.Name, e.Lines())
	}
	return hex.EncodeToString(h.Sum(nil)[:8])
}

// Get returns the record at global position i. Errors from the shard index,
// the line reader and the record decoder are returned unchanged.
func (a *Accessor) Get(ctx context.Context, i int) (record.Record, error) {
	start := time.Now()
	ctx, span := tracing.StartChildSpan(ctx, "collection.get")
	defer span.End()
	span.SetAttr("collection", a.name)
	span.SetAttr("index", i)

	entry, local, err := a.index.Locate(i)
	if err != nil {
		a.metrics.ObserveLookup(a.name, err, time.Since(start), -1)
		return record.Record{}, err
	}
	span.SetAttr("shard", entry.Name)
	span.SetAttr("skipped", local)
	line, err := a.reader.ReadLine(ctx, entry.Name, local)
	if err != nil {
		a.metrics.ObserveLookup(a.name, err, time.Since(start), local)
		return record.Record{}, err
	}
	rec, err := record.Decode(line)
	a.metrics.ObserveLookup(a.name, err, time.Since(start), local)
	if err != nil {
		a.logger.Debug("undecodable record", "index", i, "shard", entry.Name, "line", local, "error", err)
		return record.Record{}, err
	}
	return rec, nil
}

// GetByID returns the record whose canonical id is id. It needs the id index
// built by Options.IndexIDs.
func (a *Accessor) GetByID(ctx context.Context, id string) (record.Record, error) {
	if a.ids == nil {
		return record.Record{}, dserrors.Newf(dserrors.ErrNotFound, "collection.GetByID", "%s was opened without an id index", a.name)
	}
	key, err := tables.NormalizeID(id)
	if err != nil {
		return record.Record{}, dserrors.Newf(dserrors.ErrNotFound, "collection.GetByID", "%v", err)
	}
	i, ok := a.ids[key]
	if !ok {
		return record.Record{}, dserrors.Newf(dserrors.ErrNotFound, "collection.GetByID", "id %q not in %s", id, a.name)
	}
	return a.Get(ctx, i)
}
