// Package shard maps global line positions onto the ordered shards of a
// collection. An Index is built once by counting every shard's lines and is
// read-only afterwards.
package shard

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/Adithya-Monish-Kumar-K/retrieval-datasets/internal/storage"
	dserrors "github.com/Adithya-Monish-Kumar-K/retrieval-datasets/pkg/errors"
)

// DefaultSuffix is the shard naming convention used when none is configured.
const DefaultSuffix = ".json.zstd"

// LineCounter reports the number of logical lines in a shard.
type LineCounter interface {
	CountLines(ctx context.Context, name string) (int, error)
}

// Entry is the half-open interval [Start, End) of global positions held by
// one shard.
type Entry struct {
	Name  string `json:"name"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

// Lines returns the number of lines in the shard.
func (e Entry) Lines() int {
	return e.End - e.Start
}

// Index holds the entries of a collection in shard-sort order.
type Index struct {
	entries []Entry
	total   int
}

// Options controls index building.
type Options struct {
	// Concurrency bounds how many shards are counted at once. Values below 1
	// count sequentially.
	Concurrency int
	Logger      *slog.Logger
}

// Discover lists the shards under dir whose names end in suffix, sorted
// lexicographically.
func Discover(ctx context.Context, store storage.Store, dir, suffix string) ([]string, error) {
	if suffix == "" {
		suffix = DefaultSuffix
	}
	names, err := store.List(ctx, dir)
	if err != nil {
		return nil, fmt.Errorf("discovering shards in %s: %w", dir, err)
	}
	shards := make([]string, 0, len(names))
	for _, name := range names {
		if strings.HasSuffix(name, suffix) {
			shards = append(shards, name)
		}
	}
	sort.Strings(shards)
	return shards, nil
}

// Build counts the lines of every shard and lays the shards end to end in
// lexicographic name order. Counting may run concurrently but the resulting
// index is identical to a sequential build.
func Build(ctx context.Context, counter LineCounter, names []string, opts Options) (*Index, error) {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default().With("component", "shard-index")
	}
	sorted := make([]string, len(names))
	copy(sorted, names)
	sort.Strings(sorted)

	counts := make([]int, len(sorted))
	g, gctx := errgroup.WithContext(ctx)
	limit := opts.Concurrency
	if limit < 1 {
		limit = 1
	}
	g.SetLimit(limit)
	for i, name := range sorted {
		g.Go(func() error {
			n, err := counter.CountLines(gctx, name)
			if err != nil {
				return fmt.Errorf("counting lines of %s: %w", name, err)
			}
			counts[i] = n
			logger.Debug("shard counted", "shard", name, "lines", n)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	idx := &Index{entries: make([]Entry, 0, len(sorted))}
	for i, name := range sorted {
		idx.entries = append(idx.entries, Entry{
			Name:  name,
			Start: idx.total,
			End:   idx.total + counts[i],
		})
		idx.total += counts[i]
	}
	logger.Info("shard index built", "shards", len(idx.entries), "total_lines", idx.total)
	return idx, nil
}

// Locate returns the entry owning global and the line's offset inside it.
func (x *Index) Locate(global int) (Entry, int, error) {
	if global < 0 || global >= x.total {
		return Entry{}, 0, dserrors.Newf(dserrors.ErrOutOfRange, "shard.Locate", "index %d outside [0, %d)", global, x.total)
	}
	// First entry ending after global; empty shards end where they start and
	// are skipped naturally.
	i := sort.Search(len(x.entries), func(i int) bool {
		return x.entries[i].End > global
	})
	entry := x.entries[i]
	return entry, global - entry.Start, nil
}

// Total returns the number of lines across all shards.
func (x *Index) Total() int {
	return x.total
}

// Len returns the number of shards.
func (x *Index) Len() int {
	return len(x.entries)
}

// Entries returns a copy of the index entries in order.
func (x *Index) Entries() []Entry {
	out := make([]Entry, len(x.entries))
	copy(out, x.entries)
	return out
}
