// Package storage abstracts where shard files and table blobs live. Shards
// are immutable once written, so a store only needs to enumerate and stream
// them.
package storage

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/Adithya-Monish-Kumar-K/retrieval-datasets/pkg/config"
)

// ErrNotFound is returned when a blob does not exist. It aliases
// os.ErrNotExist so callers can use either.
var ErrNotFound = os.ErrNotExist

// Store is a read-only view over a set of named blobs.
type Store interface {
	// List returns the names of the blobs directly under dir, sorted
	// lexicographically.
	List(ctx context.Context, dir string) ([]string, error)
	// Open streams a blob. Each call returns an independent handle that the
	// caller must close.
	Open(ctx context.Context, name string) (io.ReadCloser, error)
}

// New builds the store selected by cfg.Backend.
func New(cfg config.StorageConfig) (Store, error) {
	switch cfg.Backend {
	case "", config.BackendLocal:
		return NewLocal(cfg.Root), nil
	case config.BackendMinio:
		return NewMinioFromConfig(cfg)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}
