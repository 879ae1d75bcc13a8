// Package collection gives random access to the records of a logical
// collection. The main implementation, Accessor, reads records on demand
// from compressed line-delimited shards; Memory, Cached and Remote provide
// the same interface over a slice, a Redis cache and the dataset daemon.
package collection

import (
	"context"

	"github.com/Adithya-Monish-Kumar-K/retrieval-datasets/internal/record"
)

// Collection is a fixed-size, read-only sequence of records.
type Collection interface {
	Size() int
	Get(ctx context.Context, i int) (record.Record, error)
}

// Lookup is a Collection that can also resolve records by canonical id.
type Lookup interface {
	Collection
	GetByID(ctx context.Context, id string) (record.Record, error)
}

var (
	_ Lookup = (*Accessor)(nil)
	_ Lookup = (*Memory)(nil)
	_ Lookup = (*Cached)(nil)
	_ Lookup = (*Remote)(nil)
)
