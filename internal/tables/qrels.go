package tables

import (
	"context"
	"fmt"
	"io"
	"sort"

	gojson "github.com/goccy/go-json"

	"github.com/Adithya-Monish-Kumar-K/retrieval-datasets/internal/storage"
	dserrors "github.com/Adithya-Monish-Kumar-K/retrieval-datasets/pkg/errors"
)

// QrelsTable maps a query id to its judged-relevant documents.
type QrelsTable struct {
	byQuery map[string]map[string]int
}

// Len returns the number of judged queries.
func (t *QrelsTable) Len() int {
	return len(t.byQuery)
}

// Has reports whether query has any judgments.
func (t *QrelsTable) Has(query string) bool {
	_, ok := t.byQuery[query]
	return ok
}

// Positives returns the judged document ids of query, sorted.
func (t *QrelsTable) Positives(query string) []string {
	docs := t.byQuery[query]
	out := make([]string, 0, len(docs))
	for d := range docs {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// Relevance returns the judged relevance of doc for query.
func (t *QrelsTable) Relevance(query, doc string) (int, bool) {
	rel, ok := t.byQuery[query][doc]
	return rel, ok
}

// QrelsTableBuilder accumulates normalized judgments into a QrelsTable.
type QrelsTableBuilder struct {
	table *QrelsTable
}

func NewQrelsTableBuilder() *QrelsTableBuilder {
	return &QrelsTableBuilder{table: &QrelsTable{byQuery: make(map[string]map[string]int)}}
}

// Add records a judgment. Repeated judgments of the same pair keep the
// highest relevance.
func (b *QrelsTableBuilder) Add(query, doc any, relevance int) error {
	q, err := NormalizeID(query)
	if err != nil {
		return fmt.Errorf("query id: %w", err)
	}
	d, err := NormalizeID(doc)
	if err != nil {
		return fmt.Errorf("document id for query %s: %w", q, err)
	}
	docs := b.ensure(q)
	if prev, seen := docs[d]; !seen || relevance > prev {
		docs[d] = relevance
	}
	return nil
}

// AddQuery registers query even if it has no judged documents.
func (b *QrelsTableBuilder) AddQuery(query any) error {
	q, err := NormalizeID(query)
	if err != nil {
		return fmt.Errorf("query id: %w", err)
	}
	b.ensure(q)
	return nil
}

func (b *QrelsTableBuilder) ensure(q string) map[string]int {
	docs, ok := b.table.byQuery[q]
	if !ok {
		docs = make(map[string]int)
		b.table.byQuery[q] = docs
	}
	return docs
}

// Build returns the table. The builder must not be used afterwards.
func (b *QrelsTableBuilder) Build() *QrelsTable {
	t := b.table
	b.table = nil
	return t
}

// LoadQrels decodes a JSON object of query_id -> {doc_id -> relevance}.
// Any failure is a configuration error.
func LoadQrels(r io.Reader) (*QrelsTable, error) {
	var raw map[string]map[string]float64
	if err := gojson.NewDecoder(r).Decode(&raw); err != nil {
		return nil, dserrors.Newf(dserrors.ErrConfig, "tables.LoadQrels", "decoding qrels: %v", err)
	}
	b := NewQrelsTableBuilder()
	for q, docs := range raw {
		if err := b.AddQuery(q); err != nil {
			return nil, dserrors.Newf(dserrors.ErrConfig, "tables.LoadQrels", "%v", err)
		}
		for d, rel := range docs {
			if err := b.Add(q, d, int(rel)); err != nil {
				return nil, dserrors.Newf(dserrors.ErrConfig, "tables.LoadQrels", "%v", err)
			}
		}
	}
	return b.Build(), nil
}

// LoadQrelsFile opens name in store and decodes it with LoadQrels.
func LoadQrelsFile(ctx context.Context, store storage.Store, name string) (*QrelsTable, error) {
	rc, err := store.Open(ctx, name)
	if err != nil {
		return nil, dserrors.Newf(dserrors.ErrConfig, "tables.LoadQrelsFile", "%v", err)
	}
	defer rc.Close()
	return LoadQrels(rc)
}
