package tables

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/Adithya-Monish-Kumar-K/retrieval-datasets/internal/linereader"
	"github.com/Adithya-Monish-Kumar-K/retrieval-datasets/internal/storage"
	dserrors "github.com/Adithya-Monish-Kumar-K/retrieval-datasets/pkg/errors"
)

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

type candidateSet struct {
	ids    []string
	scores map[string]float64
}

// ScoreTable maps a query id to its candidate documents and their scores.
// Query and candidate order is the order the producer wrote them in.
type ScoreTable struct {
	queries []string
	byQuery map[string]*candidateSet
}

// Len returns the number of queries.
func (t *ScoreTable) Len() int {
	return len(t.queries)
}

// Queries returns the query ids in table order.
func (t *ScoreTable) Queries() []string {
	out := make([]string, len(t.queries))
	copy(out, t.queries)
	return out
}

// Has reports whether the table holds candidates for query.
func (t *ScoreTable) Has(query string) bool {
	_, ok := t.byQuery[query]
	return ok
}

// Candidates returns a copy of the candidate ids of query in table order.
func (t *ScoreTable) Candidates(query string) []string {
	set, ok := t.byQuery[query]
	if !ok {
		return nil
	}
	out := make([]string, len(set.ids))
	copy(out, set.ids)
	return out
}

// Score returns the score of candidate doc for query.
func (t *ScoreTable) Score(query, doc string) (float64, bool) {
	set, ok := t.byQuery[query]
	if !ok {
		return 0, false
	}
	s, ok := set.scores[doc]
	return s, ok
}

// ScoreTableBuilder accumulates normalized entries into a ScoreTable.
type ScoreTableBuilder struct {
	table *ScoreTable
}

func NewScoreTableBuilder() *ScoreTableBuilder {
	return &ScoreTableBuilder{table: &ScoreTable{byQuery: make(map[string]*candidateSet)}}
}

// Add records score for (query, doc). Ids may be strings or integers. Two
// entries that normalize to the same pair are rejected because their scores
// cannot be told apart.
func (b *ScoreTableBuilder) Add(query, doc any, score float64) error {
	q, err := NormalizeID(query)
	if err != nil {
		return fmt.Errorf("query id: %w", err)
	}
	d, err := NormalizeID(doc)
	if err != nil {
		return fmt.Errorf("candidate id for query %s: %w", q, err)
	}
	set := b.ensure(q)
	if _, dup := set.scores[d]; dup {
		return fmt.Errorf("duplicate candidate %s for query %s", d, q)
	}
	set.ids = append(set.ids, d)
	set.scores[d] = score
	return nil
}

// AddQuery registers query even if it ends up with no candidates.
func (b *ScoreTableBuilder) AddQuery(query any) error {
	q, err := NormalizeID(query)
	if err != nil {
		return fmt.Errorf("query id: %w", err)
	}
	b.ensure(q)
	return nil
}

func (b *ScoreTableBuilder) ensure(q string) *candidateSet {
	set, ok := b.table.byQuery[q]
	if !ok {
		set = &candidateSet{scores: make(map[string]float64)}
		b.table.byQuery[q] = set
		b.table.queries = append(b.table.queries, q)
	}
	return set
}

// Build returns the table. The builder must not be used afterwards.
func (b *ScoreTableBuilder) Build() *ScoreTable {
	t := b.table
	b.table = nil
	return t
}

// LoadScores decodes a score blob: a msgpack map of
// query_id -> {candidate_id -> score}, optionally gzip or zstd compressed
// (detected from the magic bytes). Keys may be strings or integers and
// scores integers or floats. Any failure is a configuration error.
func LoadScores(r io.Reader) (*ScoreTable, error) {
	br := bufio.NewReader(r)
	stream, closeFn, err := decompress(br)
	if err != nil {
		return nil, dserrors.Newf(dserrors.ErrConfig, "tables.LoadScores", "opening score blob: %v", err)
	}
	defer closeFn()

	dec := msgpack.NewDecoder(stream)
	b := NewScoreTableBuilder()
	n, err := dec.DecodeMapLen()
	if err != nil {
		return nil, dserrors.Newf(dserrors.ErrConfig, "tables.LoadScores", "reading query map: %v", err)
	}
	for i := 0; i < n; i++ {
		rawQuery, err := dec.DecodeInterfaceLoose()
		if err != nil {
			return nil, dserrors.Newf(dserrors.ErrConfig, "tables.LoadScores", "reading query %d: %v", i, err)
		}
		if err := b.AddQuery(rawQuery); err != nil {
			return nil, dserrors.Newf(dserrors.ErrConfig, "tables.LoadScores", "query %d: %v", i, err)
		}
		m, err := dec.DecodeMapLen()
		if err != nil {
			return nil, dserrors.Newf(dserrors.ErrConfig, "tables.LoadScores", "reading candidates of query %v: %v", rawQuery, err)
		}
		for j := 0; j < m; j++ {
			rawDoc, err := dec.DecodeInterfaceLoose()
			if err != nil {
				return nil, dserrors.Newf(dserrors.ErrConfig, "tables.LoadScores", "reading candidate of query %v: %v", rawQuery, err)
			}
			score, err := dec.DecodeFloat64()
			if err != nil {
				return nil, dserrors.Newf(dserrors.ErrConfig, "tables.LoadScores", "reading score of %v/%v: %v", rawQuery, rawDoc, err)
			}
			if err := b.Add(rawQuery, rawDoc, score); err != nil {
				return nil, dserrors.Newf(dserrors.ErrConfig, "tables.LoadScores", "%v", err)
			}
		}
	}
	return b.Build(), nil
}

// LoadScoresFile opens name in store and decodes it with LoadScores.
func LoadScoresFile(ctx context.Context, store storage.Store, name string) (*ScoreTable, error) {
	rc, err := store.Open(ctx, name)
	if err != nil {
		return nil, dserrors.Newf(dserrors.ErrConfig, "tables.LoadScoresFile", "%v", err)
	}
	defer rc.Close()
	return LoadScores(rc)
}

// WriteScores encodes t in the format LoadScores reads, compressed with
// codec (nil writes plain msgpack).
func WriteScores(w io.Writer, codec linereader.Codec, t *ScoreTable) error {
	if codec == nil {
		codec = linereader.Plain
	}
	cw, err := codec.NewWriter(w)
	if err != nil {
		return fmt.Errorf("creating %s writer: %w", codec.Name(), err)
	}
	enc := msgpack.NewEncoder(cw)
	if err := enc.EncodeMapLen(len(t.queries)); err != nil {
		return err
	}
	for _, q := range t.queries {
		set := t.byQuery[q]
		if err := enc.EncodeString(q); err != nil {
			return err
		}
		if err := enc.EncodeMapLen(len(set.ids)); err != nil {
			return err
		}
		for _, d := range set.ids {
			if err := enc.EncodeString(d); err != nil {
				return err
			}
			if err := enc.EncodeFloat64(set.scores[d]); err != nil {
				return err
			}
		}
	}
	return cw.Close()
}

func decompress(br *bufio.Reader) (io.Reader, func(), error) {
	head, err := br.Peek(4)
	if err != nil && len(head) == 0 {
		return nil, nil, fmt.Errorf("empty blob: %w", err)
	}
	var codec linereader.Codec
	switch {
	case bytes.HasPrefix(head, zstdMagic):
		codec = linereader.Zstd
	case bytes.HasPrefix(head, gzipMagic):
		codec = linereader.Gzip
	default:
		return br, func() {}, nil
	}
	rc, err := codec.NewReader(br)
	if err != nil {
		return nil, nil, err
	}
	return rc, func() { rc.Close() }, nil
}
