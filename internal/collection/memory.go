package collection

import (
	"bufio"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/retrieval-datasets/internal/record"
	"github.com/Adithya-Monish-Kumar-K/retrieval-datasets/internal/tables"
	dserrors "github.com/Adithya-Monish-Kumar-K/retrieval-datasets/pkg/errors"
)

// Memory is an in-memory collection that keeps records in the order they
// were given.
type Memory struct {
	records []record.Record
	ids     map[string]int
}

// NewMemory builds a Memory from records. Ids are normalized; a repeated id
// is an error.
func NewMemory(records []record.Record) (*Memory, error) {
	m := &Memory{
		records: make([]record.Record, 0, len(records)),
		ids:     make(map[string]int, len(records)),
	}
	for i, r := range records {
		id, err := tables.NormalizeID(r.ID)
		if err != nil {
			return nil, dserrors.Newf(dserrors.ErrInvalidInput, "collection.NewMemory", "record %d: %v", i, err)
		}
		if _, dup := m.ids[id]; dup {
			return nil, dserrors.Newf(dserrors.ErrInvalidInput, "collection.NewMemory", "duplicate id %q at record %d", id, i)
		}
		m.ids[id] = len(m.records)
		m.records = append(m.records, record.Record{ID: id, Text: r.Text})
	}
	return m, nil
}

// Fingerprint hashes every id and text in order.
func (m *Memory) Fingerprint() string {
	h := sha256.New()
	for _, r := range m.records {
		fmt.Fprintf(h, "%s\x00%s\x00", r.ID, r.Text)
	}
	return hex.EncodeToString(h.Sum(nil)[:8])
}

// LoadTSV reads "id<TAB>text" lines into a Memory. Blank lines are skipped;
// a line without a tab is a decode error.
func LoadTSV(r io.Reader) (*Memory, error) {
	br := bufio.NewReader(r)
	var records []record.Record
	for lineNo := 1; ; lineNo++ {
		line, err := br.ReadString('\n')
		if err != nil && !errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("reading line %d: %w", lineNo, err)
		}
		trimmed := strings.TrimRight(line, "\r\n")
		if strings.TrimSpace(trimmed) != "" {
			id, text, ok := strings.Cut(trimmed, "\t")
			if !ok {
				return nil, dserrors.Newf(dserrors.ErrDecode, "collection.LoadTSV", "line %d has no tab separator", lineNo)
			}
			records = append(records, record.Record{ID: id, Text: strings.TrimSpace(text)})
		}
		if errors.Is(err, io.EOF) {
			break
		}
	}
	return NewMemory(records)
}

func (m *Memory) Size() int {
	return len(m.records)
}

func (m *Memory) Get(_ context.Context, i int) (record.Record, error) {
	if i < 0 || i >= len(m.records) {
		return record.Record{}, dserrors.Newf(dserrors.ErrOutOfRange, "collection.Memory.Get", "index %d outside [0, %d)", i, len(m.records))
	}
	return m.records[i], nil
}

func (m *Memory) GetByID(_ context.Context, id string) (record.Record, error) {
	key, err := tables.NormalizeID(id)
	if err != nil {
		return record.Record{}, dserrors.Newf(dserrors.ErrNotFound, "collection.Memory.GetByID", "%v", err)
	}
	i, ok := m.ids[key]
	if !ok {
		return record.Record{}, dserrors.Newf(dserrors.ErrNotFound, "collection.Memory.GetByID", "id %q", id)
	}
	return m.records[i], nil
}
