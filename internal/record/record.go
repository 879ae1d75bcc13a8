// Package record turns one JSON line of a shard into an (id, text) pair.
package record

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"sort"

	gojson "github.com/goccy/go-json"

	"github.com/Adithya-Monish-Kumar-K/retrieval-datasets/internal/tables"
	dserrors "github.com/Adithya-Monish-Kumar-K/retrieval-datasets/pkg/errors"
)

// Record is one entry of a collection.
type Record struct {
	ID   string `json:"id" msgpack:"id"`
	Text string `json:"text" msgpack:"text"`
}

type fields map[string]any

// strategy extracts a record from a decoded line. ok is false when the line
// does not have the shape the strategy expects.
type strategy struct {
	name    string
	extract func(f fields) (Record, bool)
}

// strategies are tried in order; the first match wins.
var strategies = []strategy{
	{name: "id+title+text", extract: titleText},
	{name: "id+text", extract: idText},
	{name: "doc_id+body+url", extract: bodyURL},
	{name: "query_id+text", extract: queryText},
}

// Decode parses line and extracts its record. Invalid JSON and lines no
// strategy understands are decode errors.
func Decode(line []byte) (Record, error) {
	dec := gojson.NewDecoder(bytes.NewReader(line))
	dec.UseNumber()
	var f fields
	if err := dec.Decode(&f); err != nil {
		return Record{}, dserrors.Newf(dserrors.ErrDecode, "record.Decode", "invalid json: %v", err)
	}
	var extra any
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return Record{}, dserrors.New(dserrors.ErrDecode, "record.Decode", "trailing data after json value")
	}
	if f == nil {
		return Record{}, dserrors.New(dserrors.ErrDecode, "record.Decode", "line is not a json object")
	}
	for _, s := range strategies {
		if rec, ok := s.extract(f); ok {
			return rec, nil
		}
	}
	return Record{}, dserrors.Newf(dserrors.ErrDecode, "record.Decode", "no known record shape in fields %v", keys(f))
}

// Encode renders r as the canonical id+text line.
func Encode(r Record) ([]byte, error) {
	return gojson.Marshal(r)
}

func titleText(f fields) (Record, bool) {
	title, ok := f.str("title")
	if !ok {
		return Record{}, false
	}
	text, ok := f.str("text")
	if !ok {
		return Record{}, false
	}
	id, ok := f.id("id", "doc_id", "_id")
	if !ok {
		return Record{}, false
	}
	return Record{ID: id, Text: join(title, text)}, true
}

func idText(f fields) (Record, bool) {
	text, ok := f.str("text")
	if !ok {
		return Record{}, false
	}
	id, ok := f.id("id")
	if !ok {
		return Record{}, false
	}
	return Record{ID: id, Text: text}, true
}

func bodyURL(f fields) (Record, bool) {
	body, ok := f.str("body")
	if !ok {
		return Record{}, false
	}
	url, ok := f.str("url")
	if !ok {
		return Record{}, false
	}
	id, ok := f.id("doc_id", "id")
	if !ok {
		return Record{}, false
	}
	return Record{ID: id, Text: join(body, url)}, true
}

func queryText(f fields) (Record, bool) {
	text, ok := f.str("text")
	if !ok {
		return Record{}, false
	}
	id, ok := f.id("query_id")
	if !ok {
		return Record{}, false
	}
	return Record{ID: id, Text: text}, true
}

func (f fields) str(key string) (string, bool) {
	s, ok := f[key].(string)
	return s, ok
}

// id returns the first of keys that holds a usable identifier.
func (f fields) id(keys ...string) (string, bool) {
	for _, k := range keys {
		v, present := f[k]
		if !present {
			continue
		}
		id, err := normalize(v)
		if err == nil {
			return id, true
		}
	}
	return "", false
}

func normalize(v any) (string, error) {
	n, ok := v.(gojson.Number)
	if !ok {
		return tables.NormalizeID(v)
	}
	if i, err := n.Int64(); err == nil {
		return tables.NormalizeID(i)
	}
	fl, err := n.Float64()
	if err != nil {
		return "", fmt.Errorf("number %s: %w", n, err)
	}
	return tables.NormalizeID(fl)
}

func join(a, b string) string {
	switch {
	case a == "":
		return b
	case b == "":
		return a
	}
	return a + " " + b
}

func keys(f fields) []string {
	out := make([]string, 0, len(f))
	for k := range f {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
