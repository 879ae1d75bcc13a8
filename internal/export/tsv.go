package export

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/Adithya-Monish-Kumar-K/retrieval-datasets/internal/pairs"
	"github.com/Adithya-Monish-Kumar-K/retrieval-datasets/internal/sampler"
)

// TSVSink writes pairs as 5-column rows.
type TSVSink struct {
	w      *pairs.Writer
	closer io.Closer
}

// NewTSVSink writes to w and closes it on Close.
func NewTSVSink(w io.WriteCloser) *TSVSink {
	return &TSVSink{w: pairs.NewWriter(w), closer: w}
}

// CreateTSVSink creates (or truncates) the file at path.
func CreateTSVSink(path string) (*TSVSink, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("creating output directory: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("creating pair file: %w", err)
	}
	return NewTSVSink(f), nil
}

func (s *TSVSink) Name() string { return "tsv" }

func (s *TSVSink) Write(_ context.Context, p sampler.Pair) error {
	return s.w.Write(p)
}

func (s *TSVSink) Close(_ context.Context) error {
	flushErr := s.w.Flush()
	closeErr := s.closer.Close()
	if flushErr != nil {
		return fmt.Errorf("flushing pair file: %w", flushErr)
	}
	return closeErr
}
