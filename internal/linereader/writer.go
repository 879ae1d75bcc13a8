package linereader

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Writer creates compressed shard files in a local directory. The codec is
// chosen from the shard suffix so files read back with CodecFor.
type Writer struct {
	dataDir string
	suffix  string
	codec   Codec
}

// NewWriter creates a Writer that writes shards named <name><suffix> into
// dataDir.
func NewWriter(dataDir, suffix string) *Writer {
	return &Writer{
		dataDir: dataDir,
		suffix:  suffix,
		codec:   CodecFor(suffix),
	}
}

// Write atomically creates a shard holding lines, one per line. It writes to
// a .tmp file first and renames on success, returning the shard's path.
func (w *Writer) Write(name string, lines [][]byte) (string, error) {
	finalPath := filepath.Join(w.dataDir, name+w.suffix)
	tmpPath := finalPath + ".tmp"

	if err := os.MkdirAll(w.dataDir, 0o755); err != nil {
		return "", fmt.Errorf("creating shard directory: %w", err)
	}
	f, err := os.Create(tmpPath)
	if err != nil {
		return "", fmt.Errorf("creating temp shard file: %w", err)
	}
	defer os.Remove(tmpPath)
	defer f.Close()

	enc, err := w.codec.NewWriter(f)
	if err != nil {
		return "", fmt.Errorf("creating %s encoder: %w", w.codec.Name(), err)
	}
	for i, line := range lines {
		if bytes.IndexByte(line, '\n') >= 0 {
			return "", fmt.Errorf("line %d contains a newline", i)
		}
		if _, err := enc.Write(line); err != nil {
			return "", fmt.Errorf("writing line %d: %w", i, err)
		}
		if _, err := enc.Write([]byte{'\n'}); err != nil {
			return "", fmt.Errorf("writing line %d: %w", i, err)
		}
	}
	if err := enc.Close(); err != nil {
		return "", fmt.Errorf("closing %s encoder: %w", w.codec.Name(), err)
	}
	if err := f.Sync(); err != nil {
		return "", fmt.Errorf("syncing shard file: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("closing shard file: %w", err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return "", fmt.Errorf("renaming shard file: %w", err)
	}
	return finalPath, nil
}

// Pack splits a newline-delimited stream into shards of at most
// linesPerShard lines named <prefix>-00000<suffix>, <prefix>-00001<suffix>, ...
// so that lexicographic order matches input order. Blank lines are dropped.
func (w *Writer) Pack(ctx context.Context, r io.Reader, prefix string, linesPerShard int) ([]string, error) {
	if linesPerShard <= 0 {
		return nil, fmt.Errorf("lines per shard must be positive, got %d", linesPerShard)
	}
	br := bufio.NewReaderSize(r, readBufferSize)
	var (
		paths []string
		batch = make([][]byte, 0, linesPerShard)
	)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		path, err := w.Write(fmt.Sprintf("%s-%05d", prefix, len(paths)), batch)
		if err != nil {
			return err
		}
		paths = append(paths, path)
		batch = make([][]byte, 0, linesPerShard)
		return nil
	}
	for {
		if err := ctx.Err(); err != nil {
			return paths, err
		}
		line, err := br.ReadBytes('\n')
		if trimmed := trimEOL(line); len(bytes.TrimSpace(trimmed)) > 0 {
			batch = append(batch, trimmed)
			if len(batch) == linesPerShard {
				if ferr := flush(); ferr != nil {
					return paths, ferr
				}
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return paths, fmt.Errorf("reading input: %w", err)
		}
	}
	if err := flush(); err != nil {
		return paths, err
	}
	return paths, nil
}
