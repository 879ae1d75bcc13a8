// Package linereader decodes compressed, newline-delimited shard files one
// logical line at a time. Every call opens its own blob handle and
// decompression stream and releases both before returning, so a Reader can
// be shared by any number of goroutines.
package linereader

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/Adithya-Monish-Kumar-K/retrieval-datasets/internal/storage"
	dserrors "github.com/Adithya-Monish-Kumar-K/retrieval-datasets/pkg/errors"
)

const (
	readBufferSize = 64 * 1024
	// ctxCheckEvery bounds how many lines are skipped between context checks.
	ctxCheckEvery = 4096
)

// Reader counts and extracts lines from shards held in a storage.Store.
type Reader struct {
	store storage.Store
}

// NewReader creates a Reader over store.
func NewReader(store storage.Store) *Reader {
	return &Reader{store: store}
}

// open returns the decoded text stream of a shard together with a function
// that releases every handle it acquired.
func (r *Reader) open(ctx context.Context, name string) (io.Reader, func(), error) {
	raw, err := r.store.Open(ctx, name)
	if err != nil {
		return nil, nil, fmt.Errorf("opening shard %s: %w", name, err)
	}
	decoded, err := CodecFor(name).NewReader(raw)
	if err != nil {
		raw.Close()
		return nil, nil, dserrors.Newf(dserrors.ErrCorruptShard, "linereader.open", "%s: %v", name, err)
	}
	release := func() {
		decoded.Close()
		raw.Close()
	}
	return decoded, release, nil
}

// CountLines returns the number of logical lines in a shard. A trailing line
// without a terminator counts as a line.
func (r *Reader) CountLines(ctx context.Context, name string) (int, error) {
	stream, release, err := r.open(ctx, name)
	if err != nil {
		return 0, err
	}
	defer release()

	buf := make([]byte, readBufferSize)
	count := 0
	var last byte = '\n'
	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		n, err := stream.Read(buf)
		if n > 0 {
			count += bytes.Count(buf[:n], []byte{'\n'})
			last = buf[n-1]
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return 0, dserrors.Newf(dserrors.ErrCorruptShard, "linereader.CountLines", "%s: %v", name, err)
		}
	}
	if last != '\n' {
		count++
	}
	return count, nil
}

// ReadLine skips local lines of a shard and returns the next one without its
// line terminator.
func (r *Reader) ReadLine(ctx context.Context, name string, local int) ([]byte, error) {
	if local < 0 {
		return nil, dserrors.Newf(dserrors.ErrOutOfRange, "linereader.ReadLine", "negative local offset %d", local)
	}
	stream, release, err := r.open(ctx, name)
	if err != nil {
		return nil, err
	}
	defer release()

	br := bufio.NewReaderSize(stream, readBufferSize)
	for skipped := 0; skipped < local; skipped++ {
		if skipped%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		if err := skipLine(br); err != nil {
			if errors.Is(err, io.EOF) {
				return nil, dserrors.Newf(dserrors.ErrCorruptShard, "linereader.ReadLine",
					"%s ended after %d lines, wanted line %d", name, skipped, local)
			}
			return nil, dserrors.Newf(dserrors.ErrCorruptShard, "linereader.ReadLine", "%s: %v", name, err)
		}
	}

	line, err := br.ReadBytes('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, dserrors.Newf(dserrors.ErrCorruptShard, "linereader.ReadLine", "%s: %v", name, err)
	}
	if errors.Is(err, io.EOF) && len(line) == 0 {
		return nil, dserrors.Newf(dserrors.ErrCorruptShard, "linereader.ReadLine",
			"%s ended after %d lines, wanted line %d", name, local, local)
	}
	return trimEOL(line), nil
}

// Scan calls fn for every line of a shard in order, passing the local offset
// and the line without its terminator. The line is only valid until fn
// returns. A non-nil error from fn stops the scan and is returned as is.
func (r *Reader) Scan(ctx context.Context, name string, fn func(local int, line []byte) error) error {
	stream, release, err := r.open(ctx, name)
	if err != nil {
		return err
	}
	defer release()

	br := bufio.NewReaderSize(stream, readBufferSize)
	for local := 0; ; local++ {
		if local%ctxCheckEvery == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}
		line, err := br.ReadBytes('\n')
		if len(line) > 0 {
			if ferr := fn(local, trimEOL(line)); ferr != nil {
				return ferr
			}
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return dserrors.Newf(dserrors.ErrCorruptShard, "linereader.Scan", "%s: %v", name, err)
		}
	}
}

// skipLine consumes one line of any length. A final unterminated line is
// consumed without error; io.EOF is only returned when nothing was left.
func skipLine(br *bufio.Reader) error {
	consumed := false
	for {
		chunk, err := br.ReadSlice('\n')
		if len(chunk) > 0 {
			consumed = true
		}
		switch {
		case err == nil:
			return nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		case errors.Is(err, io.EOF):
			if consumed {
				return nil
			}
			return io.EOF
		default:
			return err
		}
	}
}

func trimEOL(line []byte) []byte {
	line = bytes.TrimSuffix(line, []byte{'\n'})
	return bytes.TrimSuffix(line, []byte{'\r'})
}
