package linereader

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/retrieval-datasets/internal/storage"
	dserrors "github.com/Adithya-Monish-Kumar-K/retrieval-datasets/pkg/errors"
)

func lines(ss ...string) [][]byte {
	out := make([][]byte, len(ss))
	for i, s := range ss {
		out[i] = []byte(s)
	}
	return out
}

func TestReader_CodecsRoundTrip(t *testing.T) {
	for _, suffix := range []string{".json.zstd", ".json.gz", ".json.lz4", ".jsonl"} {
		t.Run(suffix, func(t *testing.T) {
			dir := t.TempDir()
			path, err := NewWriter(dir, suffix).Write("shard", lines("alpha", "beta", "gamma"))
			require.NoError(t, err)

			r := NewReader(storage.NewLocal(""))
			ctx := context.Background()

			n, err := r.CountLines(ctx, path)
			require.NoError(t, err)
			assert.Equal(t, 3, n)

			for i, want := range []string{"alpha", "beta", "gamma"} {
				got, err := r.ReadLine(ctx, path, i)
				require.NoError(t, err)
				assert.Equal(t, want, string(got))
			}
		})
	}
}

func TestReader_ReadLinePastEndIsCorruptShard(t *testing.T) {
	path, err := NewWriter(t.TempDir(), ".json.zstd").Write("shard", lines("a", "b"))
	require.NoError(t, err)

	r := NewReader(storage.NewLocal(""))
	_, err = r.ReadLine(context.Background(), path, 2)
	require.ErrorIs(t, err, dserrors.ErrCorruptShard)

	_, err = r.ReadLine(context.Background(), path, 7)
	require.ErrorIs(t, err, dserrors.ErrCorruptShard)
}

func TestReader_UnterminatedFinalLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "raw.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("one\r\ntwo\nthree"), 0o644))

	r := NewReader(storage.NewLocal(""))
	n, err := r.CountLines(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	first, err := r.ReadLine(context.Background(), path, 0)
	require.NoError(t, err)
	assert.Equal(t, "one", string(first))

	last, err := r.ReadLine(context.Background(), path, 2)
	require.NoError(t, err)
	assert.Equal(t, "three", string(last))
}

func TestReader_EmptyShard(t *testing.T) {
	path, err := NewWriter(t.TempDir(), ".json.zstd").Write("empty", nil)
	require.NoError(t, err)

	r := NewReader(storage.NewLocal(""))
	n, err := r.CountLines(context.Background(), path)
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = r.ReadLine(context.Background(), path, 0)
	require.ErrorIs(t, err, dserrors.ErrCorruptShard)
}

func TestReader_LongLines(t *testing.T) {
	long := strings.Repeat("x", 3*readBufferSize+17)
	path, err := NewWriter(t.TempDir(), ".json.zstd").Write("long", lines(long, "short", long))
	require.NoError(t, err)

	r := NewReader(storage.NewLocal(""))
	got, err := r.ReadLine(context.Background(), path, 1)
	require.NoError(t, err)
	assert.Equal(t, "short", string(got))

	got, err = r.ReadLine(context.Background(), path, 2)
	require.NoError(t, err)
	assert.Len(t, got, len(long))
}

func TestReader_GarbageIsCorruptShard(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json.zstd")
	require.NoError(t, os.WriteFile(path, bytes.Repeat([]byte{0xde, 0xad, 0xbe, 0xef}, 64), 0o644))

	r := NewReader(storage.NewLocal(""))
	_, err := r.CountLines(context.Background(), path)
	require.ErrorIs(t, err, dserrors.ErrCorruptShard)
}

func TestReader_MissingShard(t *testing.T) {
	r := NewReader(storage.NewLocal(""))
	_, err := r.ReadLine(context.Background(), filepath.Join(t.TempDir(), "nope.json.zstd"), 0)
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestReader_NegativeOffset(t *testing.T) {
	r := NewReader(storage.NewLocal(""))
	_, err := r.ReadLine(context.Background(), "ignored", -1)
	require.ErrorIs(t, err, dserrors.ErrOutOfRange)
}

func TestWriter_RejectsEmbeddedNewline(t *testing.T) {
	_, err := NewWriter(t.TempDir(), ".json.zstd").Write("bad", lines("a\nb"))
	require.Error(t, err)
}

func TestWriter_Pack(t *testing.T) {
	dir := t.TempDir()
	input := "l0\nl1\n\nl2\nl3\nl4"
	paths, err := NewWriter(dir, ".json.zstd").Pack(context.Background(), strings.NewReader(input), "part", 2)
	require.NoError(t, err)
	require.Len(t, paths, 3)
	assert.Equal(t, filepath.Join(dir, "part-00000.json.zstd"), paths[0])
	assert.Equal(t, filepath.Join(dir, "part-00002.json.zstd"), paths[2])

	r := NewReader(storage.NewLocal(""))
	n, err := r.CountLines(context.Background(), paths[2])
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	got, err := r.ReadLine(context.Background(), paths[1], 1)
	require.NoError(t, err)
	assert.Equal(t, "l3", string(got))
}

func TestCodecFor(t *testing.T) {
	assert.Equal(t, "zstd", CodecFor("a.json.zstd").Name())
	assert.Equal(t, "zstd", CodecFor("a.zst").Name())
	assert.Equal(t, "gzip", CodecFor("a.json.gz").Name())
	assert.Equal(t, "lz4", CodecFor("a.lz4").Name())
	assert.Equal(t, "plain", CodecFor("a.jsonl").Name())

	c, ok := CodecByName("lz4")
	require.True(t, ok)
	assert.Equal(t, LZ4, c)
	_, ok = CodecByName("brotli")
	assert.False(t, ok)

	for _, c := range []Codec{Zstd, Gzip, LZ4, Plain} {
		assert.Equal(t, c, CodecFor("part-000.json"+c.Suffix()), c.Name())
	}
}

func TestReader_Scan(t *testing.T) {
	path, err := NewWriter(t.TempDir(), ".json.gz").Write("shard", lines("one", "two", "three"))
	require.NoError(t, err)

	r := NewReader(storage.NewLocal(""))
	var got []string
	var offsets []int
	err = r.Scan(context.Background(), path, func(local int, line []byte) error {
		offsets = append(offsets, local)
		got = append(got, string(line))
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two", "three"}, got)
	assert.Equal(t, []int{0, 1, 2}, offsets)

	stop := errors.New("stop")
	calls := 0
	err = r.Scan(context.Background(), path, func(int, []byte) error {
		calls++
		return stop
	})
	require.ErrorIs(t, err, stop)
	assert.Equal(t, 1, calls)
}
