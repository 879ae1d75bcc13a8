package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/retrieval-datasets/internal/collection"
	"github.com/Adithya-Monish-Kumar-K/retrieval-datasets/internal/storage"
	dserrors "github.com/Adithya-Monish-Kumar-K/retrieval-datasets/pkg/errors"
)

func TestPack_TSVInput(t *testing.T) {
	root := t.TempDir()
	in := filepath.Join(root, "corpus.tsv")
	require.NoError(t, os.WriteFile(in, []byte("d1\tfirst doc\nd2\tsecond doc\n\nd3\tthird doc\n"), 0o644))
	out := filepath.Join(root, "shards")
	ctx := context.Background()

	require.NoError(t, runPack(ctx, []string{
		"-in", in, "-format", "tsv", "-dir", out, "-codec", "gzip", "-lines-per-shard", "2",
	}))

	a, err := collection.Open(ctx, storage.NewLocal(out), collection.Options{
		Dir: ".", Suffix: ".json.gz", IndexIDs: true,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, a.Size())
	assert.Len(t, a.Shards(), 2)

	rec, err := a.GetByID(ctx, "d3")
	require.NoError(t, err)
	assert.Equal(t, "third doc", rec.Text)
}

func TestPack_RejectsUnknownCodecAndFormat(t *testing.T) {
	in := filepath.Join(t.TempDir(), "in.jsonl")
	require.NoError(t, os.WriteFile(in, []byte(`{"id":"a","text":"b"}`+"\n"), 0o644))
	ctx := context.Background()

	err := runPack(ctx, []string{"-in", in, "-dir", t.TempDir(), "-codec", "brotli"})
	require.ErrorContains(t, err, "unknown codec")
	err = runPack(ctx, []string{"-in", in, "-dir", t.TempDir(), "-format", "csv"})
	require.ErrorContains(t, err, "unknown format")
}

func TestPack_TSVWithoutTabIsDecodeError(t *testing.T) {
	in := filepath.Join(t.TempDir(), "bad.tsv")
	require.NoError(t, os.WriteFile(in, []byte("no tab here\n"), 0o644))
	err := runPack(context.Background(), []string{"-in", in, "-format", "tsv", "-dir", t.TempDir()})
	require.ErrorIs(t, err, dserrors.ErrDecode)
}

func TestPairs(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "pairs.tsv"),
		[]byte("q one\tpos one\tneg one\t12.5\t3\nq two\tpos two\tneg two\t9\t1\n"), 0o644))
	ctx := context.Background()

	require.NoError(t, runPairs(ctx, []string{"-root", root, "-file", "pairs.tsv", "-head", "1"}))
	require.NoError(t, runPairs(ctx, []string{"-root", root, "-file", "pairs.tsv", "-json"}))

	err := runPairs(ctx, []string{"-root", root, "-file", "missing.tsv"})
	require.ErrorIs(t, err, dserrors.ErrConfig)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abc…", truncate("abcdef", 4))
}
