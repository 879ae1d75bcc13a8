package shard

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/retrieval-datasets/internal/storage"
	dserrors "github.com/Adithya-Monish-Kumar-K/retrieval-datasets/pkg/errors"
)

type fakeCounter map[string]int

func (f fakeCounter) CountLines(_ context.Context, name string) (int, error) {
	n, ok := f[name]
	if !ok {
		return 0, errors.New("no such shard")
	}
	return n, nil
}

func TestBuild_PartitionsWithoutGaps(t *testing.T) {
	counter := fakeCounter{"c": 2, "a": 3, "b": 5}
	idx, err := Build(context.Background(), counter, []string{"c", "a", "b"}, Options{Concurrency: 3})
	require.NoError(t, err)

	assert.Equal(t, 10, idx.Total())
	assert.Equal(t, 3, idx.Len())
	entries := idx.Entries()
	assert.Equal(t, []Entry{
		{Name: "a", Start: 0, End: 3},
		{Name: "b", Start: 3, End: 8},
		{Name: "c", Start: 8, End: 10},
	}, entries)

	prevEnd := 0
	for _, e := range entries {
		assert.Equal(t, prevEnd, e.Start)
		assert.GreaterOrEqual(t, e.End, e.Start)
		prevEnd = e.End
	}
	assert.Equal(t, idx.Total(), prevEnd)
}

func TestLocate(t *testing.T) {
	counter := fakeCounter{"s1": 3, "s2": 5, "s3": 2}
	idx, err := Build(context.Background(), counter, []string{"s1", "s2", "s3"}, Options{})
	require.NoError(t, err)

	tests := []struct {
		global int
		shard  string
		local  int
	}{
		{0, "s1", 0},
		{2, "s1", 2},
		{3, "s2", 0},
		{7, "s2", 4},
		{8, "s3", 0},
		{9, "s3", 1},
	}
	for _, tt := range tests {
		entry, local, err := idx.Locate(tt.global)
		require.NoError(t, err)
		assert.Equal(t, tt.shard, entry.Name, "global %d", tt.global)
		assert.Equal(t, tt.local, local, "global %d", tt.global)
	}

	for _, bad := range []int{-1, 10, 100} {
		_, _, err := idx.Locate(bad)
		require.ErrorIs(t, err, dserrors.ErrOutOfRange)
	}
}

func TestLocate_SkipsEmptyShards(t *testing.T) {
	counter := fakeCounter{"a": 0, "b": 2, "c": 0, "d": 1}
	idx, err := Build(context.Background(), counter, []string{"a", "b", "c", "d"}, Options{})
	require.NoError(t, err)

	entry, local, err := idx.Locate(0)
	require.NoError(t, err)
	assert.Equal(t, "b", entry.Name)
	assert.Equal(t, 0, local)

	entry, local, err = idx.Locate(2)
	require.NoError(t, err)
	assert.Equal(t, "d", entry.Name)
	assert.Equal(t, 0, local)
}

func TestLocate_EmptyCorpus(t *testing.T) {
	idx, err := Build(context.Background(), fakeCounter{}, nil, Options{})
	require.NoError(t, err)
	assert.Zero(t, idx.Total())
	_, _, err = idx.Locate(0)
	require.ErrorIs(t, err, dserrors.ErrOutOfRange)
}

func TestBuild_PropagatesCountErrors(t *testing.T) {
	_, err := Build(context.Background(), fakeCounter{"a": 1}, []string{"a", "missing"}, Options{Concurrency: 2})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")
}

func TestDiscover_FiltersBySuffixAndSorts(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"part-2.json.zstd", "part-10.json.zstd", "part-1.json.zstd", "README.md"} {
		require.NoError(t, os.WriteFile(filepath.Join(root, name), nil, 0o644))
	}
	names, err := Discover(context.Background(), storage.NewLocal(root), ".", "")
	require.NoError(t, err)
	assert.Equal(t, []string{"part-1.json.zstd", "part-10.json.zstd", "part-2.json.zstd"}, names)
}
