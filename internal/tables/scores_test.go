package tables

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/Adithya-Monish-Kumar-K/retrieval-datasets/internal/linereader"
	"github.com/Adithya-Monish-Kumar-K/retrieval-datasets/internal/storage"
	dserrors "github.com/Adithya-Monish-Kumar-K/retrieval-datasets/pkg/errors"
)

func sampleScores(t *testing.T) *ScoreTable {
	t.Helper()
	b := NewScoreTableBuilder()
	require.NoError(t, b.Add("q1", "1", 0.9))
	require.NoError(t, b.Add("q1", "2", 0.5))
	require.NoError(t, b.Add("q1", "3", 0.2))
	require.NoError(t, b.Add(int64(7), int64(70), 3))
	return b.Build()
}

func TestScoreTable_Accessors(t *testing.T) {
	table := sampleScores(t)
	assert.Equal(t, 2, table.Len())
	assert.Equal(t, []string{"q1", "7"}, table.Queries())
	assert.Equal(t, []string{"1", "2", "3"}, table.Candidates("q1"))
	assert.True(t, table.Has("7"))
	assert.False(t, table.Has("q2"))
	assert.Nil(t, table.Candidates("q2"))

	s, ok := table.Score("q1", "2")
	require.True(t, ok)
	assert.Equal(t, 0.5, s)
	_, ok = table.Score("q1", "9")
	assert.False(t, ok)

	c := table.Candidates("q1")
	c[0] = "mutated"
	assert.Equal(t, "1", table.Candidates("q1")[0])
}

func TestScoreTableBuilder_RejectsNormalizedDuplicates(t *testing.T) {
	b := NewScoreTableBuilder()
	require.NoError(t, b.Add("q", "5", 1))
	require.Error(t, b.Add("q", int64(5), 2))
}

func TestWriteAndLoadScores(t *testing.T) {
	for _, codec := range []linereader.Codec{nil, linereader.Gzip, linereader.Zstd} {
		name := "plain"
		if codec != nil {
			name = codec.Name()
		}
		t.Run(name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, WriteScores(&buf, codec, sampleScores(t)))

			loaded, err := LoadScores(&buf)
			require.NoError(t, err)
			assert.Equal(t, []string{"q1", "7"}, loaded.Queries())
			assert.Equal(t, []string{"1", "2", "3"}, loaded.Candidates("q1"))
			s, ok := loaded.Score("7", "70")
			require.True(t, ok)
			assert.Equal(t, 3.0, s)
		})
	}
}

func TestLoadScores_IntegerKeysAndScores(t *testing.T) {
	var raw bytes.Buffer
	enc := msgpack.NewEncoder(&raw)
	require.NoError(t, enc.EncodeMapLen(1))
	require.NoError(t, enc.EncodeInt(1185869))
	require.NoError(t, enc.EncodeMapLen(2))
	require.NoError(t, enc.EncodeInt(0))
	require.NoError(t, enc.EncodeFloat64(12.5))
	require.NoError(t, enc.EncodeInt(8841823))
	require.NoError(t, enc.EncodeInt(3))

	var blob bytes.Buffer
	w, err := linereader.Gzip.NewWriter(&blob)
	require.NoError(t, err)
	_, err = w.Write(raw.Bytes())
	require.NoError(t, err)
	require.NoError(t, w.Close())

	table, err := LoadScores(&blob)
	require.NoError(t, err)
	assert.Equal(t, []string{"1185869"}, table.Queries())
	assert.Equal(t, []string{"0", "8841823"}, table.Candidates("1185869"))
	s, ok := table.Score("1185869", "8841823")
	require.True(t, ok)
	assert.Equal(t, 3.0, s)
}

func TestLoadScores_MalformedIsConfigError(t *testing.T) {
	for name, data := range map[string][]byte{
		"empty":        nil,
		"not a map":    {0xa3, 'a', 'b', 'c'},
		"truncated":    {0x81, 0xa2, 'q', '1', 0x81},
		"bad gzip":     {0x1f, 0x8b, 0x00, 0x00, 0x00},
		"string score": {0x81, 0xa1, 'q', 0x81, 0xa1, 'd', 0xa1, 'x'},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := LoadScores(bytes.NewReader(data))
			require.ErrorIs(t, err, dserrors.ErrConfig)
		})
	}
}

func TestLoadScoresFile(t *testing.T) {
	dir := t.TempDir()
	var buf bytes.Buffer
	require.NoError(t, WriteScores(&buf, linereader.Zstd, sampleScores(t)))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "scores.msgpack.zst"), buf.Bytes(), 0o644))

	table, err := LoadScoresFile(context.Background(), storage.NewLocal(dir), "scores.msgpack.zst")
	require.NoError(t, err)
	assert.Equal(t, 2, table.Len())

	_, err = LoadScoresFile(context.Background(), storage.NewLocal(dir), "missing")
	require.ErrorIs(t, err, dserrors.ErrConfig)
}
