package app

import (
	"context"
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/retrieval-datasets/internal/linereader"
	"github.com/Adithya-Monish-Kumar-K/retrieval-datasets/internal/server"
	"github.com/Adithya-Monish-Kumar-K/retrieval-datasets/internal/tables"
	"github.com/Adithya-Monish-Kumar-K/retrieval-datasets/pkg/config"
	dserrors "github.com/Adithya-Monish-Kumar-K/retrieval-datasets/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/retrieval-datasets/pkg/grpc"
	"github.com/Adithya-Monish-Kumar-K/retrieval-datasets/pkg/health"
)

// writeFixture lays out two queries, four documents and their tables under
// root and returns a config pointing at them.
func writeFixture(t *testing.T) *config.Config {
	t.Helper()
	root := t.TempDir()

	queries := linereader.NewWriter(filepath.Join(root, "queries"), ".json.zstd")
	_, err := queries.Write("part-000", [][]byte{
		[]byte(`{"query_id":1,"text":"first query"}`),
		[]byte(`{"query_id":2,"text":"second query"}`),
	})
	require.NoError(t, err)

	docs := linereader.NewWriter(filepath.Join(root, "corpus"), ".json.zstd")
	_, err = docs.Write("part-000", [][]byte{
		[]byte(`{"id":10,"text":"doc ten"}`),
		[]byte(`{"id":11,"text":"doc eleven"}`),
	})
	require.NoError(t, err)
	_, err = docs.Write("part-001", [][]byte{
		[]byte(`{"id":12,"text":"doc twelve"}`),
		[]byte(`{"id":13,"text":"doc thirteen"}`),
	})
	require.NoError(t, err)

	b := tables.NewScoreTableBuilder()
	require.NoError(t, b.Add(1, 10, 9.0))
	require.NoError(t, b.Add(1, 11, 5.0))
	require.NoError(t, b.Add(2, 12, 4.0))
	require.NoError(t, b.Add(2, 13, 3.0))
	require.NoError(t, b.Add(3, 10, 1.0))
	f, err := os.Create(filepath.Join(root, "scores.msgpack.zst"))
	require.NoError(t, err)
	require.NoError(t, tables.WriteScores(f, linereader.Zstd, b.Build()))
	require.NoError(t, f.Close())

	qrels := `{"1": {"10": 1}, "2": {"13": 2}}`
	require.NoError(t, os.WriteFile(filepath.Join(root, "qrels.json"), []byte(qrels), 0o644))

	cfg, err := config.Load("")
	require.NoError(t, err)
	cfg.Storage.Root = root
	cfg.Dataset.QueryDir = "queries"
	cfg.Dataset.DocumentDir = "corpus"
	cfg.Dataset.ScoresPath = "scores.msgpack.zst"
	cfg.Dataset.QrelsPath = "qrels.json"
	cfg.Dataset.Seed = 42
	cfg.Redis.Enabled = false
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestOpen_Local(t *testing.T) {
	cfg := writeFixture(t)
	ctx := context.Background()

	d, err := Open(ctx, cfg, Options{})
	require.NoError(t, err)
	defer d.Close()

	assert.Equal(t, 2, d.Queries.Size())
	assert.Equal(t, 4, d.Documents.Size())
	assert.Equal(t, 2, d.Sampler.Size())

	p, err := d.Sampler.Get(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, "1", p.QueryID)
	assert.Equal(t, "10", p.PositiveID)
	assert.Equal(t, "11", p.NegativeID)
	assert.Equal(t, "first query", p.Query)
	assert.Equal(t, "doc eleven", p.Negative)

	p, err = d.Sampler.Get(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "13", p.PositiveID)
	assert.Equal(t, "12", p.NegativeID)
	assert.Equal(t, 2, p.Relevance)

	checker := health.NewChecker()
	d.RegisterHealth(checker)
	assert.Equal(t, health.StatusUp, checker.Run(ctx).Status)
}

func TestOpen_MissingTables(t *testing.T) {
	cfg := writeFixture(t)
	cfg.Dataset.QrelsPath = "nope.json"
	_, err := Open(context.Background(), cfg, Options{})
	require.ErrorIs(t, err, dserrors.ErrConfig)
}

func TestOpen_Remote(t *testing.T) {
	cfg := writeFixture(t)
	ctx := context.Background()

	local, err := Open(ctx, cfg, Options{})
	require.NoError(t, err)
	defer local.Close()

	s := grpc.NewServer()
	server.New(local.Collections(), local.Sampler).RegisterRPC(s)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go s.ServeListener(ln)
	t.Cleanup(s.Stop)

	remote, err := Open(ctx, cfg, Options{RemoteAddr: s.Addr().String()})
	require.NoError(t, err)
	defer remote.Close()

	assert.Equal(t, 4, remote.Documents.Size())
	p, err := remote.Sampler.Get(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, "doc ten", p.Positive)
}
