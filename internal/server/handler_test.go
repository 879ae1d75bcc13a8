package server

import (
	"context"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/retrieval-datasets/internal/collection"
	"github.com/Adithya-Monish-Kumar-K/retrieval-datasets/internal/record"
	"github.com/Adithya-Monish-Kumar-K/retrieval-datasets/internal/sampler"
	dserrors "github.com/Adithya-Monish-Kumar-K/retrieval-datasets/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/retrieval-datasets/pkg/grpc"
	"github.com/Adithya-Monish-Kumar-K/retrieval-datasets/pkg/proto"
)

type fakePairs struct {
	pairs []sampler.Pair
	err   error
}

func (f *fakePairs) Size() int { return len(f.pairs) }

func (f *fakePairs) Get(_ context.Context, i int) (sampler.Pair, error) {
	if f.err != nil {
		return sampler.Pair{}, f.err
	}
	if i < 0 || i >= len(f.pairs) {
		return sampler.Pair{}, dserrors.New(dserrors.ErrOutOfRange, "fakePairs.Get", "out of range")
	}
	return f.pairs[i], nil
}

func newTestHandler(t *testing.T, pairs PairSource) *Handler {
	t.Helper()
	docs, err := collection.NewMemory([]record.Record{
		{ID: "d1", Text: "hello"},
		{ID: "d2", Text: "world"},
	})
	require.NoError(t, err)
	return New(map[string]collection.Lookup{"documents": docs}, pairs)
}

func do(t *testing.T, h *Handler, path string) (int, map[string]any) {
	t.Helper()
	mux := http.NewServeMux()
	h.Register(mux)
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), rec.Body.String())
	return rec.Code, body
}

func TestCollectionRoutes(t *testing.T) {
	h := newTestHandler(t, nil)

	code, body := do(t, h, "/api/v1/collections")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, []any{"documents"}, body["collections"])

	code, body = do(t, h, "/api/v1/collections/documents")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "documents", body["name"])
	assert.EqualValues(t, 2, body["size"])

	code, body = do(t, h, "/api/v1/collections/documents/records/1")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "d2", body["id"])
	assert.Equal(t, "world", body["text"])

	code, body = do(t, h, "/api/v1/collections/documents/ids/d1")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "hello", body["text"])
}

func TestCollectionRoutes_Errors(t *testing.T) {
	h := newTestHandler(t, nil)

	tests := []struct {
		path   string
		status int
		kind   string
	}{
		{"/api/v1/collections/queries", http.StatusNotFound, "not_found"},
		{"/api/v1/collections/documents/records/2", http.StatusNotFound, "out_of_range"},
		{"/api/v1/collections/documents/records/-1", http.StatusNotFound, "out_of_range"},
		{"/api/v1/collections/documents/records/abc", http.StatusBadRequest, "invalid_input"},
		{"/api/v1/collections/documents/ids/d9", http.StatusNotFound, "not_found"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			code, body := do(t, h, tt.path)
			assert.Equal(t, tt.status, code)
			assert.Equal(t, tt.kind, body["kind"])
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestPairRoutes(t *testing.T) {
	pairs := &fakePairs{pairs: []sampler.Pair{{
		QueryID: "q1", PositiveID: "d1", NegativeID: "d2",
		Query: "what", Positive: "hello", Negative: "world",
		PositiveScore: 2.5, NegativeScore: 1, Relevance: 2,
	}}}
	h := newTestHandler(t, pairs)

	code, body := do(t, h, "/api/v1/pairs")
	assert.Equal(t, http.StatusOK, code)
	assert.EqualValues(t, 1, body["size"])

	code, body = do(t, h, "/api/v1/pairs/0")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "q1", body["query_id"])
	assert.Equal(t, "world", body["negative"])
	assert.EqualValues(t, 2.5, body["positive_score"])
	assert.EqualValues(t, 2, body["relevance"])

	code, body = do(t, h, "/api/v1/pairs/5")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "out_of_range", body["kind"])

	pairs.err = dserrors.New(dserrors.ErrEmptyCandidatePool, "test", "only positives")
	code, body = do(t, h, "/api/v1/pairs/0")
	assert.Equal(t, http.StatusUnprocessableEntity, code)
	assert.Equal(t, "empty_candidate_pool", body["kind"])
}

func TestPairRoutes_Disabled(t *testing.T) {
	h := newTestHandler(t, nil)
	code, body := do(t, h, "/api/v1/pairs")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "pair sampling is disabled", body["error"])
}

func TestRegisterRPC(t *testing.T) {
	pairs := &fakePairs{pairs: []sampler.Pair{{QueryID: "q1", Query: "what", Positive: "hello", Negative: "world"}}}
	h := newTestHandler(t, pairs)

	s := grpc.NewServer()
	h.RegisterRPC(s)
	assert.Equal(t, 5, s.MethodCount())
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	go s.ServeListener(ln)
	t.Cleanup(s.Stop)

	ctx := context.Background()
	client, err := grpc.Dial(ctx, s.Addr().String())
	require.NoError(t, err)
	defer client.Close()

	remote, err := collection.NewRemote(ctx, client, "documents")
	require.NoError(t, err)
	assert.Equal(t, 2, remote.Size())

	rec, err := remote.Get(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, record.Record{ID: "d1", Text: "hello"}, rec)

	rec, err = remote.GetByID(ctx, "d2")
	require.NoError(t, err)
	assert.Equal(t, "world", rec.Text)

	_, err = remote.Get(ctx, 7)
	require.ErrorIs(t, err, dserrors.ErrOutOfRange)

	_, err = collection.NewRemote(ctx, client, "missing")
	require.ErrorIs(t, err, dserrors.ErrNotFound)

	var size proto.SizeResponse
	require.NoError(t, client.Call(ctx, proto.MethodPairSize, struct{}{}, &size))
	assert.Equal(t, 1, size.Size)

	var p proto.Pair
	require.NoError(t, client.Call(ctx, proto.MethodPairGet, &proto.PairRequest{Index: 0}, &p))
	assert.Equal(t, "q1", p.QueryID)
	assert.Equal(t, "world", p.Negative)
}

func TestRegisterRPC_WithoutPairs(t *testing.T) {
	h := newTestHandler(t, nil)
	s := grpc.NewServer()
	h.RegisterRPC(s)
	assert.Equal(t, 3, s.MethodCount())
}
