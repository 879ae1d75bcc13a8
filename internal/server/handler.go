// Package server exposes collections and the pair sampler over HTTP and the
// JSON-over-TCP RPC layer.
package server

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"strconv"

	json "github.com/goccy/go-json"

	"github.com/Adithya-Monish-Kumar-K/retrieval-datasets/internal/collection"
	"github.com/Adithya-Monish-Kumar-K/retrieval-datasets/internal/sampler"
	dserrors "github.com/Adithya-Monish-Kumar-K/retrieval-datasets/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/retrieval-datasets/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/retrieval-datasets/pkg/proto"
)

// PairSource is the part of *sampler.Sampler the handlers use.
type PairSource interface {
	Size() int
	Get(ctx context.Context, i int) (sampler.Pair, error)
}

var _ PairSource = (*sampler.Sampler)(nil)

type Handler struct {
	collections map[string]collection.Lookup
	pairs       PairSource
	logger      *slog.Logger
}

// New serves the named collections and, when pairs is non-nil, the pair
// endpoints.
func New(collections map[string]collection.Lookup, pairs PairSource) *Handler {
	if collections == nil {
		collections = make(map[string]collection.Lookup)
	}
	return &Handler{
		collections: collections,
		pairs:       pairs,
		logger:      slog.Default().With("component", "dataset-handler"),
	}
}

// Register mounts the API routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/collections", h.ListCollections)
	mux.HandleFunc("GET /api/v1/collections/{name}", h.CollectionInfo)
	mux.HandleFunc("GET /api/v1/collections/{name}/records/{index}", h.GetRecord)
	mux.HandleFunc("GET /api/v1/collections/{name}/ids/{id}", h.GetRecordByID)
	mux.HandleFunc("GET /api/v1/pairs", h.PairInfo)
	mux.HandleFunc("GET /api/v1/pairs/{index}", h.GetPair)
}

func (h *Handler) ListCollections(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(h.collections))
	for name := range h.collections {
		names = append(names, name)
	}
	sort.Strings(names)
	h.writeJSON(w, http.StatusOK, map[string]any{"collections": names})
}

func (h *Handler) CollectionInfo(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	c, err := h.collection(name)
	if err != nil {
		h.writeErr(r.Context(), w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{"name": name, "size": c.Size()})
}

func (h *Handler) GetRecord(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	c, err := h.collection(r.PathValue("name"))
	if err != nil {
		h.writeErr(ctx, w, err)
		return
	}
	i, err := parseIndex(r.PathValue("index"))
	if err != nil {
		h.writeErr(ctx, w, err)
		return
	}
	rec, err := c.Get(ctx, i)
	if err != nil {
		h.writeErr(ctx, w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, proto.Record{ID: rec.ID, Text: rec.Text})
}

func (h *Handler) GetRecordByID(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	c, err := h.collection(r.PathValue("name"))
	if err != nil {
		h.writeErr(ctx, w, err)
		return
	}
	rec, err := c.GetByID(ctx, r.PathValue("id"))
	if err != nil {
		h.writeErr(ctx, w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, proto.Record{ID: rec.ID, Text: rec.Text})
}

func (h *Handler) PairInfo(w http.ResponseWriter, r *http.Request) {
	if h.pairs == nil {
		h.writeError(w, http.StatusServiceUnavailable, "pair sampling is disabled")
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]int{"size": h.pairs.Size()})
}

func (h *Handler) GetPair(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.pairs == nil {
		h.writeError(w, http.StatusServiceUnavailable, "pair sampling is disabled")
		return
	}
	i, err := parseIndex(r.PathValue("index"))
	if err != nil {
		h.writeErr(ctx, w, err)
		return
	}
	p, err := h.pairs.Get(ctx, i)
	if err != nil {
		h.writeErr(ctx, w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toProtoPair(p))
}

func (h *Handler) collection(name string) (collection.Lookup, error) {
	c, ok := h.collections[name]
	if !ok {
		return nil, dserrors.Newf(dserrors.ErrNotFound, "server.collection", "unknown collection %q", name)
	}
	return c, nil
}

func parseIndex(s string) (int, error) {
	i, err := strconv.Atoi(s)
	if err != nil {
		return 0, dserrors.Newf(dserrors.ErrInvalidInput, "server.parseIndex", "index %q is not an integer", s)
	}
	return i, nil
}

func toProtoPair(p sampler.Pair) proto.Pair {
	return proto.Pair{
		QueryID:       p.QueryID,
		PositiveID:    p.PositiveID,
		NegativeID:    p.NegativeID,
		Query:         p.Query,
		Positive:      p.Positive,
		Negative:      p.Negative,
		PositiveScore: p.PositiveScore,
		NegativeScore: p.NegativeScore,
		Relevance:     p.Relevance,
	}
}

func (h *Handler) writeErr(ctx context.Context, w http.ResponseWriter, err error) {
	status := dserrors.HTTPStatusCode(err)
	log := logger.FromContext(ctx)
	if status >= http.StatusInternalServerError {
		log.Error("request failed", "kind", dserrors.Kind(err), "error", err)
	} else {
		log.Debug("request rejected", "kind", dserrors.Kind(err), "error", err)
	}
	h.writeJSON(w, status, map[string]string{
		"error": err.Error(),
		"kind":  dserrors.Kind(err),
	})
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to write response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}
