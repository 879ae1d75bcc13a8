package server

import (
	"context"

	json "github.com/goccy/go-json"

	dserrors "github.com/Adithya-Monish-Kumar-K/retrieval-datasets/pkg/errors"
	"github.com/Adithya-Monish-Kumar-K/retrieval-datasets/pkg/grpc"
	"github.com/Adithya-Monish-Kumar-K/retrieval-datasets/pkg/proto"
)

// RegisterRPC installs the DatasetService and, when pairs are served, the
// PairService methods on s.
func (h *Handler) RegisterRPC(s *grpc.Server) {
	s.Register(proto.MethodDatasetSize, h.rpcSize)
	s.Register(proto.MethodDatasetGet, h.rpcGet)
	s.Register(proto.MethodDatasetGetByID, h.rpcGetByID)
	if h.pairs != nil {
		s.Register(proto.MethodPairSize, h.rpcPairSize)
		s.Register(proto.MethodPairGet, h.rpcPairGet)
	}
}

func decodeParams(op string, raw json.RawMessage, v any) error {
	if err := json.Unmarshal(raw, v); err != nil {
		return dserrors.Newf(dserrors.ErrInvalidInput, op, "decoding params: %v", err)
	}
	return nil
}

func (h *Handler) rpcSize(_ context.Context, raw json.RawMessage) (any, error) {
	var req proto.SizeRequest
	if err := decodeParams("DatasetService.Size", raw, &req); err != nil {
		return nil, err
	}
	c, err := h.collection(req.Collection)
	if err != nil {
		return nil, err
	}
	return proto.SizeResponse{Size: c.Size()}, nil
}

func (h *Handler) rpcGet(ctx context.Context, raw json.RawMessage) (any, error) {
	var req proto.GetRequest
	if err := decodeParams("DatasetService.Get", raw, &req); err != nil {
		return nil, err
	}
	c, err := h.collection(req.Collection)
	if err != nil {
		return nil, err
	}
	rec, err := c.Get(ctx, req.Index)
	if err != nil {
		return nil, err
	}
	return proto.Record{ID: rec.ID, Text: rec.Text}, nil
}

func (h *Handler) rpcGetByID(ctx context.Context, raw json.RawMessage) (any, error) {
	var req proto.GetByIDRequest
	if err := decodeParams("DatasetService.GetByID", raw, &req); err != nil {
		return nil, err
	}
	c, err := h.collection(req.Collection)
	if err != nil {
		return nil, err
	}
	rec, err := c.GetByID(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	return proto.Record{ID: rec.ID, Text: rec.Text}, nil
}

func (h *Handler) rpcPairSize(_ context.Context, _ json.RawMessage) (any, error) {
	return proto.SizeResponse{Size: h.pairs.Size()}, nil
}

func (h *Handler) rpcPairGet(ctx context.Context, raw json.RawMessage) (any, error) {
	var req proto.PairRequest
	if err := decodeParams("PairService.Get", raw, &req); err != nil {
		return nil, err
	}
	p, err := h.pairs.Get(ctx, req.Index)
	if err != nil {
		return nil, err
	}
	return toProtoPair(p), nil
}
