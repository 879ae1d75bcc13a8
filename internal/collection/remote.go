package collection

import (
	"context"
	"fmt"

	"github.com/Adithya-Monish-Kumar-K/retrieval-datasets/internal/record"
	"github.com/Adithya-Monish-Kumar-K/retrieval-datasets/pkg/grpc"
	"github.com/Adithya-Monish-Kumar-K/retrieval-datasets/pkg/proto"
)

// Caller issues one RPC. *grpc.Client implements it.
type Caller interface {
	Call(ctx context.Context, method string, params any, result any) error
}

var _ Caller = (*grpc.Client)(nil)

// Remote reads a collection served by the dataset daemon. The size is
// fetched once when the Remote is created; collections never change.
type Remote struct {
	caller     Caller
	collection string
	size       int
}

// NewRemote asks the daemon for the size of collection and returns an
// accessor for it.
func NewRemote(ctx context.Context, caller Caller, collection string) (*Remote, error) {
	var resp proto.SizeResponse
	if err := caller.Call(ctx, proto.MethodDatasetSize, &proto.SizeRequest{Collection: collection}, &resp); err != nil {
		return nil, fmt.Errorf("sizing remote collection %s: %w", collection, err)
	}
	return &Remote{caller: caller, collection: collection, size: resp.Size}, nil
}

func (r *Remote) Size() int {
	return r.size
}

func (r *Remote) Get(ctx context.Context, i int) (record.Record, error) {
	var rec proto.Record
	req := &proto.GetRequest{Collection: r.collection, Index: i}
	if err := r.caller.Call(ctx, proto.MethodDatasetGet, req, &rec); err != nil {
		return record.Record{}, err
	}
	return record.Record{ID: rec.ID, Text: rec.Text}, nil
}

func (r *Remote) GetByID(ctx context.Context, id string) (record.Record, error) {
	var rec proto.Record
	req := &proto.GetByIDRequest{Collection: r.collection, ID: id}
	if err := r.caller.Call(ctx, proto.MethodDatasetGetByID, req, &rec); err != nil {
		return record.Record{}, err
	}
	return record.Record{ID: rec.ID, Text: rec.Text}, nil
}
