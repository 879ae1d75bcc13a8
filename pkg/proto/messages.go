// Package proto defines the message types exchanged over the dataset RPC
// layer (see pkg/grpc). They are plain structs with JSON tags; the method
// names they travel with are listed next to each group.
package proto

// Method names served by the dataset daemon.
const (
	MethodDatasetSize    = "DatasetService.Size"
	MethodDatasetGet     = "DatasetService.Get"
	MethodDatasetGetByID = "DatasetService.GetByID"
	MethodPairSize       = "PairService.Size"
	MethodPairGet        = "PairService.Get"
)

// ---------- Common ----------

// HealthCheckResponse mirrors the gRPC health check spec.
type HealthCheckResponse struct {
	Status string `json:"status"` // SERVING, NOT_SERVING, UNKNOWN
}

// SizeResponse is the output of both Size RPCs.
type SizeResponse struct {
	Size int `json:"size"`
}

// ---------- Dataset ----------

// SizeRequest names the collection whose size is wanted.
type SizeRequest struct {
	Collection string `json:"collection"`
}

// GetRequest addresses a record by global index.
type GetRequest struct {
	Collection string `json:"collection"`
	Index      int    `json:"index"`
}

// GetByIDRequest addresses a record by canonical id.
type GetByIDRequest struct {
	Collection string `json:"collection"`
	ID         string `json:"id"`
}

// Record is one (id, text) entry of a collection.
type Record struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// ---------- Pairs ----------

// PairRequest addresses a training pair by query position.
type PairRequest struct {
	Index int `json:"index"`
}

// Pair is one sampled training example.
type Pair struct {
	QueryID       string  `json:"query_id"`
	PositiveID    string  `json:"positive_id"`
	NegativeID    string  `json:"negative_id"`
	Query         string  `json:"query"`
	Positive      string  `json:"positive"`
	Negative      string  `json:"negative"`
	PositiveScore float64 `json:"positive_score"`
	NegativeScore float64 `json:"negative_score"`
	Relevance     int     `json:"relevance"`
}
