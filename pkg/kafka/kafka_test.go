package kafka

import (
	"testing"

	json "github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Adithya-Monish-Kumar-K/retrieval-datasets/pkg/config"
)

type pairMessage struct {
	QueryID  string  `json:"query_id"`
	Positive string  `json:"positive"`
	Score    float64 `json:"positive_score"`
}

func TestDecodeJSON(t *testing.T) {
	raw, err := json.Marshal(pairMessage{QueryID: "q1", Positive: "hello", Score: 1.5})
	require.NoError(t, err)

	got, err := DecodeJSON[pairMessage](raw)
	require.NoError(t, err)
	assert.Equal(t, pairMessage{QueryID: "q1", Positive: "hello", Score: 1.5}, got)

	_, err = DecodeJSON[pairMessage]([]byte("{not json"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decoding kafka message")
}

func TestNewProducer_DefaultBatchSize(t *testing.T) {
	p := NewProducer(configWithBrokers(0), "pairs")
	assert.Equal(t, 100, p.writer.BatchSize)
	assert.Equal(t, "pairs", p.writer.Topic)

	p = NewProducer(configWithBrokers(32), "pairs")
	assert.Equal(t, 32, p.writer.BatchSize)
}

func configWithBrokers(batch int) config.KafkaConfig {
	return config.KafkaConfig{Brokers: []string{"localhost:9092"}, BatchSize: batch}
}
