package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	dserrors "github.com/Adithya-Monish-Kumar-K/retrieval-datasets/pkg/errors"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, ".json.zstd", cfg.Dataset.ShardSuffix)
	assert.Equal(t, TablesFromFile, cfg.Dataset.TablesSource)
	assert.Equal(t, BackendLocal, cfg.Storage.Backend)
	assert.Equal(t, 8090, cfg.Server.Port)
	assert.Equal(t, 100, cfg.Kafka.BatchSize)
	assert.Equal(t, "training-pairs", cfg.Kafka.Topics.TrainingPairs)
}

func TestLoad_FileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
dataset:
  queryDir: queries
  documentDir: corpus
  scoresPath: scores.msgpack.zst
  qrelsPath: qrels.json
  seed: 7
server:
  port: 9000
  readTimeout: 5s
redis:
  cacheTTL: 1m
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))
	t.Setenv("RD_SERVER_PORT", "9100")
	t.Setenv("RD_REDIS_ADDR", "cache:6379")
	t.Setenv("RD_KAFKA_BROKERS", "k1:9092,k2:9092")
	t.Setenv("RD_REDIS_FLUSH_ON_START", "true")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "corpus", cfg.Dataset.DocumentDir)
	assert.Equal(t, int64(7), cfg.Dataset.Seed)
	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, 5*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, time.Minute, cfg.Redis.CacheTTL)
	assert.True(t, cfg.Redis.Enabled)
	assert.Equal(t, "cache:6379", cfg.Redis.Addr)
	assert.True(t, cfg.Redis.FlushOnStart)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, ".json.zstd", cfg.Dataset.ShardSuffix)
}

func TestLoad_DevelopmentConfig(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "..", "configs", "development.yaml"))
	require.NoError(t, err)
	require.NoError(t, cfg.Validate())
	assert.False(t, cfg.Export.SkipInvalid)
	assert.False(t, cfg.Redis.FlushOnStart)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [1, 2"), 0o644))
	_, err = Load(path)
	require.ErrorIs(t, err, dserrors.ErrConfig)
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := defaultConfig()
		cfg.Dataset.QueryDir = "q"
		cfg.Dataset.DocumentDir = "d"
		cfg.Dataset.ScoresPath = "s"
		cfg.Dataset.QrelsPath = "r"
		return cfg
	}
	require.NoError(t, valid().Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing dirs", func(c *Config) { c.Dataset.QueryDir = "" }},
		{"missing table paths", func(c *Config) { c.Dataset.QrelsPath = "" }},
		{"unknown tables source", func(c *Config) { c.Dataset.TablesSource = "s3" }},
		{"postgres without tables", func(c *Config) {
			c.Dataset.TablesSource = TablesFromPostgres
			c.Postgres.QrelsTable = ""
		}},
		{"minio without bucket", func(c *Config) { c.Storage.Backend = BackendMinio }},
		{"unknown backend", func(c *Config) { c.Storage.Backend = "ftp" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			require.ErrorIs(t, cfg.Validate(), dserrors.ErrConfig)
		})
	}
}

func TestDSN(t *testing.T) {
	p := PostgresConfig{Host: "db", Port: 5433, User: "u", Password: "p", Database: "rd", SSLMode: "disable"}
	assert.Equal(t, "host=db port=5433 user=u password=p dbname=rd sslmode=disable", p.DSN())
}
