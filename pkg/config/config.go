// Package config loads and validates the dataset service configuration from
// YAML files with environment-variable overrides. It provides typed structs
// for every subsystem (Dataset, Storage, Server, RPC, Postgres, Kafka, Redis,
// Export, etc.).
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	dserrors "github.com/Adithya-Monish-Kumar-K/retrieval-datasets/pkg/errors"
)

// Config is the top-level application configuration.
type Config struct {
	Dataset  DatasetConfig  `yaml:"dataset"`
	Storage  StorageConfig  `yaml:"storage"`
	Server   ServerConfig   `yaml:"server"`
	RPC      RPCConfig      `yaml:"rpc"`
	Postgres PostgresConfig `yaml:"postgres"`
	Kafka    KafkaConfig    `yaml:"kafka"`
	Redis    RedisConfig    `yaml:"redis"`
	Export   ExportConfig   `yaml:"export"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// Table sources understood by DatasetConfig.TablesSource.
const (
	TablesFromFile     = "file"
	TablesFromPostgres = "postgres"
)

// DatasetConfig locates the query and document collections and the score and
// qrels tables the pair sampler joins.
type DatasetConfig struct {
	QueryDir         string `yaml:"queryDir"`
	DocumentDir      string `yaml:"documentDir"`
	ShardSuffix      string `yaml:"shardSuffix"`
	ScoresPath       string `yaml:"scoresPath"`
	QrelsPath        string `yaml:"qrelsPath"`
	TablesSource     string `yaml:"tablesSource"`
	Seed             int64  `yaml:"seed"`
	IndexConcurrency int    `yaml:"indexConcurrency"`

	// TablesTimeout bounds loading the score and qrels tables; zero waits
	// indefinitely.
	TablesTimeout time.Duration `yaml:"tablesTimeout"`
}

// Storage backends understood by StorageConfig.Backend.
const (
	BackendLocal = "local"
	BackendMinio = "minio"
)

// StorageConfig selects where shard files and tables are read from.
type StorageConfig struct {
	Backend   string `yaml:"backend"`
	Root      string `yaml:"root"`
	Endpoint  string `yaml:"endpoint"`
	Bucket    string `yaml:"bucket"`
	Prefix    string `yaml:"prefix"`
	AccessKey string `yaml:"accessKey"`
	SecretKey string `yaml:"secretKey"`
	UseSSL    bool   `yaml:"useSSL"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
	SlowRequest     time.Duration `yaml:"slowRequest"`
	// RateLimit is requests per second per client address; 0 disables it.
	RateLimit float64 `yaml:"rateLimit"`
	RateBurst int     `yaml:"rateBurst"`
}

// RPCConfig holds the JSON-over-TCP RPC listener settings.
type RPCConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// PostgresConfig holds PostgreSQL connection parameters and the tables the
// qrels and scores are read from when Dataset.TablesSource is "postgres".
type PostgresConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	Database        string        `yaml:"database"`
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	SSLMode         string        `yaml:"sslMode"`
	MaxOpenConns    int           `yaml:"maxOpenConns"`
	MaxIdleConns    int           `yaml:"maxIdleConns"`
	ConnMaxLifetime time.Duration `yaml:"connMaxLifetime"`
	QrelsTable      string        `yaml:"qrelsTable"`
	ScoresTable     string        `yaml:"scoresTable"`
}

// DSN returns a lib/pq-compatible data source name.
func (p PostgresConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.Database, p.SSLMode,
	)
}

// KafkaConfig holds Kafka broker and topic settings.
type KafkaConfig struct {
	Brokers       []string    `yaml:"brokers"`
	ConsumerGroup string      `yaml:"consumerGroup"`
	Topics        KafkaTopics `yaml:"topics"`
	BatchSize     int         `yaml:"batchSize"`
}

// KafkaTopics maps logical topic names to their Kafka topic strings.
type KafkaTopics struct {
	TrainingPairs string `yaml:"trainingPairs"`
}

// RedisConfig holds Redis connection and caching parameters.
type RedisConfig struct {
	Enabled  bool          `yaml:"enabled"`
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`

	// FlushOnStart drops every cached record of the served collections
	// before the cache is used.
	FlushOnStart bool `yaml:"flushOnStart"`
}

// ExportConfig controls how pairgen streams sampled pairs to a sink.
type ExportConfig struct {
	Epochs         int           `yaml:"epochs"`
	PairsPerSecond float64       `yaml:"pairsPerSecond"`
	SkipInvalid    bool          `yaml:"skipInvalid"`
	BatchSize      int           `yaml:"batchSize"`
	FlushInterval  time.Duration `yaml:"flushInterval"`
	OutPath        string        `yaml:"outPath"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls the Prometheus metrics server.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. Missing values keep their defaults.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, dserrors.Newf(dserrors.ErrConfig, "config.Load", "parsing %s: %v", path, err)
		}
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

// Validate checks the fields every binary depends on.
func (c *Config) Validate() error {
	if c.Dataset.QueryDir == "" || c.Dataset.DocumentDir == "" {
		return dserrors.New(dserrors.ErrConfig, "config.Validate", "dataset.queryDir and dataset.documentDir are required")
	}
	switch c.Dataset.TablesSource {
	case TablesFromFile:
		if c.Dataset.ScoresPath == "" || c.Dataset.QrelsPath == "" {
			return dserrors.New(dserrors.ErrConfig, "config.Validate", "dataset.scoresPath and dataset.qrelsPath are required for file tables")
		}
	case TablesFromPostgres:
		if c.Postgres.QrelsTable == "" || c.Postgres.ScoresTable == "" {
			return dserrors.New(dserrors.ErrConfig, "config.Validate", "postgres.qrelsTable and postgres.scoresTable are required for postgres tables")
		}
	default:
		return dserrors.Newf(dserrors.ErrConfig, "config.Validate", "unknown dataset.tablesSource %q", c.Dataset.TablesSource)
	}
	switch c.Storage.Backend {
	case BackendLocal:
	case BackendMinio:
		if c.Storage.Endpoint == "" || c.Storage.Bucket == "" {
			return dserrors.New(dserrors.ErrConfig, "config.Validate", "storage.endpoint and storage.bucket are required for minio")
		}
	default:
		return dserrors.Newf(dserrors.ErrConfig, "config.Validate", "unknown storage.backend %q", c.Storage.Backend)
	}
	return nil
}

// defaultConfig returns a Config with defaults suited to local development.
func defaultConfig() *Config {
	return &Config{
		Dataset: DatasetConfig{
			ShardSuffix:      ".json.zstd",
			TablesSource:     TablesFromFile,
			IndexConcurrency: 4,
			TablesTimeout:    5 * time.Minute,
		},
		Storage: StorageConfig{
			Backend: BackendLocal,
			Root:    ".",
		},
		Server: ServerConfig{
			Port:            8090,
			ReadTimeout:     30 * time.Second,
			WriteTimeout:    30 * time.Second,
			ShutdownTimeout: 15 * time.Second,
			SlowRequest:     time.Second,
			RateBurst:       50,
		},
		RPC: RPCConfig{
			Enabled: true,
			Addr:    ":9190",
		},
		Postgres: PostgresConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "retrieval",
			User:            "retrieval",
			Password:        "localdev",
			SSLMode:         "disable",
			MaxOpenConns:    10,
			MaxIdleConns:    2,
			ConnMaxLifetime: 5 * time.Minute,
			QrelsTable:      "qrels",
			ScoresTable:     "candidate_scores",
		},
		Kafka: KafkaConfig{
			Brokers:       []string{"localhost:9092"},
			ConsumerGroup: "pairsink-group",
			Topics: KafkaTopics{
				TrainingPairs: "training-pairs",
			},
			BatchSize: 100,
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			DB:       0,
			PoolSize: 10,
			CacheTTL: 10 * time.Minute,
		},
		Export: ExportConfig{
			Epochs:        1,
			BatchSize:     256,
			FlushInterval: 2 * time.Second,
			OutPath:       "pairs.tsv",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9091,
		},
	}
}

// applyEnvOverrides reads RD_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("RD_QUERY_DIR"); v != "" {
		cfg.Dataset.QueryDir = v
	}
	if v := os.Getenv("RD_DOCUMENT_DIR"); v != "" {
		cfg.Dataset.DocumentDir = v
	}
	if v := os.Getenv("RD_SCORES_PATH"); v != "" {
		cfg.Dataset.ScoresPath = v
	}
	if v := os.Getenv("RD_QRELS_PATH"); v != "" {
		cfg.Dataset.QrelsPath = v
	}
	if v := os.Getenv("RD_TABLES_SOURCE"); v != "" {
		cfg.Dataset.TablesSource = v
	}
	if v := os.Getenv("RD_SEED"); v != "" {
		if seed, err := strconv.ParseInt(v, 10, 64); err == nil {
			cfg.Dataset.Seed = seed
		}
	}
	if v := os.Getenv("RD_STORAGE_BACKEND"); v != "" {
		cfg.Storage.Backend = v
	}
	if v := os.Getenv("RD_STORAGE_ROOT"); v != "" {
		cfg.Storage.Root = v
	}
	if v := os.Getenv("RD_STORAGE_ENDPOINT"); v != "" {
		cfg.Storage.Endpoint = v
	}
	if v := os.Getenv("RD_STORAGE_BUCKET"); v != "" {
		cfg.Storage.Bucket = v
	}
	if v := os.Getenv("RD_STORAGE_ACCESS_KEY"); v != "" {
		cfg.Storage.AccessKey = v
	}
	if v := os.Getenv("RD_STORAGE_SECRET_KEY"); v != "" {
		cfg.Storage.SecretKey = v
	}
	if v := os.Getenv("RD_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("RD_RPC_ADDR"); v != "" {
		cfg.RPC.Addr = v
	}
	if v := os.Getenv("RD_POSTGRES_HOST"); v != "" {
		cfg.Postgres.Host = v
	}
	if v := os.Getenv("RD_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Postgres.Port = port
		}
	}
	if v := os.Getenv("RD_POSTGRES_DATABASE"); v != "" {
		cfg.Postgres.Database = v
	}
	if v := os.Getenv("RD_POSTGRES_USER"); v != "" {
		cfg.Postgres.User = v
	}
	if v := os.Getenv("RD_POSTGRES_PASSWORD"); v != "" {
		cfg.Postgres.Password = v
	}
	if v := os.Getenv("RD_KAFKA_BROKERS"); v != "" {
		cfg.Kafka.Brokers = strings.Split(v, ",")
	}
	if v := os.Getenv("RD_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
		cfg.Redis.Enabled = true
	}
	if v := os.Getenv("RD_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("RD_REDIS_FLUSH_ON_START"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Redis.FlushOnStart = b
		}
	}
	if v := os.Getenv("RD_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("RD_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
