package collection

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/vmihailenco/msgpack/v5"
	"golang.org/x/sync/singleflight"

	"github.com/Adithya-Monish-Kumar-K/retrieval-datasets/internal/record"
	"github.com/Adithya-Monish-Kumar-K/retrieval-datasets/pkg/metrics"
	pkgredis "github.com/Adithya-Monish-Kumar-K/retrieval-datasets/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/retrieval-datasets/pkg/resilience"
)

const keyPrefix = "ds:"

// CacheClient is the subset of the Redis client the cache uses.
type CacheClient interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	FlushByPattern(ctx context.Context, pattern string) (int64, error)
}

// CachedOptions configures NewCached.
type CachedOptions struct {
	// Name scopes the cache keys and labels metrics.
	Name string
	// Fingerprint identifies the content behind next. When empty it is taken
	// from next if next has a Fingerprint method.
	Fingerprint string
	TTL     time.Duration
	Breaker resilience.CircuitBreakerConfig
	Metrics *metrics.Metrics
}

type fingerprinter interface {
	Fingerprint() string
}

// Cached serves records from Redis and falls back to the wrapped Lookup on a
// miss. Concurrent misses for the same key share one underlying read. Cache
// failures, including an open breaker, only cost a fallback read; they never
// change what Get returns.
type Cached struct {
	next    Lookup
	client  CacheClient
	name    string
	scope   string
	ttl     time.Duration
	group   singleflight.Group
	breaker *resilience.CircuitBreaker
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewCached(next Lookup, client CacheClient, opts CachedOptions) *Cached {
	m := opts.Metrics
	breakerCfg := opts.Breaker
	if breakerCfg.OnStateChange == nil {
		breakerCfg.OnStateChange = func(name string, s resilience.State) { m.SetBreakerState(name, int(s)) }
	}
	fp := opts.Fingerprint
	if fp == "" {
		if f, ok := next.(fingerprinter); ok {
			fp = f.Fingerprint()
		}
	}
	scope := opts.Name
	if fp != "" {
		scope += ":" + fp
	}
	return &Cached{
		next:    next,
		client:  client,
		name:    opts.Name,
		scope:   scope,
		ttl:     opts.TTL,
		breaker: resilience.NewCircuitBreaker("record-cache:"+opts.Name, breakerCfg),
		metrics: m,
		logger:  slog.Default().With("component", "record-cache", "collection", opts.Name, "fingerprint", fp),
	}
}

func (c *Cached) Size() int {
	return c.next.Size()
}

func (c *Cached) Get(ctx context.Context, i int) (record.Record, error) {
	if i < 0 || i >= c.next.Size() {
		return c.next.Get(ctx, i)
	}
	return c.getOrLoad(ctx, c.indexKey(i), func() (record.Record, error) {
		return c.next.Get(ctx, i)
	})
}

func (c *Cached) GetByID(ctx context.Context, id string) (record.Record, error) {
	return c.getOrLoad(ctx, c.idKey(id), func() (record.Record, error) {
		return c.next.GetByID(ctx, id)
	})
}

// Invalidate drops every cached record of this collection, including those
// cached for other shard sets under the same name.
func (c *Cached) Invalidate(ctx context.Context) error {
	deleted, err := c.client.FlushByPattern(ctx, keyPrefix+c.name+":*")
	if err != nil {
		return fmt.Errorf("invalidating record cache: %w", err)
	}
	c.logger.Info("cache invalidate", "keys_deleted", deleted)
	return nil
}

func (c *Cached) getOrLoad(ctx context.Context, key string, load func() (record.Record, error)) (record.Record, error) {
	if rec, ok := c.lookup(ctx, key); ok {
		return rec, nil
	}
	val, err, _ := c.group.Do(key, func() (any, error) {
		if rec, ok := c.lookup(ctx, key); ok {
			return rec, nil
		}
		rec, err := load()
		if err != nil {
			return nil, err
		}
		c.store(ctx, key, rec)
		return rec, nil
	})
	if err != nil {
		return record.Record{}, err
	}
	return val.(record.Record), nil
}

func (c *Cached) lookup(ctx context.Context, key string) (record.Record, bool) {
	var data []byte
	err := c.breaker.Execute(func() error {
		var err error
		data, err = c.client.Get(ctx, key)
		if pkgredis.IsNilError(err) {
			data = nil
			return nil
		}
		return err
	})
	if err != nil {
		if !errors.Is(err, resilience.ErrCircuitOpen) {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		c.metrics.CacheResult(c.name, false)
		return record.Record{}, false
	}
	if data == nil {
		c.metrics.CacheResult(c.name, false)
		return record.Record{}, false
	}
	var rec record.Record
	if err := msgpack.Unmarshal(data, &rec); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.metrics.CacheResult(c.name, false)
		return record.Record{}, false
	}
	c.metrics.CacheResult(c.name, true)
	return rec, true
}

func (c *Cached) store(ctx context.Context, key string, rec record.Record) {
	data, err := msgpack.Marshal(rec)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	err = c.breaker.Execute(func() error {
		return c.client.Set(ctx, key, data, c.ttl)
	})
	if err != nil && !errors.Is(err, resilience.ErrCircuitOpen) {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

func (c *Cached) indexKey(i int) string {
	return keyPrefix + c.scope + ":i:" + strconv.Itoa(i)
}

func (c *Cached) idKey(id string) string {
	hash := sha256.Sum256([]byte(id))
	return fmt.Sprintf("%s%s:id:%x", keyPrefix, c.scope, hash[:16])
}
