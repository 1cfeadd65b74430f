// FilePath: internal/repository/cache/cache.go
package cache

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sauqing9/api-sitras/internal/config"
	"github.com/sauqing9/api-sitras/internal/models"
	"github.com/sauqing9/api-sitras/internal/repository"
	nuts "github.com/vaudience/go-nuts"
)

// ErrMiss is returned by a Backend when the key is absent
var ErrMiss = stderrors.New("cache miss")

const keyPrefix = "sitras:latest:"

// Backend is the key/value surface the cache needs
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
	Ping(ctx context.Context) error
	Close() error
}

// RedisBackend implements Backend on a go-redis client
type RedisBackend struct {
	client *redis.Client
}

// NewRedisBackend connects to Redis and verifies the connection
func NewRedisBackend(cfg config.RedisConfig) (*RedisBackend, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("error connecting to Redis: %w", err)
	}

	nuts.L.Infof("[Cache] Connected to Redis at %s:%d/%d", cfg.Host, cfg.Port, cfg.DB)
	return &RedisBackend{client: client}, nil
}

func (b *RedisBackend) Get(ctx context.Context, key string) ([]byte, error) {
	val, err := b.client.Get(ctx, key).Bytes()
	if stderrors.Is(err, redis.Nil) {
		return nil, ErrMiss
	}
	return val, err
}

func (b *RedisBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return b.client.Set(ctx, key, value, ttl).Err()
}

func (b *RedisBackend) Del(ctx context.Context, keys ...string) error {
	return b.client.Del(ctx, keys...).Err()
}

func (b *RedisBackend) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

func (b *RedisBackend) Close() error {
	return b.client.Close()
}

// LatestCache serves Latest from the cache and invalidates it on every write.
// Cache failures fall through to the wrapped collection. A fill that raced a
// write of this process is dropped again; writes from other processes are only
// bounded by the TTL.
type LatestCache[T any] struct {
	repository.Collection[T]
	backend Backend
	key     string
	ttl     time.Duration
	gen     atomic.Uint64
}

// NewLatestCache wraps a collection; name identifies it in the key space
func NewLatestCache[T any](inner repository.Collection[T], backend Backend, name string, ttl time.Duration) *LatestCache[T] {
	return &LatestCache[T]{
		Collection: inner,
		backend:    backend,
		key:        keyPrefix + name,
		ttl:        ttl,
	}
}

func (c *LatestCache[T]) Latest(ctx context.Context) (*T, error) {
	if raw, err := c.backend.Get(ctx, c.key); err == nil {
		doc := new(T)
		if err := json.Unmarshal(raw, doc); err == nil {
			return doc, nil
		}
		nuts.L.Warnf("[Cache] Dropping undecodable entry %s", c.key)
	} else if !stderrors.Is(err, ErrMiss) {
		nuts.L.Warnf("[Cache] Get %s failed: %v", c.key, err)
	}

	gen := c.gen.Load()
	doc, err := c.Collection.Latest(ctx)
	if err != nil {
		return nil, err
	}
	if c.gen.Load() != gen {
		return doc, nil
	}
	if raw, err := json.Marshal(doc); err == nil {
		if err := c.backend.Set(ctx, c.key, raw, c.ttl); err != nil {
			nuts.L.Warnf("[Cache] Set %s failed: %v", c.key, err)
		}
		// a write may have invalidated between the check and the Set
		if c.gen.Load() != gen {
			c.drop(ctx)
		}
	}
	return doc, nil
}

func (c *LatestCache[T]) Insert(ctx context.Context, doc *T) error {
	if err := c.Collection.Insert(ctx, doc); err != nil {
		return err
	}
	c.invalidate(ctx)
	return nil
}

func (c *LatestCache[T]) Delete(ctx context.Context, id string) error {
	err := c.Collection.Delete(ctx, id)
	c.invalidate(ctx)
	return err
}

func (c *LatestCache[T]) DeleteAll(ctx context.Context) (int64, error) {
	n, err := c.Collection.DeleteAll(ctx)
	c.invalidate(ctx)
	return n, err
}

func (c *LatestCache[T]) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	n, err := c.Collection.DeleteBefore(ctx, before)
	c.invalidate(ctx)
	return n, err
}

func (c *LatestCache[T]) invalidate(ctx context.Context) {
	c.gen.Add(1)
	c.drop(ctx)
}

func (c *LatestCache[T]) drop(ctx context.Context) {
	if err := c.backend.Del(ctx, c.key); err != nil {
		nuts.L.Warnf("[Cache] Invalidate %s failed: %v", c.key, err)
	}
}

// Store wraps the raw and calibrated collections of a store with LatestCache
type Store struct {
	repository.Store
	backend    Backend
	raw        *LatestCache[models.RawReading]
	calibrated *LatestCache[models.CalibratedReading]
}

// WrapStore returns a store whose most-recent reads go through the cache
func WrapStore(inner repository.Store, backend Backend, ttl time.Duration) *Store {
	return &Store{
		Store:      inner,
		backend:    backend,
		raw:        NewLatestCache(inner.Raw(), backend, "raw", ttl),
		calibrated: NewLatestCache(inner.Calibrated(), backend, "calibrated", ttl),
	}
}

func (s *Store) Raw() repository.RawReadingRepository { return s.raw }

func (s *Store) Calibrated() repository.CalibratedReadingRepository { return s.calibrated }

func (s *Store) Close() error {
	if err := s.backend.Close(); err != nil {
		nuts.L.Warnf("[Cache] Close failed: %v", err)
	}
	return s.Store.Close()
}
