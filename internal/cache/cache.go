// Package cache stores reconstructed document versions. Historical versions
// never change, so entries only need evicting for space.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"
)

// VersionCache maps (document, version) to reconstructed text.
type VersionCache interface {
	Get(ctx context.Context, documentID string, version int) (string, bool, error)
	Set(ctx context.Context, documentID string, version int, content string) error
}

func key(documentID string, version int) string {
	return fmt.Sprintf("%s@%d", documentID, version)
}

// LRUCache keeps the most recently used versions in process memory.
type LRUCache struct {
	entries *lru.Cache[string, string]
}

func NewLRUCache(size int) (*LRUCache, error) {
	if size <= 0 {
		size = 256
	}
	c, err := lru.New[string, string](size)
	if err != nil {
		return nil, fmt.Errorf("new lru cache: %w", err)
	}
	return &LRUCache{entries: c}, nil
}

func (c *LRUCache) Get(_ context.Context, documentID string, version int) (string, bool, error) {
	v, ok := c.entries.Get(key(documentID, version))
	return v, ok, nil
}

func (c *LRUCache) Set(_ context.Context, documentID string, version int, content string) error {
	c.entries.Add(key(documentID, version), content)
	return nil
}

// Len returns the number of cached versions.
func (c *LRUCache) Len() int { return c.entries.Len() }

// RedisCache shares reconstructed versions between service instances.
type RedisCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, prefix string, ttl time.Duration) *RedisCache {
	if prefix == "" {
		prefix = "docver:"
	}
	return &RedisCache{client: client, prefix: prefix, ttl: ttl}
}

func (c *RedisCache) Get(ctx context.Context, documentID string, version int) (string, bool, error) {
	v, err := c.client.Get(ctx, c.prefix+key(documentID, version)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("redis get: %w", err)
	}
	return v, true, nil
}

func (c *RedisCache) Set(ctx context.Context, documentID string, version int, content string) error {
	if err := c.client.Set(ctx, c.prefix+key(documentID, version), content, c.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Tiered checks a fast local cache before a shared one and fills the local
// cache on shared hits.
type Tiered struct {
	Local  VersionCache
	Shared VersionCache
}

func (t Tiered) Get(ctx context.Context, documentID string, version int) (string, bool, error) {
	if v, ok, err := t.Local.Get(ctx, documentID, version); err == nil && ok {
		return v, true, nil
	}
	v, ok, err := t.Shared.Get(ctx, documentID, version)
	if err != nil || !ok {
		return "", false, err
	}
	_ = t.Local.Set(ctx, documentID, version, v)
	return v, true, nil
}

func (t Tiered) Set(ctx context.Context, documentID string, version int, content string) error {
	_ = t.Local.Set(ctx, documentID, version, content)
	return t.Shared.Set(ctx, documentID, version, content)
}
