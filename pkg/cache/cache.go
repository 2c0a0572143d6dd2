package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/1145-am/orggraph/pkg/logger"

	"github.com/redis/go-redis/v9"
)

// The two halves of the rotation. Writes target one half while readers see
// the other; flipping the active pointer swaps an entire snapshot at once.
var Versions = [2]string{"castor", "pollux"}

const (
	activeVersionKey = "versionable:active_version"
	scanBatchSize    = 1000
)

// ErrMiss is returned when a logical key has no value in the active version.
var ErrMiss = errors.New("cache miss")

// Cache is a two-version key-value cache over Redis. Callers use logical
// keys; the cache prepends the version token and applies the key-length
// transform before touching the store.
type Cache struct {
	rdb *redis.Client
}

// New builds a Cache from a Redis connection URL.
func New(url string) (*Cache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	return &Cache{rdb: redis.NewClient(opts)}, nil
}

// NewFromClient wraps an existing client; used by tests.
func NewFromClient(rdb *redis.Client) *Cache {
	return &Cache{rdb: rdb}
}

// Close releases the Redis connection.
func (c *Cache) Close() error {
	return c.rdb.Close()
}

// ActiveVersion returns the current active version token, defaulting to the
// first version when the pointer has never been set.
func (c *Cache) ActiveVersion(ctx context.Context) (string, error) {
	v, err := c.rdb.Get(ctx, activeVersionKey).Result()
	if errors.Is(err, redis.Nil) {
		return Versions[0], nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read active version: %w", err)
	}
	return v, nil
}

// InactiveVersion returns the version token that is not currently active.
func (c *Cache) InactiveVersion(ctx context.Context) (string, error) {
	active, err := c.ActiveVersion(ctx)
	if err != nil {
		return "", err
	}
	if active == Versions[0] {
		return Versions[1], nil
	}
	return Versions[0], nil
}

func (c *Cache) versionedKey(version, logical string) string {
	return Friendly(version + "_" + logical)
}

// Set writes a value under the active version.
func (c *Cache) Set(ctx context.Context, logicalKey, value string, ttl time.Duration) error {
	version, err := c.ActiveVersion(ctx)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, c.versionedKey(version, logicalKey), value, ttl).Err()
}

// SetInInactive writes a value under the inactive version; the precomputer
// uses this to stage the next snapshot before flipping.
func (c *Cache) SetInInactive(ctx context.Context, logicalKey, value string, ttl time.Duration) error {
	version, err := c.InactiveVersion(ctx)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, c.versionedKey(version, logicalKey), value, ttl).Err()
}

// Get reads a value under the active version. A missing key returns ErrMiss.
func (c *Cache) Get(ctx context.Context, logicalKey string) (string, error) {
	version, err := c.ActiveVersion(ctx)
	if err != nil {
		return "", err
	}
	v, err := c.rdb.Get(ctx, c.versionedKey(version, logicalKey)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrMiss
	}
	if err != nil {
		return "", fmt.Errorf("cache read failed: %w", err)
	}
	return v, nil
}

// SetJSON marshals value and writes it under the active version.
func (c *Cache) SetJSON(ctx context.Context, logicalKey string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}
	return c.Set(ctx, logicalKey, string(data), ttl)
}

// SetJSONInInactive marshals value and stages it in the inactive version.
func (c *Cache) SetJSONInInactive(ctx context.Context, logicalKey string, value any, ttl time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal cache value: %w", err)
	}
	return c.SetInInactive(ctx, logicalKey, string(data), ttl)
}

// GetJSON reads a value under the active version and unmarshals it into out.
func (c *Cache) GetJSON(ctx context.Context, logicalKey string, out any) error {
	data, err := c.Get(ctx, logicalKey)
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(data), out)
}

// Flip promotes the inactive version to active and sweeps the old half's
// keys by prefix scan.
func (c *Cache) Flip(ctx context.Context) error {
	old, err := c.ActiveVersion(ctx)
	if err != nil {
		return err
	}
	next, err := c.InactiveVersion(ctx)
	if err != nil {
		return err
	}
	if err := c.rdb.Set(ctx, activeVersionKey, next, 0).Err(); err != nil {
		return fmt.Errorf("failed to flip active version: %w", err)
	}
	deleted, err := c.DeleteByPrefix(ctx, old+"_")
	if err != nil {
		return err
	}
	logger.Info("[Cache] Version flipped", "active", next, "swept_keys", deleted)
	return nil
}

// DeleteByPrefix removes every key starting with prefix using a
// non-blocking SCAN, deleting in batches.
func (c *Cache) DeleteByPrefix(ctx context.Context, prefix string) (int, error) {
	var cursor uint64
	deleted := 0
	for {
		keys, next, err := c.rdb.Scan(ctx, cursor, prefix+"*", scanBatchSize).Result()
		if err != nil {
			return deleted, fmt.Errorf("prefix scan failed: %w", err)
		}
		if len(keys) > 0 {
			if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
				return deleted, fmt.Errorf("prefix delete failed: %w", err)
			}
			deleted += len(keys)
		}
		cursor = next
		if cursor == 0 {
			return deleted, nil
		}
	}
}
