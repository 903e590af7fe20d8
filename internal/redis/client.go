// Package redis wraps go-redis with the small set of byte-oriented key/value
// operations the shared cache tier needs.
package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

// scanBatch is the COUNT hint passed to SCAN and the DEL batch size.
const scanBatch = 100

type Client struct {
	rdb    *redis.Client
	config *Config
}

type Config struct {
	Address        string        `json:"address"`
	Password       string        `json:"password"`
	DB             int           `json:"db"`
	PoolSize       int           `json:"pool_size"`
	ConnectTimeout time.Duration `json:"connect_timeout"`
}

// NewClient builds a client without touching the network. Call Ping to
// establish and verify the connection.
func NewClient(config *Config) (*Client, error) {
	if config == nil {
		return nil, fmt.Errorf("redis config is required")
	}

	if config.Address == "" {
		config.Address = "localhost:6379"
	}
	if config.PoolSize == 0 {
		config.PoolSize = 10
	}
	if config.ConnectTimeout <= 0 {
		config.ConnectTimeout = 5 * time.Second
	}
	if config.DB < 0 || config.DB > 15 {
		return nil, fmt.Errorf("redis db must be between 0 and 15, got %d", config.DB)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:        config.Address,
		Password:    config.Password,
		DB:          config.DB,
		PoolSize:    config.PoolSize,
		DialTimeout: config.ConnectTimeout,
		MaxRetries:  1,
	})

	return &Client{
		rdb:    rdb,
		config: config,
	}, nil
}

// Address returns the configured server address
func (c *Client) Address() string {
	return c.config.Address
}

// Ping verifies connectivity, bounded by the configured connect timeout
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.config.ConnectTimeout)
	defer cancel()

	if err := c.rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return nil
}

func (c *Client) Close() error {
	return c.rdb.Close()
}

func (c *Client) Health() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return c.rdb.Ping(ctx).Err()
}

// IsNil reports whether err is the go-redis "key does not exist" sentinel
func IsNil(err error) bool {
	return err == redis.Nil
}

// Get returns the raw bytes stored at key. A missing key yields redis.Nil.
func (c *Client) Get(ctx context.Context, key string) ([]byte, error) {
	return c.rdb.Get(ctx, key).Bytes()
}

// Set stores value at key with a native expiry. ttl <= 0 keeps the key forever.
func (c *Client) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	return c.rdb.Set(ctx, key, value, ttl).Err()
}

// TTL returns the remaining time to live of key. Negative durations mean the
// key has no expiry (-1) or does not exist (-2), as reported by Redis.
func (c *Client) TTL(ctx context.Context, key string) (time.Duration, error) {
	return c.rdb.PTTL(ctx, key).Result()
}

// Delete removes the given keys and returns how many existed
func (c *Client) Delete(ctx context.Context, keys ...string) (int64, error) {
	if len(keys) == 0 {
		return 0, nil
	}
	return c.rdb.Del(ctx, keys...).Result()
}

// Keys returns every key matching the glob pattern using SCAN, never KEYS
func (c *Client) Keys(ctx context.Context, match string) ([]string, error) {
	iter := c.rdb.Scan(ctx, 0, match, scanBatch).Iterator()

	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan keys: %w", err)
	}
	return keys, nil
}

// DeleteMatching removes every key matching the glob pattern in batches
func (c *Client) DeleteMatching(ctx context.Context, match string) (int64, error) {
	keys, err := c.Keys(ctx, match)
	if err != nil {
		return 0, err
	}

	var removed int64
	for start := 0; start < len(keys); start += scanBatch {
		end := start + scanBatch
		if end > len(keys) {
			end = len(keys)
		}
		n, err := c.Delete(ctx, keys[start:end]...)
		if err != nil {
			return removed, fmt.Errorf("failed to delete keys: %w", err)
		}
		removed += n
	}
	return removed, nil
}

// FlushDB removes every key in the selected database
func (c *Client) FlushDB(ctx context.Context) error {
	return c.rdb.FlushDB(ctx).Err()
}
