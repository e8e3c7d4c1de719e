package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/clothai/clothai/pkg/models"
)

// ExecutionResult is the cached terminal outcome of an execution, including
// the re-hosted output URL when the artifact has been re-uploaded.
type ExecutionResult struct {
	Execution models.Execution `json:"execution"`
	OutputURL string           `json:"output_url,omitempty"`
}

// Cache is the caching interface. All cache operations go through here.
// Implementations must be safe for concurrent use.
type Cache interface {
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Delete(ctx context.Context, key string) error
	Ping(ctx context.Context) error
	SetExecutionResult(ctx context.Context, executionID string, result ExecutionResult, ttl time.Duration) error
	GetExecutionResult(ctx context.Context, executionID string) (*ExecutionResult, bool, error)
	IncrWithExpiry(ctx context.Context, key string, expiry time.Duration) (int64, error)
}

// RedisCache implements the Cache interface using go-redis/v9.
type RedisCache struct {
	client *redis.Client
}

// NewRedisCache creates a new RedisCache from a Redis URL.
func NewRedisCache(redisURL string) (*RedisCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	return &RedisCache{client: redis.NewClient(opts)}, nil
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	return c.client.Set(ctx, key, value, ttl).Err()
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	val, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (c *RedisCache) Delete(ctx context.Context, key string) error {
	return c.client.Del(ctx, key).Err()
}

func (c *RedisCache) SetExecutionResult(ctx context.Context, executionID string, result ExecutionResult, ttl time.Duration) error {
	buf, err := json.Marshal(result)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, ExecutionResultKey(executionID), buf, ttl).Err()
}

func (c *RedisCache) GetExecutionResult(ctx context.Context, executionID string) (*ExecutionResult, bool, error) {
	val, err := c.client.Get(ctx, ExecutionResultKey(executionID)).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	var result ExecutionResult
	if err := json.Unmarshal(val, &result); err != nil {
		return nil, false, err
	}
	return &result, true, nil
}

func (c *RedisCache) IncrWithExpiry(ctx context.Context, key string, expiry time.Duration) (int64, error) {
	pipe := c.client.TxPipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, expiry)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return incr.Val(), nil
}
