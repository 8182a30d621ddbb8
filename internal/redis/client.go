package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/trogers1052/outcome-tracker/internal/config"
	"github.com/trogers1052/outcome-tracker/internal/models"
)

// Client wraps the Redis client with price-cache operations. The cache is
// a hot front for latest-price lookups; Postgres remains the source of
// truth and the service runs fine with a nil *Client.
type Client struct {
	rdb *redis.Client
}

// New creates a new Redis client
func New(cfg config.RedisConfig) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Address(),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping checks if Redis is reachable
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// SetLatestPrice caches the most recent price record for a symbol with TTL
func (c *Client) SetLatestPrice(ctx context.Context, record *models.PriceRecord, ttl time.Duration) error {
	key := fmt.Sprintf("price:%s:latest", record.Symbol)
	jsonData, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal price record: %w", err)
	}
	return c.rdb.Set(ctx, key, jsonData, ttl).Err()
}

// GetLatestPrice retrieves the cached latest price record for a symbol.
// A cache miss returns (nil, nil); callers fall through to the database.
func (c *Client) GetLatestPrice(ctx context.Context, symbol string) (*models.PriceRecord, error) {
	key := fmt.Sprintf("price:%s:latest", symbol)
	jsonData, err := c.rdb.Get(ctx, key).Bytes()
	if err != nil {
		if IsNil(err) {
			return nil, nil
		}
		return nil, err
	}

	var record models.PriceRecord
	if err := json.Unmarshal(jsonData, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal price record: %w", err)
	}
	return &record, nil
}

// InvalidateLatestPrice drops the cached latest price after a refresh
func (c *Client) InvalidateLatestPrice(ctx context.Context, symbol string) error {
	key := fmt.Sprintf("price:%s:latest", symbol)
	return c.rdb.Del(ctx, key).Err()
}

// IsNil reports whether err is a cache miss
func IsNil(err error) bool {
	return err == redis.Nil
}
