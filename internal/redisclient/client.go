package redisclient

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
)

type Client struct {
	rdb *redis.Client
}

// NewClient creates a new Redis client
func NewClient(addr, password string, db int) (*Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	return &Client{rdb: rdb}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// CacheCheckoutView stores the serialized public checkout payload
func (c *Client) CacheCheckoutView(ctx context.Context, orderID string, payload []byte, ttl time.Duration) error {
	return c.rdb.Set(ctx, checkoutKey(orderID), payload, ttl).Err()
}

// GetCheckoutView retrieves a cached checkout payload. Returns nil on miss.
func (c *Client) GetCheckoutView(ctx context.Context, orderID string) ([]byte, error) {
	payload, err := c.rdb.Get(ctx, checkoutKey(orderID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return payload, nil
}

// InvalidateCheckoutView drops the cached checkout payload after any write
func (c *Client) InvalidateCheckoutView(ctx context.Context, orderID string) error {
	return c.rdb.Del(ctx, checkoutKey(orderID)).Err()
}

// MarkWebhookEventSeen records a processed webhook event id as a fast-path
// duplicate filter in front of the database uniqueness constraint.
// Returns false if the id was already marked.
func (c *Client) MarkWebhookEventSeen(ctx context.Context, provider, eventID string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, webhookKey(provider, eventID), "1", ttl).Result()
}

// IsWebhookEventSeen checks the fast-path duplicate filter
func (c *Client) IsWebhookEventSeen(ctx context.Context, provider, eventID string) (bool, error) {
	result, err := c.rdb.Exists(ctx, webhookKey(provider, eventID)).Result()
	if err != nil {
		return false, err
	}
	return result > 0, nil
}

func checkoutKey(orderID string) string {
	return fmt.Sprintf("checkout:%s", orderID)
}

func webhookKey(provider, eventID string) string {
	return fmt.Sprintf("webhook:%s:%s", provider, eventID)
}
