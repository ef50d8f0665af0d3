package redisclient

import (
	"context"
	_ "embed"
	"encoding/json"
	"fmt"
	"time"

	"github.com/QODOHUB/ayami-storefront/internal/models"

	"github.com/go-redis/redis/v8"
)

//go:embed scripts/advance_revision.lua
var advanceRevisionScript string

const revisionCursorKey = "catalog:revision"

// Client wraps Redis with the storefront's cursor, session and lock
// operations.
type Client struct {
	rdb           *redis.Client
	advanceScript *redis.Script
}

// NewClient creates a new Redis client with Lua scripts loaded
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

	return &Client{
		rdb:           rdb,
		advanceScript: redis.NewScript(advanceRevisionScript),
	}, nil
}

// GetClient returns the underlying Redis client
func (c *Client) GetClient() *redis.Client {
	return c.rdb
}

// Close closes the Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}

// CurrentRevision returns the revision cursor, 0 when it has never been set.
func (c *Client) CurrentRevision(ctx context.Context) (int64, error) {
	val, err := c.rdb.Get(ctx, revisionCursorKey).Int64()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read revision cursor: %w", err)
	}
	return val, nil
}

// AdvanceRevision moves the cursor to revision unless it is already at a
// higher value, and returns the resulting cursor. The compare-and-set runs
// server-side so interleaved syncs cannot regress the cursor.
func (c *Client) AdvanceRevision(ctx context.Context, revision int64) (int64, error) {
	result, err := c.advanceScript.Run(ctx, c.rdb, []string{revisionCursorKey}, revision).Result()
	if err != nil {
		return 0, fmt.Errorf("advance revision script failed: %w", err)
	}

	cursor, ok := result.(int64)
	if !ok {
		return 0, fmt.Errorf("unexpected script result type")
	}
	return cursor, nil
}

func sessionKey(customerID string) string {
	return fmt.Sprintf("checkout:session:%s", customerID)
}

// SaveSession persists a checkout session with the given idle TTL.
func (c *Client) SaveSession(ctx context.Context, session *models.CheckoutSession, ttl time.Duration) error {
	data, err := json.Marshal(session)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	return c.rdb.Set(ctx, sessionKey(session.CustomerID), data, ttl).Err()
}

// GetSession loads the live checkout session for a customer, nil when there
// is none.
func (c *Client) GetSession(ctx context.Context, customerID string) (*models.CheckoutSession, error) {
	data, err := c.rdb.Get(ctx, sessionKey(customerID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session: %w", err)
	}

	var session models.CheckoutSession
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &session, nil
}

// DeleteSession destroys the customer's checkout session.
func (c *Client) DeleteSession(ctx context.Context, customerID string) error {
	return c.rdb.Del(ctx, sessionKey(customerID)).Err()
}

// AcquireLock acquires a customer-scoped lock
func (c *Client) AcquireLock(ctx context.Context, lockKey string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, fmt.Sprintf("lock:%s", lockKey), "1", ttl).Result()
}

// ReleaseLock releases a customer-scoped lock
func (c *Client) ReleaseLock(ctx context.Context, lockKey string) error {
	return c.rdb.Del(ctx, fmt.Sprintf("lock:%s", lockKey)).Err()
}
