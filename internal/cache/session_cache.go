// Package cache mirrors live session snapshots to Redis so an interrupted
// session can resume. The mirror is a cache, not the source of truth: the
// durable record is written only at completion.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"practice-service/internal/session"
)

const (
	keyPrefix   = "practice:session:"
	snapshotTTL = 24 * time.Hour
)

type SessionCache struct {
	client *redis.Client
}

// New creates a cache client and verifies the connection.
func New(ctx context.Context, url string) (*SessionCache, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return &SessionCache{client: client}, nil
}

// Save writes the snapshot under its session id with a 24h TTL.
func (c *SessionCache) Save(ctx context.Context, snap session.Snapshot) error {
	body, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, keyPrefix+snap.SessionID, body, snapshotTTL).Err()
}

// Load returns the cached snapshot, or (nil, nil) when none exists.
func (c *SessionCache) Load(ctx context.Context, sessionID string) (*session.Snapshot, error) {
	body, err := c.client.Get(ctx, keyPrefix+sessionID).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var snap session.Snapshot
	if err := json.Unmarshal(body, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Clear removes the snapshot once the session is durably recorded.
func (c *SessionCache) Clear(ctx context.Context, sessionID string) error {
	return c.client.Del(ctx, keyPrefix+sessionID).Err()
}

func (c *SessionCache) Close() error {
	return c.client.Close()
}
