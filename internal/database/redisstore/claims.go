// Package redisstore keeps short-lived coordination state in Redis.
package redisstore

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const claimKeyPrefix = "warden:audit:claim:"

// ClaimStore marks audit log entries as handled with SET NX, so replayed
// gateway events and several bot instances process each entry once.
type ClaimStore struct {
	client *goredis.Client
	ttl    time.Duration
}

func NewClaimStore(client *goredis.Client, ttl time.Duration) *ClaimStore {
	return &ClaimStore{client: client, ttl: ttl}
}

// Connect creates a client for addr and verifies the server answers.
func Connect(ctx context.Context, addr, password string, db int) (*goredis.Client, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis at %s: %w", addr, err)
	}
	return client, nil
}

func (s *ClaimStore) Claim(ctx context.Context, entryID string) (bool, error) {
	if s.client == nil {
		return false, fmt.Errorf("redis client is nil")
	}
	if entryID == "" {
		return false, fmt.Errorf("audit entry id is required")
	}

	ok, err := s.client.SetNX(ctx, claimKeyPrefix+entryID, time.Now().UnixMilli(), s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("claim audit entry: %w", err)
	}
	return ok, nil
}
