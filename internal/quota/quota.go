// Package quota enforces per-user per-board creation limits. Counters live
// in Redis and are reserved with an atomic INCR before the write happens, so
// two concurrent requests can never both slip under the same last slot.
package quota

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Counter kinds. One counter per (board, identity, kind).
const (
	KindCard     = "card"
	KindReaction = "reaction"
)

// Gate is a Redis-backed quota counter.
type Gate struct {
	client *redis.Client
	prefix string
}

// NewGate creates a new Redis-backed quota gate
func NewGate(redisURL string) (*Gate, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewGateWithClient(client), nil
}

// NewGateWithClient creates a gate from an existing Redis client
func NewGateWithClient(client *redis.Client) *Gate {
	return &Gate{client: client, prefix: "quota:"}
}

func (g *Gate) key(boardID, identity, kind string) string {
	return g.prefix + boardID + ":" + identity + ":" + kind
}

// Reserve claims one slot against the limit. It returns false when the limit
// is already exhausted; the claim is rolled back before returning. A limit of
// zero or less means unlimited and touches no counter.
func (g *Gate) Reserve(ctx context.Context, boardID, identity, kind string, limit int) (bool, error) {
	if limit <= 0 {
		return true, nil
	}
	count, err := g.client.Incr(ctx, g.key(boardID, identity, kind)).Result()
	if err != nil {
		return false, fmt.Errorf("reserve quota: %w", err)
	}
	if count > int64(limit) {
		if err := g.client.Decr(ctx, g.key(boardID, identity, kind)).Err(); err != nil {
			return false, fmt.Errorf("roll back quota reservation: %w", err)
		}
		return false, nil
	}
	return true, nil
}

// Release returns one slot, floored at zero. Called when the guarded write
// fails after a successful reservation, or when the user undoes the action
// (card deleted, reaction removed).
func (g *Gate) Release(ctx context.Context, boardID, identity, kind string) error {
	count, err := g.client.Decr(ctx, g.key(boardID, identity, kind)).Result()
	if err != nil {
		return fmt.Errorf("release quota: %w", err)
	}
	if count < 0 {
		// Over-release, e.g. counters reset while cards still existed.
		if err := g.client.Incr(ctx, g.key(boardID, identity, kind)).Err(); err != nil {
			return fmt.Errorf("floor quota counter: %w", err)
		}
	}
	return nil
}

// Used reports how many slots the identity currently holds.
func (g *Gate) Used(ctx context.Context, boardID, identity, kind string) (int, error) {
	count, err := g.client.Get(ctx, g.key(boardID, identity, kind)).Int()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read quota counter: %w", err)
	}
	return count, nil
}

// Sync overwrites the counter with an authoritative count from the database.
// Used by the aggregate repair pass to heal drifted counters.
func (g *Gate) Sync(ctx context.Context, boardID, identity, kind string, used int) error {
	if err := g.client.Set(ctx, g.key(boardID, identity, kind), used, 0).Err(); err != nil {
		return fmt.Errorf("sync quota counter: %w", err)
	}
	return nil
}

// Close closes the Redis connection
func (g *Gate) Close() error {
	return g.client.Close()
}

// Ping checks if Redis is reachable
func (g *Gate) Ping(ctx context.Context) error {
	return g.client.Ping(ctx).Err()
}
