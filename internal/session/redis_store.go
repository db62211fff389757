// Package session tracks board participants: who joined under which alias,
// refreshed by heartbeats. Presence lives in Redis with a TTL so a silent
// client simply ages out.
package session

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Participant is one joined client on a board.
type Participant struct {
	Identity string    `json:"identity"`
	Alias    string    `json:"alias"`
	BoardID  string    `json:"board_id"`
	Admin    bool      `json:"admin"`
	JoinedAt time.Time `json:"joined_at"`
}

// RedisStore implements participant presence storage using Redis
type RedisStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewRedisStore creates a new Redis-backed presence store
func NewRedisStore(redisURL string, ttl time.Duration) (*RedisStore, error) {
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

	return NewRedisStoreWithClient(client, ttl), nil
}

// NewRedisStoreWithClient creates a store from an existing Redis client
func NewRedisStoreWithClient(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = 90 * time.Second
	}
	return &RedisStore{
		client: client,
		prefix: "presence:",
		ttl:    ttl,
	}
}

func (s *RedisStore) key(boardID, identity string) string {
	return s.prefix + boardID + ":" + identity
}

// SaveParticipant registers (or refreshes) a participant on a board.
func (s *RedisStore) SaveParticipant(ctx context.Context, participant Participant) error {
	jsonData, err := json.Marshal(participant)
	if err != nil {
		return fmt.Errorf("marshal participant: %w", err)
	}
	key := s.key(participant.BoardID, participant.Identity)
	if err := s.client.Set(ctx, key, jsonData, s.ttl).Err(); err != nil {
		return fmt.Errorf("save participant: %w", err)
	}
	return nil
}

// Heartbeat extends a participant's presence TTL. Returns false when the
// presence record already expired and the client must re-join.
func (s *RedisStore) Heartbeat(ctx context.Context, boardID, identity string) (bool, error) {
	ok, err := s.client.Expire(ctx, s.key(boardID, identity), s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("heartbeat: %w", err)
	}
	return ok, nil
}

// GetParticipant returns the presence record, or redis.Nil-wrapped error
// when absent.
func (s *RedisStore) GetParticipant(ctx context.Context, boardID, identity string) (Participant, error) {
	jsonData, err := s.client.Get(ctx, s.key(boardID, identity)).Result()
	if err == redis.Nil {
		return Participant{}, fmt.Errorf("participant not found or expired")
	}
	if err != nil {
		return Participant{}, fmt.Errorf("lookup participant: %w", err)
	}
	var participant Participant
	if err := json.Unmarshal([]byte(jsonData), &participant); err != nil {
		return Participant{}, fmt.Errorf("unmarshal participant: %w", err)
	}
	return participant, nil
}

// ListParticipants returns every live participant on the board.
func (s *RedisStore) ListParticipants(ctx context.Context, boardID string) ([]Participant, error) {
	keys, err := s.client.Keys(ctx, s.prefix+boardID+":*").Result()
	if err != nil {
		return nil, fmt.Errorf("list participant keys: %w", err)
	}
	participants := make([]Participant, 0, len(keys))
	for _, key := range keys {
		jsonData, err := s.client.Get(ctx, key).Result()
		if err == redis.Nil {
			continue // expired between KEYS and GET
		}
		if err != nil {
			return nil, fmt.Errorf("read participant %s: %w", key, err)
		}
		var participant Participant
		if err := json.Unmarshal([]byte(jsonData), &participant); err != nil {
			return nil, fmt.Errorf("unmarshal participant %s: %w", key, err)
		}
		participants = append(participants, participant)
	}
	return participants, nil
}

// RemoveParticipant drops the presence record (explicit leave).
func (s *RedisStore) RemoveParticipant(ctx context.Context, boardID, identity string) error {
	if err := s.client.Del(ctx, s.key(boardID, identity)).Err(); err != nil {
		return fmt.Errorf("remove participant: %w", err)
	}
	return nil
}

// Close closes the Redis connection
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// Ping checks if Redis is reachable
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
