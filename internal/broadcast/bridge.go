package broadcast

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"retroboard/api/internal/util"
)

const channel = "board-events"

// relayEnvelope wraps an event with the emitting node so a replica can skip
// its own messages when they come back off the channel.
type relayEnvelope struct {
	Origin string `json:"origin"`
	Event  Event  `json:"event"`
}

// RedisBridge relays hub events across processes via Redis pub/sub.
type RedisBridge struct {
	client *redis.Client
	hub    *Hub
	nodeID string
}

// NewRedisBridge creates a bridge over a new Redis connection
func NewRedisBridge(redisURL string, hub *Hub) (*RedisBridge, error) {
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

	return NewRedisBridgeWithClient(client, hub), nil
}

// NewRedisBridgeWithClient creates a bridge from an existing Redis client
func NewRedisBridgeWithClient(client *redis.Client, hub *Hub) *RedisBridge {
	return &RedisBridge{
		client: client,
		hub:    hub,
		nodeID: util.NewID("node"),
	}
}

// Broadcast delivers the event locally and publishes it for other replicas.
// A publish failure is logged, not surfaced: local clients already got the
// event and the write that caused it has committed.
func (b *RedisBridge) Broadcast(event Event) {
	b.hub.Broadcast(event)

	envelope, err := json.Marshal(relayEnvelope{Origin: b.nodeID, Event: event})
	if err != nil {
		log.Printf("marshal relay envelope: %v", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := b.client.Publish(ctx, channel, envelope).Err(); err != nil {
		log.Printf("publish board event: %v", err)
	}
}

// Run consumes relayed events until the context ends. Messages published by
// this node are dropped, everything else goes into the local hub.
func (b *RedisBridge) Run(ctx context.Context) error {
	sub := b.client.Subscribe(ctx, channel)
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			var envelope relayEnvelope
			if err := json.Unmarshal([]byte(msg.Payload), &envelope); err != nil {
				log.Printf("drop malformed relay message: %v", err)
				continue
			}
			if envelope.Origin == b.nodeID {
				continue
			}
			b.hub.Broadcast(envelope.Event)
		}
	}
}

// Close closes the Redis connection
func (b *RedisBridge) Close() error {
	return b.client.Close()
}

var _ Broadcaster = (*RedisBridge)(nil)
