package broadcast

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestHubFansOutPerBoard(t *testing.T) {
	hub := NewHub(nil)

	boardOne, cancelOne := hub.Subscribe("board-1")
	defer cancelOne()
	boardTwo, cancelTwo := hub.Subscribe("board-2")
	defer cancelTwo()

	hub.Broadcast(Event{Type: "card.created", BoardID: "board-1", Payload: map[string]any{"cardId": "card-1"}})

	select {
	case event := <-boardOne:
		if event.Type != "card.created" {
			t.Errorf("expected card.created, got %s", event.Type)
		}
		if event.Payload["cardId"] != "card-1" {
			t.Errorf("unexpected payload: %+v", event.Payload)
		}
	case <-time.After(time.Second):
		t.Fatal("board-1 subscriber never received the event")
	}

	select {
	case event := <-boardTwo:
		t.Fatalf("board-2 subscriber must not see board-1 traffic, got %+v", event)
	default:
	}
}

func TestHubCancelRemovesSubscriber(t *testing.T) {
	hub := NewHub(nil)

	_, cancel := hub.Subscribe("board-1")
	if hub.SubscriberCount("board-1") != 1 {
		t.Fatalf("expected 1 subscriber, got %d", hub.SubscriberCount("board-1"))
	}
	cancel()
	if hub.SubscriberCount("board-1") != 0 {
		t.Fatalf("expected 0 subscribers after cancel, got %d", hub.SubscriberCount("board-1"))
	}
}

func TestHubSkipsSlowSubscriber(t *testing.T) {
	hub := NewHub(nil)

	events, cancel := hub.Subscribe("board-1")
	defer cancel()

	// Nobody drains the channel; flooding past the buffer must not block.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < sendBufferSize*2; i++ {
			hub.Broadcast(Event{Type: "card.updated", BoardID: "board-1"})
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("broadcast blocked on a slow subscriber")
	}
	if len(events) != sendBufferSize {
		t.Errorf("expected a full buffer of %d, got %d", sendBufferSize, len(events))
	}
}

func TestRedisBridgeRelaysRemoteEvents(t *testing.T) {
	s := miniredis.RunT(t)
	defer s.Close()

	hub := NewHub(nil)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	bridge := NewRedisBridgeWithClient(client, hub)
	defer bridge.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go bridge.Run(ctx)

	// Give the subscriber a moment to attach before publishing.
	time.Sleep(50 * time.Millisecond)

	events, unsubscribe := hub.Subscribe("board-1")
	defer unsubscribe()

	// A second node publishing on the same channel.
	remoteHub := NewHub(nil)
	remoteClient := redis.NewClient(&redis.Options{Addr: s.Addr()})
	remote := NewRedisBridgeWithClient(remoteClient, remoteHub)
	defer remote.Close()
	remote.Broadcast(Event{Type: "card.reacted", BoardID: "board-1", Payload: map[string]any{"cardId": "card-9"}})

	select {
	case event := <-events:
		if event.Type != "card.reacted" {
			t.Errorf("expected card.reacted, got %s", event.Type)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("relayed event never reached the local hub")
	}
}

func TestRedisBridgeIgnoresOwnMessages(t *testing.T) {
	s := miniredis.RunT(t)
	defer s.Close()

	hub := NewHub(nil)
	client := redis.NewClient(&redis.Options{Addr: s.Addr()})
	bridge := NewRedisBridgeWithClient(client, hub)
	defer bridge.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go bridge.Run(ctx)
	time.Sleep(50 * time.Millisecond)

	events, unsubscribe := hub.Subscribe("board-1")
	defer unsubscribe()

	bridge.Broadcast(Event{Type: "card.moved", BoardID: "board-1"})

	// Local delivery happens once via the hub. The relayed copy coming back
	// from Redis must be dropped, not delivered a second time.
	select {
	case <-events:
	case <-time.After(time.Second):
		t.Fatal("local broadcast never delivered")
	}
	time.Sleep(100 * time.Millisecond)
	select {
	case event := <-events:
		t.Fatalf("event delivered twice: %+v", event)
	default:
	}
}
