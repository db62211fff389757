package quota

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
)

func setupTestGate(t *testing.T) (*Gate, *miniredis.Miniredis) {
	s := miniredis.RunT(t)
	gate, err := NewGate("redis://" + s.Addr())
	if err != nil {
		t.Fatalf("failed to create quota gate: %v", err)
	}
	return gate, s
}

func TestReserveUpToLimit(t *testing.T) {
	gate, s := setupTestGate(t)
	defer gate.Close()
	defer s.Close()

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		ok, err := gate.Reserve(ctx, "board-1", "idhash-1", KindCard, 3)
		if err != nil {
			t.Fatalf("Reserve failed: %v", err)
		}
		if !ok {
			t.Fatalf("reservation %d rejected under limit 3", i+1)
		}
	}

	ok, err := gate.Reserve(ctx, "board-1", "idhash-1", KindCard, 3)
	if err != nil {
		t.Fatalf("Reserve failed: %v", err)
	}
	if ok {
		t.Fatal("expected 4th reservation to be rejected")
	}

	// A rejected reservation must not consume a slot.
	used, err := gate.Used(ctx, "board-1", "idhash-1", KindCard)
	if err != nil {
		t.Fatalf("Used failed: %v", err)
	}
	if used != 3 {
		t.Errorf("expected 3 used slots after rejection, got %d", used)
	}
}

func TestUnlimitedWhenNoLimit(t *testing.T) {
	gate, s := setupTestGate(t)
	defer gate.Close()
	defer s.Close()

	ctx := context.Background()
	for i := 0; i < 50; i++ {
		ok, err := gate.Reserve(ctx, "board-1", "idhash-1", KindReaction, 0)
		if err != nil {
			t.Fatalf("Reserve failed: %v", err)
		}
		if !ok {
			t.Fatal("unlimited quota must never reject")
		}
	}
	used, err := gate.Used(ctx, "board-1", "idhash-1", KindReaction)
	if err != nil {
		t.Fatalf("Used failed: %v", err)
	}
	if used != 0 {
		t.Errorf("unlimited quota must not keep a counter, got %d", used)
	}
}

func TestReleaseFreesSlot(t *testing.T) {
	gate, s := setupTestGate(t)
	defer gate.Close()
	defer s.Close()

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := gate.Reserve(ctx, "board-1", "idhash-1", KindCard, 2); err != nil {
			t.Fatalf("Reserve failed: %v", err)
		}
	}
	if err := gate.Release(ctx, "board-1", "idhash-1", KindCard); err != nil {
		t.Fatalf("Release failed: %v", err)
	}

	ok, err := gate.Reserve(ctx, "board-1", "idhash-1", KindCard, 2)
	if err != nil {
		t.Fatalf("Reserve failed: %v", err)
	}
	if !ok {
		t.Error("expected reservation to succeed after a release")
	}
}

func TestReleaseNeverGoesNegative(t *testing.T) {
	gate, s := setupTestGate(t)
	defer gate.Close()
	defer s.Close()

	ctx := context.Background()
	if err := gate.Release(ctx, "board-1", "idhash-1", KindCard); err != nil {
		t.Fatalf("Release failed: %v", err)
	}
	used, err := gate.Used(ctx, "board-1", "idhash-1", KindCard)
	if err != nil {
		t.Fatalf("Used failed: %v", err)
	}
	if used != 0 {
		t.Errorf("expected counter floored at 0, got %d", used)
	}
}

func TestCountersAreScoped(t *testing.T) {
	gate, s := setupTestGate(t)
	defer gate.Close()
	defer s.Close()

	ctx := context.Background()
	if _, err := gate.Reserve(ctx, "board-1", "idhash-1", KindCard, 1); err != nil {
		t.Fatalf("Reserve failed: %v", err)
	}

	// Different identity, board, and kind each get their own counter.
	for _, c := range []struct{ board, identity, kind string }{
		{"board-1", "idhash-2", KindCard},
		{"board-2", "idhash-1", KindCard},
		{"board-1", "idhash-1", KindReaction},
	} {
		ok, err := gate.Reserve(ctx, c.board, c.identity, c.kind, 1)
		if err != nil {
			t.Fatalf("Reserve failed: %v", err)
		}
		if !ok {
			t.Errorf("counter %s/%s/%s leaked from another scope", c.board, c.identity, c.kind)
		}
	}
}

func TestSyncOverwritesCounter(t *testing.T) {
	gate, s := setupTestGate(t)
	defer gate.Close()
	defer s.Close()

	ctx := context.Background()
	if err := gate.Sync(ctx, "board-1", "idhash-1", KindCard, 5); err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	used, err := gate.Used(ctx, "board-1", "idhash-1", KindCard)
	if err != nil {
		t.Fatalf("Used failed: %v", err)
	}
	if used != 5 {
		t.Errorf("expected synced counter 5, got %d", used)
	}
}
