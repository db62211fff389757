package dragdrop

import (
	"testing"

	"retroboard/api/internal/broadcast"
	"retroboard/api/internal/cards"
)

func testCache() *Cache {
	cache := NewCache()
	cache.Put(cards.Snapshot{ID: "fb-1", BoardID: "board-1", ColumnID: "col-1", Type: cards.TypeFeedback, Direct: 2, Aggregate: 2})
	cache.Put(cards.Snapshot{ID: "fb-2", BoardID: "board-1", ColumnID: "col-1", Type: cards.TypeFeedback, Direct: 3, Aggregate: 3})
	cache.Put(cards.Snapshot{ID: "fb-child", BoardID: "board-1", ColumnID: "col-1", Type: cards.TypeFeedback, ParentID: "fb-1", Direct: 1, Aggregate: 1})
	cache.Put(cards.Snapshot{ID: "fb-3", BoardID: "board-1", ColumnID: "col-1", Type: cards.TypeFeedback, Direct: 1, Aggregate: 1})
	cache.Put(cards.Snapshot{ID: "act-1", BoardID: "board-1", ColumnID: "col-2", Type: cards.TypeAction})
	return cache
}

func TestGestureHappyPath(t *testing.T) {
	gesture := NewGesture(testCache())

	if err := gesture.Start("fb-2"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if gesture.State() != StateDragging {
		t.Fatalf("expected dragging, got %s", gesture.State())
	}

	verdict, err := gesture.Hover(cards.Target{Kind: cards.TargetCard, ID: "fb-3"})
	if err != nil {
		t.Fatalf("Hover failed: %v", err)
	}
	if !verdict.OK {
		t.Fatalf("expected valid hover, got %+v", verdict)
	}
	if gesture.State() != StateHoverValid {
		t.Fatalf("expected hover_valid, got %s", gesture.State())
	}

	target, committed := gesture.Drop()
	if !committed || target.ID != "fb-3" {
		t.Fatalf("expected committed drop on fb-1, got %v %v", target, committed)
	}
	if gesture.State() != StateCommitted {
		t.Fatalf("expected committed, got %s", gesture.State())
	}

	gesture.Resolve()
	if gesture.State() != StateIdle {
		t.Fatalf("expected idle after resolve, got %s", gesture.State())
	}
}

func TestGestureRejectsSelfDrop(t *testing.T) {
	gesture := NewGesture(testCache())
	for _, cardID := range []string{"fb-1", "act-1"} {
		if err := gesture.Start(cardID); err != nil {
			t.Fatalf("Start(%s) failed: %v", cardID, err)
		}
		verdict, err := gesture.Hover(cards.Target{Kind: cards.TargetCard, ID: cardID})
		if err != nil {
			t.Fatalf("Hover failed: %v", err)
		}
		if verdict.OK || verdict.Code != "SELF_DROP" {
			t.Errorf("%s onto itself: expected SELF_DROP, got %+v", cardID, verdict)
		}
		gesture.Cancel()
	}
}

func TestGestureRejectsParentedTarget(t *testing.T) {
	gesture := NewGesture(testCache())
	if err := gesture.Start("fb-2"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	verdict, err := gesture.Hover(cards.Target{Kind: cards.TargetCard, ID: "fb-child"})
	if err != nil {
		t.Fatalf("Hover failed: %v", err)
	}
	if verdict.OK || verdict.Code != "HIERARCHY_DEPTH" {
		t.Fatalf("expected HIERARCHY_DEPTH, got %+v", verdict)
	}
	if gesture.State() != StateHoverInvalid {
		t.Fatalf("expected hover_invalid, got %s", gesture.State())
	}

	// An invalid drop never commits.
	if _, committed := gesture.Drop(); committed {
		t.Fatal("drop from invalid hover must not commit")
	}
	if gesture.State() != StateIdle {
		t.Fatalf("expected idle, got %s", gesture.State())
	}
}

func TestGestureColumnTargetAlwaysValid(t *testing.T) {
	gesture := NewGesture(testCache())
	if err := gesture.Start("fb-child"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	verdict, err := gesture.Hover(cards.Target{Kind: cards.TargetColumn, ID: "col-2"})
	if err != nil {
		t.Fatalf("Hover failed: %v", err)
	}
	if !verdict.OK {
		t.Fatalf("column drop should always validate, got %+v", verdict)
	}
}

func TestGestureHoverRevalidates(t *testing.T) {
	gesture := NewGesture(testCache())
	if err := gesture.Start("fb-2"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if verdict, _ := gesture.Hover(cards.Target{Kind: cards.TargetCard, ID: "fb-child"}); verdict.OK {
		t.Fatal("expected invalid hover")
	}
	if verdict, _ := gesture.Hover(cards.Target{Kind: cards.TargetCard, ID: "fb-1"}); !verdict.OK {
		t.Fatal("expected valid hover after moving off the bad target")
	}
	if gesture.State() != StateHoverValid {
		t.Fatalf("expected hover_valid, got %s", gesture.State())
	}
}

func TestGestureGuards(t *testing.T) {
	gesture := NewGesture(testCache())

	if _, err := gesture.Hover(cards.Target{Kind: cards.TargetCard, ID: "fb-1"}); err != ErrNotDragging {
		t.Errorf("hover while idle: expected ErrNotDragging, got %v", err)
	}
	if err := gesture.Start("missing"); err != ErrUnknownCard {
		t.Errorf("unknown card: expected ErrUnknownCard, got %v", err)
	}
	if err := gesture.Start("fb-1"); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := gesture.Start("fb-2"); err != ErrNotIdle {
		t.Errorf("double start: expected ErrNotIdle, got %v", err)
	}
}

func TestCacheAppliesLinkAndUnlink(t *testing.T) {
	cache := testCache()

	cache.Apply(broadcast.Event{Type: "card.linked", BoardID: "board-1", Payload: map[string]any{
		"source": "fb-1", "target": "fb-2", "kind": "parent",
	}})
	target, _ := cache.Card("fb-2")
	if target.ParentID != "fb-1" {
		t.Fatalf("link not applied: parent=%q", target.ParentID)
	}
	source, _ := cache.Card("fb-1")
	if source.Aggregate != 5 {
		t.Fatalf("expected aggregate 5 after link, got %d", source.Aggregate)
	}

	cache.Apply(broadcast.Event{Type: "card.unlinked", BoardID: "board-1", Payload: map[string]any{
		"source": "fb-1", "target": "fb-2", "kind": "parent",
	}})
	target, _ = cache.Card("fb-2")
	if target.ParentID != "" {
		t.Fatalf("unlink not applied: parent=%q", target.ParentID)
	}
	source, _ = cache.Card("fb-1")
	if source.Aggregate != 2 {
		t.Fatalf("expected aggregate restored to 2, got %d", source.Aggregate)
	}
}

func TestCacheAppliesReactionCascade(t *testing.T) {
	cache := testCache()

	// JSON round trip delivers numbers as float64.
	cache.Apply(broadcast.Event{Type: "card.reacted", BoardID: "board-1", Payload: map[string]any{
		"card":           "fb-child",
		"newDirectCount": float64(2),
		"affectedParent": "fb-1",
		"newAggregate":   float64(3),
	}})

	child, _ := cache.Card("fb-child")
	if child.Direct != 2 || child.Aggregate != 2 {
		t.Errorf("child counts wrong: direct=%d aggregate=%d", child.Direct, child.Aggregate)
	}
	parent, _ := cache.Card("fb-1")
	if parent.Aggregate != 3 {
		t.Errorf("parent aggregate wrong: %d", parent.Aggregate)
	}
}

func TestCacheAppliesDeleteWithOrphans(t *testing.T) {
	cache := testCache()

	cache.Apply(broadcast.Event{Type: "card.deleted", BoardID: "board-1", Payload: map[string]any{
		"cardId":      "fb-1",
		"orphanedIds": []any{"fb-child"},
	}})

	if _, ok := cache.Card("fb-1"); ok {
		t.Error("deleted card still cached")
	}
	orphan, _ := cache.Card("fb-child")
	if orphan.ParentID != "" {
		t.Errorf("orphan still parented: %q", orphan.ParentID)
	}
}

func TestCacheAppliesCreateAndMove(t *testing.T) {
	cache := NewCache()

	cache.Apply(broadcast.Event{Type: "card.created", BoardID: "board-1", Payload: map[string]any{
		"id":                      "fb-new",
		"boardId":                 "board-1",
		"columnId":                "col-1",
		"cardType":                "FEEDBACK",
		"directReactionCount":     0,
		"aggregatedReactionCount": 0,
	}})
	card, ok := cache.Card("fb-new")
	if !ok || card.Type != cards.TypeFeedback {
		t.Fatalf("created card not cached: %+v", card)
	}

	cache.Apply(broadcast.Event{Type: "card.moved", BoardID: "board-1", Payload: map[string]any{
		"cardId": "fb-new", "columnId": "col-2",
	}})
	card, _ = cache.Card("fb-new")
	if card.ColumnID != "col-2" {
		t.Errorf("move not applied: %s", card.ColumnID)
	}
}

func TestCacheAppliesActionLinks(t *testing.T) {
	cache := testCache()

	for i := 0; i < 2; i++ {
		cache.Apply(broadcast.Event{Type: "card.linked", BoardID: "board-1", Payload: map[string]any{
			"source": "act-1", "target": "fb-1", "kind": "addresses",
		}})
	}
	action, _ := cache.Card("act-1")
	if len(action.Linked) != 1 || action.Linked[0] != "fb-1" {
		t.Fatalf("expected single addresses link, got %v", action.Linked)
	}

	cache.Apply(broadcast.Event{Type: "card.unlinked", BoardID: "board-1", Payload: map[string]any{
		"source": "act-1", "target": "fb-1", "kind": "addresses",
	}})
	action, _ = cache.Card("act-1")
	if len(action.Linked) != 0 {
		t.Fatalf("expected link removed, got %v", action.Linked)
	}
}
