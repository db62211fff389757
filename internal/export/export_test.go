package export

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"retroboard/api/internal/cards"
	"retroboard/api/internal/store"
)

func testBoard() store.Board {
	return store.Board{
		ID:    "board-1",
		Name:  "Sprint 42 Retro",
		State: "open",
		Columns: []store.Column{
			{ID: "col-actions", Label: "Actions", SortOrder: 2},
			{ID: "col-good", Label: "What went well", SortOrder: 0},
			{ID: "col-bad", Label: "What needs work", SortOrder: 1},
		},
	}
}

func testCards() []store.Card {
	return []store.Card{
		{ID: "card-parent", BoardID: "board-1", ColumnID: "col-good", Type: cards.TypeFeedback, Content: "Release went smoothly", Alias: "Avery", Direct: 2, Aggregate: 5},
		{ID: "card-child", BoardID: "board-1", ColumnID: "col-good", Type: cards.TypeFeedback, Content: "CI was fast", Alias: "Blake", ParentID: "card-parent", Direct: 3, Aggregate: 3},
		{ID: "card-anon", BoardID: "board-1", ColumnID: "col-bad", Type: cards.TypeFeedback, Content: "Standups run long", Anonymous: true, Alias: "Casey", Direct: 1, Aggregate: 1},
		{ID: "card-action", BoardID: "board-1", ColumnID: "col-actions", Type: cards.TypeAction, Content: "Timebox standups", Alias: "Drew", Linked: []string{"card-anon"}},
	}
}

func TestBuildSnapshotGroupsAndOrders(t *testing.T) {
	snapshot := BuildSnapshot(testBoard(), testCards(), time.Now())

	if len(snapshot.Columns) != 3 {
		t.Fatalf("expected 3 columns, got %d", len(snapshot.Columns))
	}
	labels := []string{snapshot.Columns[0].Label, snapshot.Columns[1].Label, snapshot.Columns[2].Label}
	if labels[0] != "What went well" || labels[1] != "What needs work" || labels[2] != "Actions" {
		t.Fatalf("columns not in sort order: %v", labels)
	}

	good := snapshot.Columns[0]
	if len(good.Cards) != 1 {
		t.Fatalf("expected 1 top-level card in first column, got %d", len(good.Cards))
	}
	parent := good.Cards[0]
	if parent.ID != "card-parent" {
		t.Fatalf("unexpected top-level card: %s", parent.ID)
	}
	if len(parent.Children) != 1 || parent.Children[0].ID != "card-child" {
		t.Fatalf("child not nested under its parent: %+v", parent.Children)
	}
	if parent.Direct != 2 || parent.Aggregate != 5 {
		t.Errorf("reaction counts lost: direct=%d aggregate=%d", parent.Direct, parent.Aggregate)
	}
}

func TestBuildSnapshotHidesAnonymousAlias(t *testing.T) {
	snapshot := BuildSnapshot(testBoard(), testCards(), time.Now())

	bad := snapshot.Columns[1]
	if len(bad.Cards) != 1 {
		t.Fatalf("expected 1 card in second column, got %d", len(bad.Cards))
	}
	if alias := bad.Cards[0].Alias; alias != "" {
		t.Errorf("anonymous card leaked alias %q", alias)
	}
}

func TestBuildSnapshotKeepsActionLinks(t *testing.T) {
	snapshot := BuildSnapshot(testBoard(), testCards(), time.Now())

	actions := snapshot.Columns[2]
	if len(actions.Cards) != 1 {
		t.Fatalf("expected 1 action card, got %d", len(actions.Cards))
	}
	linked := actions.Cards[0].Linked
	if len(linked) != 1 || linked[0] != "card-anon" {
		t.Errorf("action links lost: %v", linked)
	}
}

func TestBuildSnapshotEmptyColumn(t *testing.T) {
	snapshot := BuildSnapshot(testBoard(), nil, time.Now())
	for _, column := range snapshot.Columns {
		if column.Cards == nil {
			t.Errorf("column %s has nil cards, want empty slice", column.ID)
		}
	}
}

func TestRenderMarkdown(t *testing.T) {
	md := renderMarkdown(BuildSnapshot(testBoard(), testCards(), time.Now()))

	for _, want := range []string{
		"# Sprint 42 Retro",
		"## What went well",
		"**[FEEDBACK]** Release went smoothly",
		"_(2 reactions, 5 with children)_",
		"  - **[FEEDBACK]** CI was fast",
		"(by anonymous)",
		"addresses: card-anon",
	} {
		if !strings.Contains(md, want) {
			t.Errorf("markdown missing %q\n%s", want, md)
		}
	}
}

type fakeDataStore struct {
	getBoard  func(ctx context.Context, id string) (store.Board, error)
	listCards func(ctx context.Context, boardID string, filter store.ListFilter) ([]store.Card, error)
}

func (f *fakeDataStore) GetBoard(ctx context.Context, id string) (store.Board, error) {
	return f.getBoard(ctx, id)
}

func (f *fakeDataStore) ListCards(ctx context.Context, boardID string, filter store.ListFilter) ([]store.Card, error) {
	return f.listCards(ctx, boardID, filter)
}

func TestExportJSON(t *testing.T) {
	svc := NewService(&fakeDataStore{
		getBoard: func(ctx context.Context, id string) (store.Board, error) {
			return testBoard(), nil
		},
		listCards: func(ctx context.Context, boardID string, filter store.ListFilter) ([]store.Card, error) {
			return testCards(), nil
		},
	}, nil)

	result, err := svc.Export(context.Background(), Request{BoardID: "board-1", Format: FormatJSON})
	if err != nil {
		t.Fatalf("Export failed: %v", err)
	}
	if result.Filename != "Sprint-42-Retro.json" {
		t.Errorf("unexpected filename %s", result.Filename)
	}

	var snapshot BoardSnapshot
	if err := json.Unmarshal(result.Data, &snapshot); err != nil {
		t.Fatalf("export is not valid JSON: %v", err)
	}
	if snapshot.BoardID != "board-1" || len(snapshot.Columns) != 3 {
		t.Errorf("unexpected snapshot: %+v", snapshot)
	}
}

func TestExportRejectsUnknownFormat(t *testing.T) {
	svc := NewService(&fakeDataStore{
		getBoard: func(ctx context.Context, id string) (store.Board, error) {
			return testBoard(), nil
		},
		listCards: func(ctx context.Context, boardID string, filter store.ListFilter) ([]store.Card, error) {
			return nil, nil
		},
	}, nil)

	if _, err := svc.Export(context.Background(), Request{BoardID: "board-1", Format: "docx"}); err == nil {
		t.Fatal("expected unsupported format error")
	}
}

func TestExportArchiveUnconfigured(t *testing.T) {
	svc := NewService(&fakeDataStore{
		getBoard: func(ctx context.Context, id string) (store.Board, error) {
			return testBoard(), nil
		},
		listCards: func(ctx context.Context, boardID string, filter store.ListFilter) ([]store.Card, error) {
			return nil, nil
		},
	}, nil)

	_, err := svc.Export(context.Background(), Request{BoardID: "board-1", Format: FormatJSON, Archive: true})
	if err != ErrArchiveUnavailable {
		t.Fatalf("expected ErrArchiveUnavailable, got %v", err)
	}
}

func TestSanitizeFilename(t *testing.T) {
	cases := map[string]string{
		"Sprint 42 Retro":  "Sprint-42-Retro",
		"über/böse::name":  "berbsename",
		"":                 "board",
		strings.Repeat("a", 80): strings.Repeat("a", 50),
	}
	for input, want := range cases {
		if got := sanitizeFilename(input); got != want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", input, got, want)
		}
	}
}
