package export

import (
	"sort"
	"time"

	"retroboard/api/internal/store"
)

// BuildSnapshot assembles the exportable view of a board: columns in sort
// order, top-level cards per column, children nested under their parent.
// Cards keep the order they arrive in, which the store gives as creation
// order.
func BuildSnapshot(board store.Board, boardCards []store.Card, now time.Time) BoardSnapshot {
	childrenByParent := make(map[string][]store.Card)
	for _, card := range boardCards {
		if card.ParentID != "" {
			childrenByParent[card.ParentID] = append(childrenByParent[card.ParentID], card)
		}
	}

	cardsByColumn := make(map[string][]CardSnapshot)
	for _, card := range boardCards {
		if card.ParentID != "" {
			continue
		}
		snap := cardSnapshot(card)
		for _, child := range childrenByParent[card.ID] {
			snap.Children = append(snap.Children, cardSnapshot(child))
		}
		cardsByColumn[card.ColumnID] = append(cardsByColumn[card.ColumnID], snap)
	}

	columns := make([]store.Column, len(board.Columns))
	copy(columns, board.Columns)
	sort.Slice(columns, func(i, j int) bool { return columns[i].SortOrder < columns[j].SortOrder })

	snapshot := BoardSnapshot{
		BoardID:    board.ID,
		Name:       board.Name,
		State:      board.State,
		ExportedAt: now.UTC(),
	}
	for _, column := range columns {
		cardList := cardsByColumn[column.ID]
		if cardList == nil {
			cardList = []CardSnapshot{}
		}
		snapshot.Columns = append(snapshot.Columns, ColumnSnapshot{
			ID:    column.ID,
			Label: column.Label,
			Cards: cardList,
		})
	}
	return snapshot
}

func cardSnapshot(card store.Card) CardSnapshot {
	alias := card.Alias
	if card.Anonymous {
		alias = ""
	}
	return CardSnapshot{
		ID:        card.ID,
		CardType:  string(card.Type),
		Content:   card.Content,
		Alias:     alias,
		Direct:    card.Direct,
		Aggregate: card.Aggregate,
		Linked:    card.Linked,
	}
}
