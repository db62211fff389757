package store

import (
	"time"

	"retroboard/api/internal/cards"
)

type Board struct {
	ID              string
	Name            string
	State           string // "open" or "closed"
	Columns         []Column
	Admins          []string
	CardLimit       int // per-user feedback card limit, 0 = unlimited
	ReactionLimit   int // per-user reaction limit, 0 = unlimited
	AdminSecretHash string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type Column struct {
	ID        string
	Label     string
	SortOrder int
}

// Card is the authoritative card record. ParentID is empty for top-level
// cards; Linked carries the addressed feedback ids for action cards and is
// populated by the read paths that need it.
type Card struct {
	ID        string
	BoardID   string
	ColumnID  string
	Content   string
	Type      cards.Type
	Anonymous bool
	CreatedBy string // opaque identity hash
	Alias     string // empty when anonymous
	ParentID  string
	Direct    int
	Aggregate int
	Linked    []string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Snapshot converts the record into the read-only view the rule table uses.
func (c Card) Snapshot() cards.Snapshot {
	return cards.Snapshot{
		ID:        c.ID,
		BoardID:   c.BoardID,
		ColumnID:  c.ColumnID,
		Type:      c.Type,
		ParentID:  c.ParentID,
		Direct:    c.Direct,
		Aggregate: c.Aggregate,
		Linked:    c.Linked,
	}
}

// ListFilter narrows ListCards. Zero values mean "no filter".
type ListFilter struct {
	ColumnID  string
	Type      cards.Type
	CreatedBy string
}

// ReactionResult reports the counters after a react/unreact so the emitted
// event can carry the new values without a second read.
type ReactionResult struct {
	CardID          string
	NewDirect       int
	NewAggregate    int
	ParentID        string
	ParentAggregate int
}

// DeleteResult reports the side effects of a cascade delete.
type DeleteResult struct {
	ParentID        string
	ParentAggregate int
	OrphanedIDs     []string
}

// AggregateFix is one row corrected by the recompute repair pass.
type AggregateFix struct {
	CardID       string
	NewAggregate int
}
