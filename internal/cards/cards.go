// Package cards holds the card domain types and the relationship rule
// table. It is deliberately dependency-free: the same rules run inside the
// server orchestrator and inside the client-side drag-drop mirror, so the
// two can never drift apart.
package cards

// Type discriminates the two card kinds. The set is closed; code switching
// on a Type must handle both values and reject anything else.
type Type string

const (
	TypeFeedback Type = "FEEDBACK"
	TypeAction   Type = "ACTION"
)

// Valid reports whether t is one of the two known card types.
func (t Type) Valid() bool {
	switch t {
	case TypeFeedback, TypeAction:
		return true
	}
	return false
}

// LinkKind discriminates the two relationship edge kinds.
type LinkKind string

const (
	// KindParent is the one-level Feedback → Feedback grouping edge.
	KindParent LinkKind = "parent"
	// KindAddresses is the many-to-many Action → Feedback edge.
	KindAddresses LinkKind = "addresses"
)

// Snapshot is the read-only view of a card that the rule table operates on.
// The server builds one from the store; clients build one from broadcast
// events.
type Snapshot struct {
	ID        string
	BoardID   string
	ColumnID  string
	Type      Type
	ParentID  string // empty when the card has no parent
	Direct    int    // reactions on the card itself
	Aggregate int    // own reactions plus direct children's
	Linked    []string
}

// View resolves card ids to snapshots. Both the authoritative store and the
// client's local cache satisfy it.
type View interface {
	Card(id string) (Snapshot, bool)
}

// MapView is the simplest View, used by tests and by the client cache.
type MapView map[string]Snapshot

func (m MapView) Card(id string) (Snapshot, bool) {
	snapshot, ok := m[id]
	return snapshot, ok
}
