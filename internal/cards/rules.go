package cards

// TargetKind says what a dragged card was released over.
type TargetKind string

const (
	TargetColumn TargetKind = "column"
	TargetCard   TargetKind = "card"
)

// Target identifies the drop destination of a link or drag gesture.
type Target struct {
	Kind TargetKind
	ID   string
}

// ValidateDrop decides whether dropping the source card onto the target is
// structurally legal. A column target is always a plain move. For a card
// target the source becomes the parent (Feedback on Feedback) or gains an
// addresses-link (Action on Feedback); every other pairing is rejected.
//
// The returned error is always a *RuleError; nil means the drop is legal.
func ValidateDrop(view View, sourceID string, target Target) error {
	if target.Kind == TargetColumn {
		return nil
	}
	if sourceID == target.ID {
		return ErrSelfDrop
	}

	source, ok := view.Card(sourceID)
	if !ok {
		return ErrUnknownCard
	}
	dest, ok := view.Card(target.ID)
	if !ok {
		return ErrUnknownCard
	}

	switch source.Type {
	case TypeFeedback:
		if dest.Type != TypeFeedback {
			return ErrTypeMismatch
		}
		if source.ParentID != "" {
			return ErrAlreadyChild
		}
		if dest.ParentID != "" {
			return ErrHierarchyDepth
		}
		if ancestorChainContains(view, source, target.ID) {
			return ErrCircular
		}
		return nil
	case TypeAction:
		if dest.Type != TypeFeedback {
			return ErrTypeMismatch
		}
		// Idempotent set-insert: linking an already-linked pair is fine.
		return nil
	}
	return ErrTypeMismatch
}

// Kind reports which relationship edge a legal source→target link creates.
// Callers must run ValidateDrop first; Kind assumes a card target.
func Kind(source, target Type) (LinkKind, bool) {
	switch source {
	case TypeFeedback:
		if target == TypeFeedback {
			return KindParent, true
		}
	case TypeAction:
		if target == TypeFeedback {
			return KindAddresses, true
		}
	}
	return "", false
}

// ancestorChainContains walks up from the prospective parent following
// parent pointers and reports whether wanted appears in the chain. A
// revisited id means the stored chain already loops; the walk stops there
// and the link is allowed through rather than blocking the user on
// pre-existing corruption. The repair pass reports such chains.
func ancestorChainContains(view View, start Snapshot, wanted string) bool {
	visited := map[string]struct{}{start.ID: {}}
	current := start
	for current.ParentID != "" {
		if current.ParentID == wanted {
			return true
		}
		if _, seen := visited[current.ParentID]; seen {
			return false
		}
		visited[current.ParentID] = struct{}{}
		next, ok := view.Card(current.ParentID)
		if !ok {
			return false
		}
		current = next
	}
	return false
}
