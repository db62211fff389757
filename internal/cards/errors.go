package cards

// RuleError is a terminal validation failure from the relationship rule
// table. Code matches the wire-level error taxonomy so the client mirror
// can show the same message the server would return.
type RuleError struct {
	Code    string
	Message string
}

func (e *RuleError) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

var (
	ErrSelfDrop = &RuleError{Code: "SELF_DROP", Message: "cannot drop a card onto itself"}

	ErrAlreadyChild = &RuleError{Code: "ALREADY_CHILD", Message: "card already belongs to a group"}

	ErrHierarchyDepth = &RuleError{Code: "HIERARCHY_DEPTH", Message: "only 1-level hierarchy allowed"}

	ErrCircular = &RuleError{Code: "CIRCULAR_RELATIONSHIP", Message: "link would create a cycle"}

	ErrTypeMismatch = &RuleError{Code: "TYPE_MISMATCH", Message: "cards of these types cannot be linked"}

	ErrUnknownCard = &RuleError{Code: "NOT_FOUND", Message: "unknown card"}
)
