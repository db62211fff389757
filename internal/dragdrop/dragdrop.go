// Package dragdrop is the client-side mirror of the relationship rules:
// a gesture state machine that pre-validates drops against a locally
// cached snapshot so the UI can show valid/invalid feedback without a
// network round trip. Its verdicts are advisory only; the server's
// answer to the eventual link call is the one that counts.
package dragdrop

import (
	"errors"

	"retroboard/api/internal/cards"
)

type State string

const (
	StateIdle         State = "idle"
	StateDragging     State = "dragging"
	StateHoverValid   State = "hover_valid"
	StateHoverInvalid State = "hover_invalid"
	StateCommitted    State = "committed"
)

var (
	ErrNotIdle     = errors.New("a drag gesture is already in progress")
	ErrNotDragging = errors.New("no drag gesture in progress")
	ErrUnknownCard = errors.New("dragged card is not in the local snapshot")
)

// Verdict is the pre-drop answer for one hover position. Code and Reason
// match the server's error taxonomy one to one, so the UI can show the
// same message the server would return on a real attempt.
type Verdict struct {
	OK     bool   `json:"ok"`
	Code   string `json:"code,omitempty"`
	Reason string `json:"reason,omitempty"`
}

// Gesture tracks one drag from pick-up to drop or cancel. Single-threaded
// by contract; hover events re-run the shared rule table synchronously.
type Gesture struct {
	view    cards.View
	state   State
	cardID  string
	target  cards.Target
	verdict Verdict
}

func NewGesture(view cards.View) *Gesture {
	return &Gesture{view: view, state: StateIdle}
}

func (g *Gesture) State() State { return g.state }

// CardID returns the id of the card being dragged, empty when idle.
func (g *Gesture) CardID() string { return g.cardID }

// Start begins a drag with the given card. The card must be present in
// the local snapshot; a card the client has never seen cannot produce a
// meaningful verdict.
func (g *Gesture) Start(cardID string) error {
	if g.state != StateIdle {
		return ErrNotIdle
	}
	if _, ok := g.view.Card(cardID); !ok {
		return ErrUnknownCard
	}
	g.state = StateDragging
	g.cardID = cardID
	g.target = cards.Target{}
	g.verdict = Verdict{}
	return nil
}

// Hover re-validates the current position. Every call runs the full rule
// table; the state moves to HoverValid or HoverInvalid accordingly.
func (g *Gesture) Hover(target cards.Target) (Verdict, error) {
	switch g.state {
	case StateDragging, StateHoverValid, StateHoverInvalid:
	default:
		return Verdict{}, ErrNotDragging
	}

	g.target = target
	if err := cards.ValidateDrop(g.view, g.cardID, target); err != nil {
		var rule *cards.RuleError
		if errors.As(err, &rule) {
			g.verdict = Verdict{Code: rule.Code, Reason: rule.Message}
		} else {
			g.verdict = Verdict{Code: "VALIDATION_ERROR", Reason: err.Error()}
		}
		g.state = StateHoverInvalid
		return g.verdict, nil
	}
	g.verdict = Verdict{OK: true}
	g.state = StateHoverValid
	return g.verdict, nil
}

// Leave clears the hover target without ending the gesture.
func (g *Gesture) Leave() error {
	switch g.state {
	case StateHoverValid, StateHoverInvalid:
		g.state = StateDragging
		g.target = cards.Target{}
		g.verdict = Verdict{}
		return nil
	case StateDragging:
		return nil
	default:
		return ErrNotDragging
	}
}

// Drop ends the gesture. Only a drop from HoverValid commits; the caller
// then makes exactly one link or move call to the server and finishes
// with Resolve once the server has answered. An invalid or target-less
// drop falls back to Idle.
func (g *Gesture) Drop() (cards.Target, bool) {
	switch g.state {
	case StateHoverValid:
		g.state = StateCommitted
		return g.target, true
	case StateDragging, StateHoverInvalid:
		g.reset()
		return cards.Target{}, false
	default:
		return cards.Target{}, false
	}
}

// Cancel abandons the gesture from any state.
func (g *Gesture) Cancel() {
	g.reset()
}

// Resolve returns to Idle after the server's answer to a committed drop,
// successful or not. The snapshot itself is corrected by the broadcast
// event, not by the local verdict.
func (g *Gesture) Resolve() {
	if g.state == StateCommitted {
		g.reset()
	}
}

func (g *Gesture) reset() {
	g.state = StateIdle
	g.cardID = ""
	g.target = cards.Target{}
	g.verdict = Verdict{}
}
