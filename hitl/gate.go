// Package hitl implements the human-in-the-loop approval gate. When armed,
// the gate intercepts corrected turns before they are committed to the
// transcript and requires an explicit approve, approve-with-edit, or reject
// action.
package hitl

import (
	"errors"

	"github.com/constellahq/constellation/engine"
)

var (
	// ErrTurnPending is returned when a new turn is offered while one is
	// already held. Callers must disable input while a turn is pending.
	ErrTurnPending = errors.New("a turn is already pending approval")

	// ErrNothingPending is returned by an action when no turn is held.
	ErrNothingPending = errors.New("no turn is pending approval")
)

// Reviewable is the slice of a finished turn the gate needs: the corrected
// flag to decide whether to hold it, and the draft/final text to resolve the
// chosen action. Build one from an engine result with FromTurn.
type Reviewable struct {
	Draft        string
	FinalText    string
	WasCorrected bool
}

// FromTurn extracts the gate's view of a finished turn.
func FromTurn(t *engine.TurnResult) Reviewable {
	return Reviewable{
		Draft:        t.Draft,
		FinalText:    t.FinalResponse,
		WasCorrected: t.WasCorrected,
	}
}

// Decision is the outcome of offering a turn or taking an action.
type Decision struct {
	// FinalText is the text to commit to the transcript.
	FinalText string

	// WasCorrected is the committed corrected flag; a reject forces it
	// back to false.
	WasCorrected bool
}

// Gate is the client-side approval state machine. It has two states, armed
// and disarmed, and holds at most one pending turn. The gate is used from a
// single-threaded UI loop and performs no locking of its own.
type Gate struct {
	armed   bool
	pending *Reviewable
}

// NewGate creates a gate, armed or disarmed.
func NewGate(armed bool) *Gate {
	return &Gate{armed: armed}
}

// Arm enables the gate for subsequent turns. A turn already held stays held.
func (g *Gate) Arm() { g.armed = true }

// Disarm disables the gate for subsequent turns. A turn already held still
// requires an explicit action.
func (g *Gate) Disarm() { g.armed = false }

// Armed reports whether the gate is armed.
func (g *Gate) Armed() bool { return g.armed }

// HasPending reports whether a turn is awaiting an action.
func (g *Gate) HasPending() bool { return g.pending != nil }

// Pending returns the held turn, or nil.
func (g *Gate) Pending() *Reviewable {
	return g.pending
}

// Offer presents a finished turn to the gate. While disarmed, or when the
// turn was not corrected, it commits immediately and the decision is
// returned. Otherwise the turn is held pending and the decision is nil until
// exactly one of Approve, ApproveWithEdit, or Reject is taken.
func (g *Gate) Offer(t Reviewable) (*Decision, error) {
	if g.pending != nil {
		return nil, ErrTurnPending
	}
	if !g.armed || !t.WasCorrected {
		return &Decision{FinalText: t.FinalText, WasCorrected: t.WasCorrected}, nil
	}
	held := t
	g.pending = &held
	return nil, nil
}

// Approve commits the pending turn with its corrected text unchanged.
func (g *Gate) Approve() (Decision, error) {
	t, err := g.take()
	if err != nil {
		return Decision{}, err
	}
	return Decision{FinalText: t.FinalText, WasCorrected: t.WasCorrected}, nil
}

// ApproveWithEdit commits the pending turn with its final text replaced.
func (g *Gate) ApproveWithEdit(text string) (Decision, error) {
	t, err := g.take()
	if err != nil {
		return Decision{}, err
	}
	return Decision{FinalText: text, WasCorrected: t.WasCorrected}, nil
}

// Reject commits the pending turn with the original draft restored and the
// corrected flag cleared.
func (g *Gate) Reject() (Decision, error) {
	t, err := g.take()
	if err != nil {
		return Decision{}, err
	}
	return Decision{FinalText: t.Draft, WasCorrected: false}, nil
}

// take clears and returns the pending slot, enforcing one action per turn.
func (g *Gate) take() (Reviewable, error) {
	if g.pending == nil {
		return Reviewable{}, ErrNothingPending
	}
	t := *g.pending
	g.pending = nil
	return t, nil
}
