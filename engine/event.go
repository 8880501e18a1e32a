package engine

import "github.com/constellahq/constellation/auditor"

// Step names for the progress-event vocabulary. Auditor checks use the
// derived "<id>_check" form (auditor.ID.CheckStep).
const (
	StepDrafting   = "drafting"
	StepAuditing   = "auditing"
	StepCorrecting = "correcting"
	StepFinalizing = "finalizing"
	StepComplete   = "complete"
)

// Event statuses.
const (
	StatusStarted  = "started"
	StatusComplete = "complete"
)

// Event is one frame of the progress protocol. Events for a turn are emitted
// in strictly increasing causal order; events for auditors within the same
// stage may interleave with each other but never with a later stage's.
type Event struct {
	// Step is one of the Step* constants or "<auditorId>_check".
	Step string `json:"step"`

	// Status is "started" or "complete". The terminal "complete" step
	// carries no status.
	Status string `json:"status,omitempty"`

	// Draft carries the draft text on drafting/complete.
	Draft string `json:"draft,omitempty"`

	// ActiveAuditors carries the selected auditor ids on auditing/started.
	ActiveAuditors []auditor.ID `json:"active_auditors,omitempty"`

	// AuditorID identifies the auditor on "<id>_check" events.
	AuditorID auditor.ID `json:"auditor_id,omitempty"`

	// Result carries an *auditor.Result on "<id>_check"/complete, and the
	// final *TurnResult on the terminal "complete" event.
	Result any `json:"result,omitempty"`

	// Safe mirrors the auditor verdict on "<id>_check"/complete.
	Safe *bool `json:"safe,omitempty"`
}

// IsCheck reports whether the event is an auditor check, returning the
// auditor id. The auditor_id field is authoritative; the step suffix is a
// fallback for producers that omit it.
func (e Event) IsCheck() (auditor.ID, bool) {
	if e.AuditorID != "" {
		return e.AuditorID, true
	}
	const suffix = "_check"
	if len(e.Step) > len(suffix) && e.Step[len(e.Step)-len(suffix):] == suffix {
		id, err := auditor.ParseID(e.Step[:len(e.Step)-len(suffix)])
		if err == nil {
			return id, true
		}
	}
	return "", false
}

// AuditResult returns the event's result as an auditor verdict, when it is one.
func (e Event) AuditResult() (auditor.Result, bool) {
	switch r := e.Result.(type) {
	case auditor.Result:
		return r, true
	case *auditor.Result:
		if r != nil {
			return *r, true
		}
	}
	return auditor.Result{}, false
}

// FinalTurn returns the event's result as the final turn snapshot, when it is one.
func (e Event) FinalTurn() (*TurnResult, bool) {
	switch r := e.Result.(type) {
	case TurnResult:
		return &r, true
	case *TurnResult:
		if r != nil {
			return r, true
		}
	}
	return nil, false
}
