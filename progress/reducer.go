// Package progress reconstructs structured process state from a turn's
// progress-event sequence. The reducer is a pure, synchronous fold intended
// for a single consumer draining the event stream in order.
package progress

import (
	"github.com/constellahq/constellation/auditor"
	"github.com/constellahq/constellation/engine"
)

// StepStatus is the lifecycle of one logical step or auditor check.
type StepStatus string

const (
	StatusPending  StepStatus = "pending"
	StatusActive   StepStatus = "active"
	StatusComplete StepStatus = "complete"

	// StatusSkipped applies only to the correcting step, inferred when
	// finalizing starts while correcting is still pending: the protocol
	// carries no explicit skip event.
	StatusSkipped StepStatus = "skipped"
)

// State is the per-turn renderable snapshot. It is rebuilt fresh per turn
// and owned solely by the reducer; Reduce never mutates a prior snapshot.
type State struct {
	Drafting   StepStatus
	Correcting StepStatus
	Finalizing StepStatus

	// Draft is the draft text once drafting completes.
	Draft string

	// ActiveAuditors is the ordered auditor list announced at auditing/started.
	ActiveAuditors []auditor.ID

	// AuditorStates tracks each active auditor's check. Every key is a
	// member of ActiveAuditors.
	AuditorStates map[auditor.ID]StepStatus

	// AuditorResults holds verdicts as checks complete. Every key is a
	// member of ActiveAuditors.
	AuditorResults map[auditor.ID]auditor.Result
}

// NewState returns the initial all-pending snapshot for a turn.
func NewState() State {
	return State{
		Drafting:       StatusPending,
		Correcting:     StatusPending,
		Finalizing:     StatusPending,
		AuditorStates:  map[auditor.ID]StepStatus{},
		AuditorResults: map[auditor.ID]auditor.Result{},
	}
}

// clone copies the snapshot so the fold never aliases mutable state.
func (s State) clone() State {
	next := s
	next.ActiveAuditors = append([]auditor.ID(nil), s.ActiveAuditors...)
	next.AuditorStates = make(map[auditor.ID]StepStatus, len(s.AuditorStates))
	for k, v := range s.AuditorStates {
		next.AuditorStates[k] = v
	}
	next.AuditorResults = make(map[auditor.ID]auditor.Result, len(s.AuditorResults))
	for k, v := range s.AuditorResults {
		next.AuditorResults[k] = v
	}
	return next
}

// isActive reports whether id was announced in the active auditor list.
func (s State) isActive(id auditor.ID) bool {
	for _, a := range s.ActiveAuditors {
		if a == id {
			return true
		}
	}
	return false
}

// Reduce folds one event into the snapshot, returning a new snapshot.
// Unknown steps are ignored without error for forward compatibility.
func Reduce(prior State, ev engine.Event) State {
	next := prior.clone()

	switch ev.Step {
	case engine.StepDrafting:
		switch ev.Status {
		case engine.StatusStarted:
			next.Drafting = StatusActive
		case engine.StatusComplete:
			next.Drafting = StatusComplete
			next.Draft = ev.Draft
		}

	case engine.StepAuditing:
		if ev.Status == engine.StatusStarted {
			next.ActiveAuditors = append([]auditor.ID(nil), ev.ActiveAuditors...)
			// Idempotent initialization: a re-sent announcement must not
			// clobber checks that already progressed.
			for _, id := range next.ActiveAuditors {
				if _, ok := next.AuditorStates[id]; !ok {
					next.AuditorStates[id] = StatusPending
				}
			}
		}

	case engine.StepCorrecting:
		switch ev.Status {
		case engine.StatusStarted:
			next.Correcting = StatusActive
		case engine.StatusComplete:
			next.Correcting = StatusComplete
		}

	case engine.StepFinalizing:
		if ev.Status == engine.StatusStarted {
			next.Finalizing = StatusActive
			// The only cross-field inference in the protocol: reaching
			// finalizing with correcting untouched means no auditor
			// flagged the draft.
			if next.Correcting == StatusPending {
				next.Correcting = StatusSkipped
			}
		}

	case engine.StepComplete:
		next.Finalizing = StatusComplete

	default:
		id, ok := ev.IsCheck()
		if !ok || !next.isActive(id) {
			return next // unknown step, or a check for an unannounced auditor
		}
		switch ev.Status {
		case engine.StatusStarted:
			next.AuditorStates[id] = StatusActive
		case engine.StatusComplete:
			next.AuditorStates[id] = StatusComplete
			if res, ok := ev.AuditResult(); ok {
				next.AuditorResults[id] = res
			}
		}
	}

	return next
}
