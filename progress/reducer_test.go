package progress

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/constellahq/constellation/auditor"
	"github.com/constellahq/constellation/engine"
)

func reduceAll(events []engine.Event) State {
	state := NewState()
	for _, ev := range events {
		state = Reduce(state, ev)
	}
	return state
}

func TestReduceFullCorrectedTurn(t *testing.T) {
	safe := false
	events := []engine.Event{
		{Step: engine.StepDrafting, Status: engine.StatusStarted},
		{Step: engine.StepDrafting, Status: engine.StatusComplete, Draft: "the draft"},
		{Step: engine.StepAuditing, Status: engine.StatusStarted,
			ActiveAuditors: []auditor.ID{auditor.Medical, auditor.Legal, auditor.Empathy}},
		{Step: auditor.Medical.CheckStep(), Status: engine.StatusStarted, AuditorID: auditor.Medical},
		{Step: auditor.Medical.CheckStep(), Status: engine.StatusComplete, AuditorID: auditor.Medical,
			Result: auditor.Result{Safe: false, Reasoning: "flagged"}, Safe: &safe},
		{Step: engine.StepCorrecting, Status: engine.StatusStarted},
		{Step: engine.StepCorrecting, Status: engine.StatusComplete},
		{Step: engine.StepFinalizing, Status: engine.StatusStarted},
		{Step: engine.StepComplete},
	}

	state := reduceAll(events)
	assert.Equal(t, StatusComplete, state.Drafting)
	assert.Equal(t, "the draft", state.Draft)
	assert.Equal(t, StatusComplete, state.Correcting)
	assert.Equal(t, StatusComplete, state.Finalizing)
	assert.Equal(t, StatusComplete, state.AuditorStates[auditor.Medical])
	assert.Equal(t, StatusPending, state.AuditorStates[auditor.Legal])
	assert.False(t, state.AuditorResults[auditor.Medical].Safe)
}

func TestReduceInfersCorrectingSkipped(t *testing.T) {
	state := reduceAll([]engine.Event{
		{Step: engine.StepDrafting, Status: engine.StatusStarted},
		{Step: engine.StepDrafting, Status: engine.StatusComplete, Draft: "d"},
		{Step: engine.StepAuditing, Status: engine.StatusStarted, ActiveAuditors: []auditor.ID{auditor.Medical}},
		{Step: engine.StepFinalizing, Status: engine.StatusStarted},
	})
	assert.Equal(t, StatusSkipped, state.Correcting)
	assert.Equal(t, StatusActive, state.Finalizing)
}

func TestReduceDoesNotSkipActiveCorrecting(t *testing.T) {
	state := reduceAll([]engine.Event{
		{Step: engine.StepCorrecting, Status: engine.StatusStarted},
		{Step: engine.StepCorrecting, Status: engine.StatusComplete},
		{Step: engine.StepFinalizing, Status: engine.StatusStarted},
	})
	assert.Equal(t, StatusComplete, state.Correcting)
}

func TestReduceIgnoresUnknownSteps(t *testing.T) {
	base := reduceAll([]engine.Event{
		{Step: engine.StepDrafting, Status: engine.StatusStarted},
	})
	next := Reduce(base, engine.Event{Step: "telemetry_snapshot", Status: engine.StatusStarted})
	assert.Equal(t, base, next)
}

func TestReduceIgnoresUnannouncedAuditorCheck(t *testing.T) {
	state := reduceAll([]engine.Event{
		{Step: engine.StepAuditing, Status: engine.StatusStarted, ActiveAuditors: []auditor.ID{auditor.Medical}},
		{Step: auditor.Legal.CheckStep(), Status: engine.StatusStarted, AuditorID: auditor.Legal},
	})
	_, tracked := state.AuditorStates[auditor.Legal]
	assert.False(t, tracked)
}

func TestReduceAuditingStartIsIdempotent(t *testing.T) {
	announce := engine.Event{Step: engine.StepAuditing, Status: engine.StatusStarted,
		ActiveAuditors: []auditor.ID{auditor.Medical, auditor.Legal}}

	state := reduceAll([]engine.Event{
		announce,
		{Step: auditor.Medical.CheckStep(), Status: engine.StatusStarted, AuditorID: auditor.Medical},
		announce, // duplicate announcement must not reset progress
	})
	assert.Equal(t, StatusActive, state.AuditorStates[auditor.Medical])
	assert.Equal(t, StatusPending, state.AuditorStates[auditor.Legal])
}

func TestReduceNeverMutatesPriorState(t *testing.T) {
	prior := reduceAll([]engine.Event{
		{Step: engine.StepAuditing, Status: engine.StatusStarted, ActiveAuditors: []auditor.ID{auditor.Medical}},
	})
	snapshot := prior.AuditorStates[auditor.Medical]

	_ = Reduce(prior, engine.Event{
		Step: auditor.Medical.CheckStep(), Status: engine.StatusComplete, AuditorID: auditor.Medical,
		Result: auditor.Result{Safe: true},
	})

	assert.Equal(t, snapshot, prior.AuditorStates[auditor.Medical])
	_, held := prior.AuditorResults[auditor.Medical]
	assert.False(t, held)
}

func TestReduceCheckStepSuffixFallback(t *testing.T) {
	// A producer that omits auditor_id still resolves via the step suffix.
	state := reduceAll([]engine.Event{
		{Step: engine.StepAuditing, Status: engine.StatusStarted, ActiveAuditors: []auditor.ID{auditor.DrugInteraction}},
		{Step: "drug_interaction_check", Status: engine.StatusStarted},
	})
	require.Contains(t, state.AuditorStates, auditor.DrugInteraction)
	assert.Equal(t, StatusActive, state.AuditorStates[auditor.DrugInteraction])
}
