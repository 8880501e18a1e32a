package tui

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/constellahq/constellation/engine"
	"github.com/constellahq/constellation/hitl"
	"github.com/constellahq/constellation/progress"
)

func TestCommitResetsTurnState(t *testing.T) {
	m := NewModel(NewClient("http://localhost:8080"), false, nil)
	m.turn = progress.Reduce(m.turn, engine.Event{Step: engine.StepDrafting, Status: engine.StatusStarted})
	m.turn = progress.Reduce(m.turn, engine.Event{Step: engine.StepDrafting, Status: engine.StatusComplete, Draft: "draft"})
	require.Equal(t, progress.StatusComplete, m.turn.Drafting)

	m = m.commit(hitl.Decision{FinalText: "answer"})

	assert.Equal(t, progress.StatusPending, m.turn.Drafting)
	assert.Empty(t, m.turn.Draft)
	assert.Equal(t, stateInput, m.state)
	require.Len(t, m.entries, 1)
	assert.Equal(t, "answer", m.entries[0].content)
}

func TestFinishTurnUnarmedGateCommitsAndResets(t *testing.T) {
	m := NewModel(NewClient("http://localhost:8080"), false, nil)
	m.state = stateStreaming
	m.turn = progress.Reduce(m.turn, engine.Event{Step: engine.StepDrafting, Status: engine.StatusStarted})

	next, _ := m.finishTurn(streamDoneMsg{result: &engine.TurnResult{
		Draft:         "draft",
		FinalResponse: "final",
		WasCorrected:  true,
	}})
	got := next.(Model)

	assert.Equal(t, stateInput, got.state)
	assert.Equal(t, progress.StatusPending, got.turn.Drafting)
	require.Len(t, got.entries, 1)
	assert.Equal(t, "final", got.entries[0].content)
	assert.True(t, got.entries[0].wasCorrected)
}

func TestFinishTurnArmedGateHoldsForReview(t *testing.T) {
	m := NewModel(NewClient("http://localhost:8080"), true, nil)
	m.state = stateStreaming

	next, _ := m.finishTurn(streamDoneMsg{result: &engine.TurnResult{
		Draft:         "draft",
		FinalResponse: "revised",
		WasCorrected:  true,
	}})
	got := next.(Model)

	assert.Equal(t, stateReview, got.state)
	assert.Empty(t, got.entries)
	require.NotNil(t, got.gate.Pending())
	assert.Equal(t, "revised", got.gate.Pending().FinalText)
}
