package hitl

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/constellahq/constellation/engine"
)

func corrected() Reviewable {
	return Reviewable{Draft: "the draft", FinalText: "the corrected text", WasCorrected: true}
}

func TestDisarmedGateCommitsImmediately(t *testing.T) {
	g := NewGate(false)

	decision, err := g.Offer(corrected())
	require.NoError(t, err)
	require.NotNil(t, decision)
	assert.Equal(t, "the corrected text", decision.FinalText)
	assert.True(t, decision.WasCorrected)
	assert.False(t, g.HasPending())
}

func TestArmedGatePassesUncorrectedTurn(t *testing.T) {
	g := NewGate(true)

	decision, err := g.Offer(Reviewable{Draft: "d", FinalText: "d", WasCorrected: false})
	require.NoError(t, err)
	require.NotNil(t, decision)
	assert.False(t, g.HasPending())
}

func TestArmedGateHoldsCorrectedTurn(t *testing.T) {
	g := NewGate(true)

	decision, err := g.Offer(corrected())
	require.NoError(t, err)
	assert.Nil(t, decision)
	require.True(t, g.HasPending())
	assert.Equal(t, "the corrected text", g.Pending().FinalText)
}

func TestApproveCommitsCorrectedText(t *testing.T) {
	g := NewGate(true)
	_, err := g.Offer(corrected())
	require.NoError(t, err)

	decision, err := g.Approve()
	require.NoError(t, err)
	assert.Equal(t, "the corrected text", decision.FinalText)
	assert.True(t, decision.WasCorrected)
	assert.False(t, g.HasPending())
}

func TestApproveWithEditReplacesText(t *testing.T) {
	g := NewGate(true)
	_, err := g.Offer(corrected())
	require.NoError(t, err)

	decision, err := g.ApproveWithEdit("my own wording")
	require.NoError(t, err)
	assert.Equal(t, "my own wording", decision.FinalText)
	assert.True(t, decision.WasCorrected)
}

func TestRejectRestoresDraft(t *testing.T) {
	g := NewGate(true)
	_, err := g.Offer(corrected())
	require.NoError(t, err)

	decision, err := g.Reject()
	require.NoError(t, err)
	assert.Equal(t, "the draft", decision.FinalText)
	assert.False(t, decision.WasCorrected)
}

func TestExactlyOneActionPerTurn(t *testing.T) {
	g := NewGate(true)
	_, err := g.Offer(corrected())
	require.NoError(t, err)

	_, err = g.Approve()
	require.NoError(t, err)

	_, err = g.Approve()
	assert.ErrorIs(t, err, ErrNothingPending)
	_, err = g.Reject()
	assert.ErrorIs(t, err, ErrNothingPending)
	_, err = g.ApproveWithEdit("x")
	assert.ErrorIs(t, err, ErrNothingPending)
}

func TestOfferWhilePendingIsRejected(t *testing.T) {
	g := NewGate(true)
	_, err := g.Offer(corrected())
	require.NoError(t, err)

	_, err = g.Offer(corrected())
	assert.ErrorIs(t, err, ErrTurnPending)
}

func TestActionWithNothingPending(t *testing.T) {
	g := NewGate(true)
	_, err := g.Approve()
	assert.ErrorIs(t, err, ErrNothingPending)
}

func TestDisarmKeepsHeldTurnPending(t *testing.T) {
	g := NewGate(true)
	_, err := g.Offer(corrected())
	require.NoError(t, err)

	g.Disarm()
	assert.False(t, g.Armed())
	// The held turn still requires an explicit action.
	require.True(t, g.HasPending())
	decision, err := g.Approve()
	require.NoError(t, err)
	assert.Equal(t, "the corrected text", decision.FinalText)
}

func TestFromTurn(t *testing.T) {
	r := FromTurn(&engine.TurnResult{
		Draft:         "d",
		FinalResponse: "f",
		WasCorrected:  true,
	})
	assert.Equal(t, Reviewable{Draft: "d", FinalText: "f", WasCorrected: true}, r)
}
