package stream

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/constellahq/constellation/auditor"
	"github.com/constellahq/constellation/engine"
)

func TestEncodeWritesPrefixedFrames(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)

	require.NoError(t, enc.Encode(engine.Event{Step: engine.StepDrafting, Status: engine.StatusStarted}))

	out := buf.String()
	assert.True(t, strings.HasPrefix(out, "data: "))
	assert.True(t, strings.HasSuffix(out, "\n\n"))
	assert.Contains(t, out, `"step":"drafting"`)
	assert.Contains(t, out, `"status":"started"`)
}

func TestRoundTripFullTurn(t *testing.T) {
	safe := true
	result := &engine.TurnResult{
		Draft:          "draft text",
		FinalResponse:  "final text",
		WasCorrected:   true,
		ActiveAuditors: []auditor.ID{auditor.Medical, auditor.Legal, auditor.Empathy},
		Audits: map[auditor.ID]auditor.Result{
			auditor.Medical: {Safe: false, Reasoning: "flagged", Name: "Medical Auditor"},
			auditor.Legal:   {Safe: true, Name: "Legal Auditor"},
			auditor.Empathy: {Safe: true, Name: "Empathy Auditor"},
		},
	}

	sent := []engine.Event{
		{Step: engine.StepDrafting, Status: engine.StatusStarted},
		{Step: engine.StepDrafting, Status: engine.StatusComplete, Draft: "draft text"},
		{Step: engine.StepAuditing, Status: engine.StatusStarted,
			ActiveAuditors: []auditor.ID{auditor.Medical, auditor.Legal, auditor.Empathy}},
		{Step: auditor.Medical.CheckStep(), Status: engine.StatusStarted, AuditorID: auditor.Medical},
		{Step: auditor.Medical.CheckStep(), Status: engine.StatusComplete, AuditorID: auditor.Medical,
			Result: auditor.Result{Safe: true, Name: "Medical Auditor"}, Safe: &safe},
		{Step: engine.StepCorrecting, Status: engine.StatusStarted},
		{Step: engine.StepCorrecting, Status: engine.StatusComplete},
		{Step: engine.StepFinalizing, Status: engine.StatusStarted},
		{Step: engine.StepComplete, Result: result},
	}

	var buf bytes.Buffer
	enc := NewEncoder(&buf)
	for _, ev := range sent {
		require.NoError(t, enc.Encode(ev))
	}

	var got []engine.Event
	final, err := NewDecoder(&buf).Decode(func(ev engine.Event) { got = append(got, ev) })
	require.NoError(t, err)
	require.Len(t, got, len(sent))

	assert.Equal(t, "draft text", got[1].Draft)
	assert.Equal(t, sent[2].ActiveAuditors, got[2].ActiveAuditors)

	res, ok := got[4].AuditResult()
	require.True(t, ok)
	assert.True(t, res.Safe)
	assert.Equal(t, "Medical Auditor", res.Name)

	require.NotNil(t, final)
	assert.Equal(t, "final text", final.FinalResponse)
	assert.True(t, final.WasCorrected)
	assert.False(t, final.Audits[auditor.Medical].Safe)
}

func TestDecodeIgnoresNoiseLines(t *testing.T) {
	input := strings.Join([]string{
		": keepalive",
		"",
		"random garbage",
		`data: {"step":"drafting","status":"started"}`,
		"event: something-else",
		`data: {"step":"complete","result":{"draft":"d","final_response":"f","was_corrected":false}}`,
		"",
	}, "\n")

	var events []engine.Event
	final, err := NewDecoder(strings.NewReader(input)).Decode(func(ev engine.Event) { events = append(events, ev) })
	require.NoError(t, err)
	assert.Len(t, events, 2)
	assert.Equal(t, "f", final.FinalResponse)
}

func TestDecodeDropsMalformedFrames(t *testing.T) {
	input := strings.Join([]string{
		`data: {"step":"drafting","status":"started"}`,
		`data: {not valid json`,
		`data: {"no_step_field":true}`,
		`data: {"step":"complete","result":{"final_response":"ok"}}`,
	}, "\n")

	var events []engine.Event
	final, err := NewDecoder(strings.NewReader(input)).Decode(func(ev engine.Event) { events = append(events, ev) })
	require.NoError(t, err)
	assert.Len(t, events, 2)
	assert.Equal(t, "ok", final.FinalResponse)
}

func TestDecodeDropsOversizedFrames(t *testing.T) {
	huge := `data: {"step":"drafting","status":"complete","draft":"` +
		strings.Repeat("x", maxFrameSize) + `"}`
	input := strings.Join([]string{
		`data: {"step":"drafting","status":"started"}`,
		huge,
		`data: {"step":"complete","result":{"final_response":"ok"}}`,
	}, "\n")

	var events []engine.Event
	final, err := NewDecoder(strings.NewReader(input)).Decode(func(ev engine.Event) { events = append(events, ev) })
	require.NoError(t, err)
	require.NotNil(t, final)
	assert.Equal(t, "ok", final.FinalResponse)
	// The oversized frame drops; everything around it still decodes.
	assert.Len(t, events, 2)
}

func TestDecodeNoCompleteReturnsErrNoResult(t *testing.T) {
	input := `data: {"step":"drafting","status":"started"}` + "\n"

	final, err := NewDecoder(strings.NewReader(input)).Decode(nil)
	assert.Nil(t, final)
	assert.ErrorIs(t, err, ErrNoResult)
}

func TestDecodeCompleteWithoutSnapshotFails(t *testing.T) {
	input := `data: {"step":"complete"}` + "\n"

	final, err := NewDecoder(strings.NewReader(input)).Decode(nil)
	assert.Nil(t, final)
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrNoResult)
}

func TestDecodeStopsAtComplete(t *testing.T) {
	input := strings.Join([]string{
		`data: {"step":"complete","result":{"final_response":"first"}}`,
		`data: {"step":"drafting","status":"started"}`,
	}, "\n")

	var events []engine.Event
	final, err := NewDecoder(strings.NewReader(input)).Decode(func(ev engine.Event) { events = append(events, ev) })
	require.NoError(t, err)
	assert.Equal(t, "first", final.FinalResponse)
	// Nothing after the terminal event is consumed.
	assert.Len(t, events, 1)
}
