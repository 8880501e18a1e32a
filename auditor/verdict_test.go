package auditor

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseVerdict(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantSafe bool
	}{
		{
			name:     "clean safe json",
			raw:      `{"status": "SAFE", "reasoning": "Sound advice", "suggestion": "Mention hydration"}`,
			wantSafe: true,
		},
		{
			name:     "clean unsafe json",
			raw:      `{"status": "UNSAFE", "reasoning": "Dose exceeds limit", "suggestion": "Cap at 400mg"}`,
			wantSafe: false,
		},
		{
			name:     "fenced json",
			raw:      "```json\n{\"status\": \"SAFE\", \"reasoning\": \"ok\"}\n```",
			wantSafe: true,
		},
		{
			name:     "json with surrounding prose",
			raw:      "Here is my assessment:\n{\"status\": \"UNSAFE\", \"reasoning\": \"missing warning\"}\nThanks.",
			wantSafe: false,
		},
		{
			name:     "status is case insensitive",
			raw:      `{"status": "safe", "reasoning": "fine"}`,
			wantSafe: true,
		},
		{
			name:     "prose fallback safe",
			raw:      "The response looks SAFE to me overall.",
			wantSafe: true,
		},
		{
			name:     "prose containing unsafe is not safe",
			raw:      "This is UNSAFE because the dose is too high, otherwise SAFE.",
			wantSafe: false,
		},
		{
			name:     "garbage is unsafe",
			raw:      "I cannot evaluate this request.",
			wantSafe: false,
		},
		{
			name:     "empty is unsafe",
			raw:      "",
			wantSafe: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ParseVerdict(tt.raw, "Medical Auditor")
			assert.Equal(t, tt.wantSafe, res.Safe)
			assert.Equal(t, "Medical Auditor", res.Name)
		})
	}
}

func TestParseVerdictKeepsReasoningAndSuggestion(t *testing.T) {
	res := ParseVerdict(`{"status": "UNSAFE", "reasoning": "no dose limit", "suggestion": "add the limit"}`, "Medical Auditor")
	assert.False(t, res.Safe)
	assert.Equal(t, "no dose limit", res.Reasoning)
	assert.Equal(t, "add the limit", res.Suggestion)
}

func TestParseVerdictUnparseableCarriesRawText(t *testing.T) {
	res := ParseVerdict("  total nonsense  ", "Legal Auditor")
	assert.False(t, res.Safe)
	assert.Equal(t, "total nonsense", res.Reasoning)
	assert.Equal(t, "Review needed.", res.Suggestion)
}

func TestFailureResultIsUnsafe(t *testing.T) {
	res := FailureResult("Medical Auditor", errors.New("timeout"))
	assert.False(t, res.Safe)
	assert.Contains(t, res.Reasoning, "Audit unavailable")
	assert.Contains(t, res.Reasoning, "timeout")
	assert.Equal(t, "Medical Auditor", res.Name)
}

func TestPromptEmbedsDraftQuestionAndContract(t *testing.T) {
	for _, id := range AllIDs {
		prompt := Prompt(id, "the draft answer", "the patient question")
		assert.Contains(t, prompt, "the draft answer", "auditor %s", id)
		assert.Contains(t, prompt, "the patient question", "auditor %s", id)
		assert.Contains(t, prompt, "Respond with ONLY valid JSON", "auditor %s", id)
	}
}

func TestFormatFeedback(t *testing.T) {
	results := map[ID]Result{
		Medical: {Safe: false, Reasoning: "no dose limit", Suggestion: "add it", Name: "Medical Auditor"},
		Legal:   {Safe: true, Reasoning: "compliant", Suggestion: "soften phrasing", Name: "Legal Auditor"},
		Empathy: {Safe: true, Name: "Empathy Auditor"},
	}

	out := FormatFeedback(results, []ID{Medical, Legal, Empathy})
	assert.Contains(t, out, "MEDICAL AUDITOR: no dose limit Suggestion: add it")
	assert.Contains(t, out, "LEGAL AUDITOR: (Approved but with suggestion) compliant Suggestion: soften phrasing")
	// Safe results with nothing to say are dropped entirely.
	assert.NotContains(t, out, "EMPATHY")
}

func TestFormatFeedbackFollowsGivenOrder(t *testing.T) {
	results := map[ID]Result{
		Medical: {Safe: false, Reasoning: "first", Name: "Medical Auditor"},
		Legal:   {Safe: false, Reasoning: "second", Name: "Legal Auditor"},
	}
	out := FormatFeedback(results, []ID{Medical, Legal})
	assert.Less(t, strings.Index(out, "MEDICAL"), strings.Index(out, "LEGAL"))
}
