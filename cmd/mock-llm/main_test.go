package main

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/constellahq/constellation/auditor"
)

func completionBody(t *testing.T, prompt string) *bytes.Reader {
	t.Helper()
	body, err := json.Marshal(chatRequest{
		Model:    "mock",
		Messages: []chatMessage{{Role: "user", Content: prompt}},
	})
	require.NoError(t, err)
	return bytes.NewReader(body)
}

func completionContent(t *testing.T, s *server, prompt string) string {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/chat/completions", completionBody(t, prompt))
	rec := httptest.NewRecorder()
	s.handleChatCompletions(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp chatResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Choices, 1)
	return resp.Choices[0].Message.Content
}

func TestClassifiesDraftingCall(t *testing.T) {
	s := newServer(nil)
	content := completionContent(t, s, "I have a headache, what should I take?")
	assert.NotEmpty(t, content)
	assert.NotContains(t, content, `"status"`)
}

func TestAuditApprovesByDefault(t *testing.T) {
	s := newServer(nil)
	prompt := auditor.Prompt(auditor.Medical, "Take ibuprofen.", "I have a headache")
	content := completionContent(t, s, prompt)

	var verdict struct {
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal([]byte(content), &verdict))
	assert.Equal(t, "SAFE", verdict.Status)
}

func TestAuditFlagsConfiguredAuditor(t *testing.T) {
	s := newServer([]string{"medical", "legal"})

	medical := completionContent(t, s, auditor.Prompt(auditor.Medical, "Take ibuprofen.", "headache"))
	var verdict struct {
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal([]byte(medical), &verdict))
	assert.Equal(t, "UNSAFE", verdict.Status)

	empathy := completionContent(t, s, auditor.Prompt(auditor.Empathy, "Take ibuprofen.", "headache"))
	require.NoError(t, json.Unmarshal([]byte(empathy), &verdict))
	assert.Equal(t, "SAFE", verdict.Status)
}

func TestClassifiesCorrectionCall(t *testing.T) {
	s := newServer([]string{"medical"})
	prompt := auditor.CorrectionPrompt("headache", "Take ibuprofen.", "MEDICAL: missing dose limit")
	content := completionContent(t, s, prompt)
	assert.Contains(t, content, "400mg")

	s.mu.Lock()
	defer s.mu.Unlock()
	assert.Equal(t, 1, s.calls[kindCorrection])
}

func TestStatsCountsByKind(t *testing.T) {
	s := newServer(nil)
	completionContent(t, s, "plain question")
	completionContent(t, s, auditor.Prompt(auditor.Legal, "draft", "question"))

	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	rec := httptest.NewRecorder()
	s.handleStats(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var stats struct {
		TotalCalls  int            `json:"total_calls"`
		CallsByKind map[string]int `json:"calls_by_kind"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 2, stats.TotalCalls)
	assert.Equal(t, 1, stats.CallsByKind["draft"])
	assert.Equal(t, 1, stats.CallsByKind["audit"])
}
