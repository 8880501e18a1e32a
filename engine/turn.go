package engine

import (
	"fmt"
	"strings"

	"github.com/constellahq/constellation/auditor"
)

// ChatMessage is one entry of the conversation history sent by the caller.
type ChatMessage struct {
	Role    string `json:"role"` // "user" or "assistant"
	Content string `json:"content"`
}

// Request is the shape accepted by the orchestration entry point.
type Request struct {
	Message string        `json:"message"`
	History []ChatMessage `json:"history,omitempty"`
}

// Validate checks the request at the input boundary.
func (r Request) Validate() error {
	if strings.TrimSpace(r.Message) == "" {
		return fmt.Errorf("message is required")
	}
	for _, m := range r.History {
		if m.Role != "user" && m.Role != "assistant" {
			return fmt.Errorf("invalid history role: %q", m.Role)
		}
	}
	return nil
}

// TurnResult is the final response shape, carried on the terminal "complete"
// event and returned by the non-streaming endpoint.
type TurnResult struct {
	Draft          string                        `json:"draft"`
	Audits         map[auditor.ID]auditor.Result `json:"audits"`
	ActiveAuditors []auditor.ID                  `json:"active_auditors"`
	FinalResponse  string                        `json:"final_response"`
	WasCorrected   bool                          `json:"was_corrected"`

	// MedicalAudit and LegalAudit flatten the corresponding entries of
	// Audits for older clients.
	//
	// Deprecated: read Audits instead.
	MedicalAudit *auditor.Result `json:"medical_audit,omitempty"`
	LegalAudit   *auditor.Result `json:"legal_audit,omitempty"`
}

// populateDeprecated fills the flattened compatibility fields from Audits.
func (t *TurnResult) populateDeprecated() {
	if res, ok := t.Audits[auditor.Medical]; ok {
		r := res
		t.MedicalAudit = &r
	}
	if res, ok := t.Audits[auditor.Legal]; ok {
		r := res
		t.LegalAudit = &r
	}
}

// historyWindow returns the last n history messages.
func historyWindow(history []ChatMessage, n int) []ChatMessage {
	if len(history) <= n {
		return history
	}
	return history[len(history)-n:]
}

// historyText flattens history into the "Patient:/Nurse:" transcript used in
// prompts and in activation matching.
func historyText(history []ChatMessage) string {
	var b strings.Builder
	for i, m := range history {
		if i > 0 {
			b.WriteByte('\n')
		}
		speaker := "Nurse"
		if m.Role == "user" {
			speaker = "Patient"
		}
		b.WriteString(speaker)
		b.WriteString(": ")
		b.WriteString(m.Content)
	}
	return b.String()
}
