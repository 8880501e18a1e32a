// Package main implements a mock inference server for wiring tests. It serves
// OpenAI-compatible /v1/chat/completions responses by classifying each request
// as a drafting, auditing, or correction call from its prompt shape, so a full
// constellation turn can run fast, deterministic, and offline.
//
// Usage:
//
//	mock-llm -port 11434 -unsafe medical,legal
//
// Auditors named in -unsafe return an UNSAFE verdict, which forces the
// correction path; all others approve. With no -unsafe list every auditor
// approves and the turn completes without correction.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"
)

// --- OpenAI-compatible types ---

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature *float64      `json:"temperature,omitempty"`
	MaxTokens   *int          `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	ID      string       `json:"id"`
	Object  string       `json:"object"`
	Created int64        `json:"created"`
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
	Usage   chatUsage    `json:"usage"`
}

type chatChoice struct {
	Index        int         `json:"index"`
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// callKind is the classified role of an incoming completion request.
type callKind string

const (
	kindDraft      callKind = "draft"
	kindAudit      callKind = "audit"
	kindCorrection callKind = "correction"
)

// auditorRoles maps a role phrase in the audit prompt to the auditor name
// used with -unsafe.
var auditorRoles = map[string]string{
	"Senior Physician":              "medical",
	"Pediatrician":                  "pediatric",
	"Clinical Pharmacist":           "drug_interaction",
	"Healthcare Compliance Officer": "legal",
	"Patient Experience":            "empathy",
}

type server struct {
	unsafe map[string]bool // auditor name → return UNSAFE

	mu    sync.Mutex
	calls map[callKind]int
}

func newServer(unsafeList []string) *server {
	unsafe := make(map[string]bool, len(unsafeList))
	for _, name := range unsafeList {
		name = strings.TrimSpace(name)
		if name != "" {
			unsafe[name] = true
		}
	}
	return &server{unsafe: unsafe, calls: make(map[callKind]int)}
}

func main() {
	port := flag.Int("port", 11434, "port to listen on")
	unsafeFlag := flag.String("unsafe", "", "comma-separated auditors that flag the draft (e.g. medical,legal)")
	flag.Parse()

	var unsafeList []string
	if *unsafeFlag != "" {
		unsafeList = strings.Split(*unsafeFlag, ",")
	}
	s := newServer(unsafeList)
	if len(s.unsafe) > 0 {
		log.Printf("flagging auditors: %s", *unsafeFlag)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/v1/chat/completions", s.handleChatCompletions)
	mux.HandleFunc("/stats", s.handleStats)

	addr := fmt.Sprintf(":%d", *port)
	log.Printf("mock inference server listening on %s", addr)
	if err := http.ListenAndServe(addr, mux); err != nil {
		log.Fatalf("server failed: %v", err)
	}
}

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *server) handleChatCompletions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request body: %v", err), http.StatusBadRequest)
		return
	}

	kind, content := s.respond(req)
	s.mu.Lock()
	s.calls[kind]++
	total := 0
	for _, n := range s.calls {
		total += n
	}
	s.mu.Unlock()
	log.Printf("[call %d] kind=%s model=%s messages=%d", total, kind, req.Model, len(req.Messages))

	resp := chatResponse{
		ID:      fmt.Sprintf("mock-%d", time.Now().UnixNano()),
		Object:  "chat.completion",
		Created: time.Now().Unix(),
		Model:   req.Model,
		Choices: []chatChoice{
			{
				Index:        0,
				Message:      chatMessage{Role: "assistant", Content: content},
				FinishReason: "stop",
			},
		},
		Usage: chatUsage{
			PromptTokens:     len(content) / 4,
			CompletionTokens: len(content) / 4,
			TotalTokens:      len(content) / 2,
		},
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

// respond classifies the request from its prompt shape and builds the canned
// reply.
func (s *server) respond(req chatRequest) (callKind, string) {
	prompt := lastUserContent(req.Messages)

	switch {
	case strings.Contains(prompt, "Respond with ONLY valid JSON"):
		return kindAudit, s.verdict(prompt)
	case strings.Contains(prompt, "Revise your response based on safety feedback"):
		return kindCorrection, "Revised answer: you can take ibuprofen for the pain, but keep single doses at or " +
			"below 400mg and no more than 1200mg in a day without a doctor's guidance. If the pain is severe or " +
			"lasts more than a few days, please get checked out."
	default:
		return kindDraft, "For that kind of pain, ibuprofen usually helps. Take it with food and rest as much " +
			"as you can. Let me know if it doesn't settle down."
	}
}

// verdict builds the auditor JSON answer, flagging when the prompt's role
// matches a -unsafe auditor.
func (s *server) verdict(prompt string) string {
	name := "unknown"
	for phrase, auditorName := range auditorRoles {
		if strings.Contains(prompt, phrase) {
			name = auditorName
			break
		}
	}

	if s.unsafe[name] {
		v := map[string]string{
			"status":     "UNSAFE",
			"reasoning":  "The draft omits the maximum safe dose.",
			"suggestion": "State the single-dose and daily limits explicitly.",
		}
		data, _ := json.Marshal(v)
		return string(data)
	}

	v := map[string]string{
		"status":     "SAFE",
		"reasoning":  "Practical advice with no safety issues.",
		"suggestion": "Could mention when to seek care.",
	}
	data, _ := json.Marshal(v)
	return string(data)
}

func lastUserContent(messages []chatMessage) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == "user" {
			return messages[i].Content
		}
	}
	return ""
}

// handleStats returns per-kind call counts for test assertions.
func (s *server) handleStats(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	counts := make(map[string]int, len(s.calls))
	total := 0
	for kind, n := range s.calls {
		counts[string(kind)] = n
		total += n
	}
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"total_calls":   total,
		"calls_by_kind": counts,
	})
}
