// Package testutil provides mock implementations for testing code that
// depends on the llm package.
package testutil

import (
	"context"
	"strings"
	"sync"

	"github.com/constellahq/constellation/llm"
)

// MockCompleter is a thread-safe llm.Completer for tests. Responses can be
// configured per capability; unmatched capabilities fall back to the Default
// response. An error configured for a capability takes precedence.
type MockCompleter struct {
	mu sync.Mutex

	// ByCapability maps capability → queued responses, returned in order.
	// The last response repeats once the queue is exhausted.
	ByCapability map[string][]string

	// Errors maps capability → error to return.
	Errors map[string]error

	// Default is returned for capabilities with no configured queue.
	Default string

	// Requests records every request received, in order.
	Requests []llm.Request

	served map[string]int
}

// Complete implements llm.Completer.
func (m *MockCompleter) Complete(_ context.Context, req llm.Request) (*llm.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Requests = append(m.Requests, req)

	if err, ok := m.Errors[req.Capability]; ok && err != nil {
		return nil, err
	}

	content := m.Default
	if queue, ok := m.ByCapability[req.Capability]; ok && len(queue) > 0 {
		if m.served == nil {
			m.served = make(map[string]int)
		}
		idx := m.served[req.Capability]
		if idx >= len(queue) {
			idx = len(queue) - 1
		}
		m.served[req.Capability]++
		content = queue[idx]
	}

	return &llm.Response{Content: content, Model: "mock-model", FinishReason: "stop"}, nil
}

// CallCount returns the number of requests served.
func (m *MockCompleter) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Requests)
}

// RequestsFor returns the recorded requests for a capability.
func (m *MockCompleter) RequestsFor(capability string) []llm.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []llm.Request
	for _, r := range m.Requests {
		if r.Capability == capability {
			out = append(out, r)
		}
	}
	return out
}

// LastPromptContains reports whether the most recent request for a capability
// contains the given substring in any message.
func (m *MockCompleter) LastPromptContains(capability, substr string) bool {
	reqs := m.RequestsFor(capability)
	if len(reqs) == 0 {
		return false
	}
	for _, msg := range reqs[len(reqs)-1].Messages {
		if strings.Contains(msg.Content, substr) {
			return true
		}
	}
	return false
}
