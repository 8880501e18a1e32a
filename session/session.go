// Package session models chat-session transcripts and their persistence.
// The orchestration core never touches storage directly; clients commit
// finished turns through a Store so the engine stays independent of the
// storage choice.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/constellahq/constellation/auditor"
)

// ErrNotFound is returned when a session id does not exist.
var ErrNotFound = errors.New("session not found")

// Message is one committed transcript entry. Assistant messages carry the
// audit trail of the turn that produced them.
type Message struct {
	Role         string                        `json:"role"` // "user" or "assistant"
	Content      string                        `json:"content"`
	WasCorrected bool                          `json:"was_corrected,omitempty"`
	Audits       map[auditor.ID]auditor.Result `json:"audits,omitempty"`
	CreatedAt    time.Time                     `json:"created_at"`
}

// Session is one conversation transcript.
type Session struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	HITLEnabled bool      `json:"hitl_enabled"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	Messages    []Message `json:"messages"`
}

// Summary is the listing view of a session.
type Summary struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int       `json:"message_count"`
}

// Store loads and saves session transcripts.
type Store interface {
	// Save upserts the session and replaces its messages.
	Save(ctx context.Context, s *Session) error

	// Load returns the session with its full transcript, or ErrNotFound.
	Load(ctx context.Context, id string) (*Session, error)

	// List returns summaries of all sessions, most recently updated first.
	List(ctx context.Context) ([]Summary, error)

	// Delete removes a session and its messages. Deleting an unknown id
	// is not an error.
	Delete(ctx context.Context, id string) error
}
