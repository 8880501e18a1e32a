package server

import (
	"encoding/json"
	"net/http"

	"github.com/constellahq/constellation/engine"
	"github.com/constellahq/constellation/stream"
)

// chatRequest is the body of POST /chat and POST /chat/stream.
type chatRequest struct {
	Message string               `json:"message"`
	History []engine.ChatMessage `json:"history"`
}

func (s *Server) decodeChat(w http.ResponseWriter, r *http.Request) (engine.Request, bool) {
	var body chatRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return engine.Request{}, false
	}

	req := engine.Request{Message: body.Message, History: body.History}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return engine.Request{}, false
	}
	return req, true
}

// handleChat runs a full turn and returns the final snapshot as one JSON
// document, for clients that don't consume the event stream.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeChat(w, r)
	if !ok {
		return
	}

	result, err := s.coordinator.Run(r.Context(), req, nil)
	if err != nil {
		s.logger.Error("turn failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleChatStream runs a turn while streaming its progress events to the
// client. Events are also mirrored onto the bus when one is configured.
// Encode failures (client gone) are remembered but never stop the turn; the
// coordinator must still settle every in-flight auditor.
func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeChat(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	turnID := newTurnID()
	encoder := stream.NewEncoder(w)
	var encodeErr error
	emit := func(ev engine.Event) {
		s.publisher.PublishEvent(turnID, ev)
		if encodeErr != nil {
			return
		}
		if err := encoder.Encode(ev); err != nil {
			encodeErr = err
		}
	}

	if _, err := s.coordinator.Run(r.Context(), req, emit); err != nil {
		s.logger.Error("turn failed", "turn", turnID, "error", err)
		// The stream is already committed; surface the failure in-band.
		_ = encoder.Encode(engine.Event{Step: "error", Draft: err.Error()})
		return
	}
	if encodeErr != nil {
		s.logger.Warn("client dropped stream", "turn", turnID, "error", encodeErr)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleKnowledgeStatus reports whether retrieval is enabled and how many
// chunks are indexed.
func (s *Server) handleKnowledgeStatus(w http.ResponseWriter, r *http.Request) {
	if s.knowledge == nil {
		writeError(w, http.StatusNotFound, "knowledge base not configured")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"enabled": s.knowledge.Enabled(),
		"chunks":  s.knowledge.Len(),
	})
}

func (s *Server) handleKnowledgeToggle(w http.ResponseWriter, r *http.Request) {
	if s.knowledge == nil {
		writeError(w, http.StatusNotFound, "knowledge base not configured")
		return
	}
	var body struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	s.knowledge.SetEnabled(body.Enabled)
	writeJSON(w, http.StatusOK, map[string]any{"enabled": s.knowledge.Enabled()})
}

func (s *Server) handleKnowledgeIngest(w http.ResponseWriter, r *http.Request) {
	if s.knowledge == nil {
		writeError(w, http.StatusNotFound, "knowledge base not configured")
		return
	}
	var body struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.URL == "" {
		writeError(w, http.StatusBadRequest, "url is required")
		return
	}
	if err := s.knowledge.IngestURL(r.Context(), body.URL); err != nil {
		s.logger.Warn("knowledge ingest failed", "url", body.URL, "error", err)
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"chunks": s.knowledge.Len()})
}
