// Package bus mirrors progress events onto NATS subjects so out-of-band
// observers (dashboards, audit pipelines) can follow turns without holding
// the HTTP stream. Publishing is best effort: a failed publish is logged and
// never affects the turn.
package bus

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/constellahq/constellation/engine"
)

// Publisher publishes turn progress to NATS. A nil *Publisher is valid and
// publishes nothing, so callers don't branch on whether NATS is configured.
type Publisher struct {
	nc     *nats.Conn
	prefix string
	logger *slog.Logger
}

// Connect dials the NATS server. An empty URL returns a nil publisher,
// disabling the mirror.
func Connect(url, subjectPrefix string, logger *slog.Logger) (*Publisher, error) {
	if url == "" {
		return nil, nil
	}
	if logger == nil {
		logger = slog.Default()
	}
	if subjectPrefix == "" {
		subjectPrefix = "constellation.turns"
	}

	nc, err := nats.Connect(url, nats.Name("constellation"))
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	logger.Info("connected to nats", "url", url, "prefix", subjectPrefix)
	return &Publisher{nc: nc, prefix: subjectPrefix, logger: logger}, nil
}

// PublishEvent mirrors one progress event for a turn.
func (p *Publisher) PublishEvent(turnID string, ev engine.Event) {
	if p == nil {
		return
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		p.logger.Warn("marshal event for nats", "turn", turnID, "error", err)
		return
	}
	subject := fmt.Sprintf("%s.%s.events", p.prefix, turnID)
	if err := p.nc.Publish(subject, payload); err != nil {
		p.logger.Warn("publish event to nats", "subject", subject, "error", err)
	}
}

// Close drains and closes the connection.
func (p *Publisher) Close() {
	if p == nil {
		return
	}
	if err := p.nc.Drain(); err != nil {
		p.logger.Warn("drain nats connection", "error", err)
	}
}
