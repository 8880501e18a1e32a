// Package engine implements the Constellation orchestration core: the stage
// coordinator that drives drafting, staged auditing, conditional correction,
// and finalization for one turn, emitting progress events at each transition.
package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/constellahq/constellation/auditor"
	"github.com/constellahq/constellation/llm"
	"github.com/constellahq/constellation/metrics"
	"github.com/constellahq/constellation/model"
)

const (
	// draftHistoryWindow is how many prior messages the drafting call sees.
	draftHistoryWindow = 6
	// correctionHistoryWindow is how many prior messages the correction call sees.
	correctionHistoryWindow = 4
)

// ContextRetriever supplies optional reference context for the drafting
// call. An empty return means no context is available (or retrieval is
// disabled) and the drafting prompt is used as-is.
type ContextRetriever interface {
	Context(query string) string
}

// Coordinator sequences a turn from draft to completion. Within an audit
// stage all auditors run concurrently; the coordinator waits for the whole
// stage before starting the next one. A coordinator is safe for concurrent
// use; each Run call owns its turn state.
type Coordinator struct {
	completer llm.Completer
	registry  *auditor.Registry
	retriever ContextRetriever
	logger    *slog.Logger

	auditTimeout time.Duration
	draftTemp    float64
	auditTemp    float64
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) { c.logger = logger }
}

// WithRetriever sets the reference-context retriever for drafting.
func WithRetriever(r ContextRetriever) Option {
	return func(c *Coordinator) { c.retriever = r }
}

// WithAuditTimeout bounds each individual auditor invocation.
func WithAuditTimeout(d time.Duration) Option {
	return func(c *Coordinator) { c.auditTimeout = d }
}

// New creates a Coordinator over an inference client and auditor registry.
func New(completer llm.Completer, registry *auditor.Registry, opts ...Option) *Coordinator {
	c := &Coordinator{
		completer:    completer,
		registry:     registry,
		logger:       slog.Default(),
		auditTimeout: 60 * time.Second,
		draftTemp:    0.7,
		auditTemp:    0.3, // lower temperature for consistent verdicts
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// auditorOutcome carries one auditor's result across the stage join.
type auditorOutcome struct {
	id     auditor.ID
	result auditor.Result
}

// Run processes one turn, emitting a started/complete event pair per logical
// step through emit (which may be nil for the non-streaming path). Exactly
// one terminal "complete" event is emitted on success, and none after it.
// A drafting or correction failure aborts the turn with an error and no
// "complete" event; individual auditor failures degrade to unsafe results
// and the turn still completes.
//
// Events are emitted from the calling goroutine only, in causal order.
func (c *Coordinator) Run(ctx context.Context, req Request, emit func(Event)) (*TurnResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	if emit == nil {
		emit = func(Event) {}
	}

	start := time.Now()
	result, err := c.run(ctx, req, emit)
	metrics.TurnDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.TurnsTotal.WithLabelValues("failed").Inc()
		return nil, err
	}
	metrics.TurnsTotal.WithLabelValues("ok").Inc()
	return result, nil
}

func (c *Coordinator) run(ctx context.Context, req Request, emit func(Event)) (*TurnResult, error) {
	// Step 1: drafting. A failure here aborts the turn; no partial draft
	// is ever surfaced.
	emit(Event{Step: StepDrafting, Status: StatusStarted})
	draft, err := c.draft(ctx, req)
	if err != nil {
		c.logger.Error("drafting failed", "error", err)
		return nil, fmt.Errorf("drafting failed: %w", err)
	}
	emit(Event{Step: StepDrafting, Status: StatusComplete, Draft: draft})

	// Step 2: activation selection. Mandatory auditors always run, so the
	// list is never empty.
	historyLines := make([]string, 0, len(req.History))
	for _, m := range req.History {
		historyLines = append(historyLines, m.Content)
	}
	active := c.registry.Select(req.Message, historyLines)
	emit(Event{Step: StepAuditing, Status: StatusStarted, ActiveAuditors: active})

	// Step 3: staged auditing. Each stage is a fan-out/join barrier: all of
	// its auditors launch together and the next stage must not start until
	// every one of them has settled.
	audits := make(map[auditor.ID]auditor.Result, len(active))
	for stageNum, stage := range c.registry.Stages(active) {
		stageStart := time.Now()

		for _, id := range stage {
			emit(Event{Step: id.CheckStep(), Status: StatusStarted, AuditorID: id})
		}

		outcomes := make(chan auditorOutcome, len(stage))
		for _, id := range stage {
			go func(id auditor.ID) {
				outcomes <- auditorOutcome{id: id, result: c.audit(ctx, id, draft, req.Message)}
			}(id)
		}

		// Join barrier: collect every outcome before moving on. Results
		// are emitted as they settle, so check events within a stage may
		// interleave, but never with a later stage's events.
		for range stage {
			out := <-outcomes
			audits[out.id] = out.result
			safe := out.result.Safe
			if !safe {
				metrics.UnsafeVerdicts.WithLabelValues(string(out.id)).Inc()
			}
			emit(Event{
				Step:      out.id.CheckStep(),
				Status:    StatusComplete,
				AuditorID: out.id,
				Result:    out.result,
				Safe:      &safe,
			})
		}

		metrics.StageDuration.WithLabelValues(strconv.Itoa(stageNum + 1)).
			Observe(time.Since(stageStart).Seconds())
	}

	// Step 4: conditional correction. Only an unsafe verdict triggers it;
	// when nothing is flagged, no correcting events are emitted at all and
	// the client infers "skipped".
	finalText := draft
	wasCorrected := false
	if anyUnsafe(audits) {
		emit(Event{Step: StepCorrecting, Status: StatusStarted})
		corrected, err := c.correct(ctx, req, draft, audits, active)
		if err != nil {
			// An aborted correction must not be mistaken for "no
			// correction needed": fail the turn instead of completing.
			c.logger.Error("correction failed", "error", err)
			return nil, fmt.Errorf("correction failed: %w", err)
		}
		finalText = corrected
		wasCorrected = true
		metrics.CorrectionsTotal.Inc()
		emit(Event{Step: StepCorrecting, Status: StatusComplete})
	}

	// Step 5: finalization and the single terminal complete event.
	emit(Event{Step: StepFinalizing, Status: StatusStarted})

	result := &TurnResult{
		Draft:          draft,
		Audits:         audits,
		ActiveAuditors: active,
		FinalResponse:  finalText,
		WasCorrected:   wasCorrected,
	}
	result.populateDeprecated()

	emit(Event{Step: StepComplete, Result: result})
	return result, nil
}

// draft invokes the drafting inference call with windowed history and any
// available reference context.
func (c *Coordinator) draft(ctx context.Context, req Request) (string, error) {
	system := auditor.NursePrompt
	if c.retriever != nil {
		if refs := c.retriever.Context(req.Message); refs != "" {
			system += "\n\nRelevant medical reference information:\n" + refs +
				"\n\nUse this reference information to provide more accurate advice when relevant."
		}
	}

	messages := []llm.Message{{Role: "system", Content: system}}
	for _, m := range historyWindow(req.History, draftHistoryWindow) {
		messages = append(messages, llm.Message{Role: m.Role, Content: m.Content})
	}
	messages = append(messages, llm.Message{Role: "user", Content: req.Message})

	temp := c.draftTemp
	resp, err := c.completer.Complete(ctx, llm.Request{
		Capability:  model.CapabilityDrafting.String(),
		Messages:    messages,
		Temperature: &temp,
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// audit invokes one auditor with a bounded timeout. It never returns an
// error: a failed audit is recorded as a degraded unsafe result so failures
// cannot silently pass as safe.
func (c *Coordinator) audit(ctx context.Context, id auditor.ID, draft, query string) auditor.Result {
	name := c.registry.DisplayName(id)

	auditCtx, cancel := context.WithTimeout(ctx, c.auditTimeout)
	defer cancel()

	temp := c.auditTemp
	resp, err := c.completer.Complete(auditCtx, llm.Request{
		Capability:  model.CapabilityAuditing.String(),
		Messages:    []llm.Message{{Role: "user", Content: auditor.Prompt(id, draft, query)}},
		Temperature: &temp,
	})
	if err != nil {
		c.logger.Warn("audit failed", "auditor", id, "error", err)
		metrics.AuditorFailures.WithLabelValues(string(id)).Inc()
		return auditor.FailureResult(name, err)
	}
	return auditor.ParseVerdict(resp.Content, name)
}

// correct invokes the correction inference call with the draft and the
// concatenated auditor feedback.
func (c *Coordinator) correct(ctx context.Context, req Request, draft string, audits map[auditor.ID]auditor.Result, order []auditor.ID) (string, error) {
	prompt := auditor.CorrectionPrompt(req.Message, draft, auditor.FormatFeedback(audits, order))
	if window := historyWindow(req.History, correctionHistoryWindow); len(window) > 0 {
		prompt = "Previous conversation:\n" + historyText(window) + "\n\n" + prompt
	}

	temp := c.draftTemp
	resp, err := c.completer.Complete(ctx, llm.Request{
		Capability: model.CapabilityCorrecting.String(),
		Messages: []llm.Message{
			{Role: "system", Content: auditor.NursePrompt},
			{Role: "user", Content: prompt},
		},
		Temperature: &temp,
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// anyUnsafe reports whether any auditor flagged the draft.
func anyUnsafe(audits map[auditor.ID]auditor.Result) bool {
	for _, res := range audits {
		if !res.Safe {
			return true
		}
	}
	return false
}
