package model

import (
	"sync"
	"time"
)

// Registry maps capabilities to preferred models with fallback chains and
// tracks endpoint health for circuit breaking.
type Registry struct {
	mu           sync.RWMutex
	capabilities map[Capability]*CapabilityConfig
	endpoints    map[string]*EndpointConfig
	health       map[string]*endpointHealth
	healthCfg    HealthConfig
}

// CapabilityConfig defines model preferences for one capability.
type CapabilityConfig struct {
	// Description explains what the capability is for.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Preferred lists models in order of preference.
	Preferred []string `json:"preferred" yaml:"preferred"`

	// Fallback lists backup models tried after all preferred models fail.
	Fallback []string `json:"fallback,omitempty" yaml:"fallback,omitempty"`
}

// EndpointConfig describes one model endpoint.
type EndpointConfig struct {
	// Provider is the API dialect (anthropic, openai, ollama).
	Provider string `json:"provider" yaml:"provider"`

	// URL is the base API URL; empty uses the provider default.
	URL string `json:"url,omitempty" yaml:"url,omitempty"`

	// Model is the model identifier sent to the provider.
	Model string `json:"model" yaml:"model"`

	// MaxTokens is the context window size, when known.
	MaxTokens int `json:"max_tokens,omitempty" yaml:"max_tokens,omitempty"`
}

// HealthConfig controls circuit-breaker behavior for endpoints.
type HealthConfig struct {
	// FailureThreshold is the consecutive-failure count that opens the circuit.
	FailureThreshold int

	// RecoveryTimeout is how long an open circuit blocks an endpoint before
	// it may be tried again.
	RecoveryTimeout time.Duration
}

// DefaultHealthConfig returns circuit-breaker defaults.
func DefaultHealthConfig() HealthConfig {
	return HealthConfig{
		FailureThreshold: 3,
		RecoveryTimeout:  30 * time.Second,
	}
}

type endpointHealth struct {
	failures  int
	openUntil time.Time
}

// NewRegistry creates a registry from capability and endpoint maps.
func NewRegistry(caps map[Capability]*CapabilityConfig, endpoints map[string]*EndpointConfig) *Registry {
	return &Registry{
		capabilities: caps,
		endpoints:    endpoints,
		health:       make(map[string]*endpointHealth),
		healthCfg:    DefaultHealthConfig(),
	}
}

// NewDefaultRegistry returns a registry with sensible local-first defaults:
// an Ollama endpoint for every capability, with Anthropic as fallback when
// an API key is configured at the provider level.
func NewDefaultRegistry() *Registry {
	caps := map[Capability]*CapabilityConfig{
		CapabilityDrafting: {
			Description: "Initial nurse answer generation",
			Preferred:   []string{"claude-sonnet"},
			Fallback:    []string{"local"},
		},
		CapabilityAuditing: {
			Description: "Draft review and verdicts",
			Preferred:   []string{"claude-haiku"},
			Fallback:    []string{"local"},
		},
		CapabilityCorrecting: {
			Description: "Rewriting flagged drafts",
			Preferred:   []string{"claude-sonnet"},
			Fallback:    []string{"local"},
		},
		CapabilityFast: {
			Description: "Quick auxiliary tasks",
			Preferred:   []string{"claude-haiku"},
			Fallback:    []string{"local"},
		},
	}
	endpoints := map[string]*EndpointConfig{
		"claude-sonnet": {Provider: "anthropic", Model: "claude-sonnet-4-20250514", MaxTokens: 200000},
		"claude-haiku":  {Provider: "anthropic", Model: "claude-haiku-3-5-20241022", MaxTokens: 200000},
		"local":         {Provider: "ollama", URL: "http://localhost:11434/v1", Model: "llama3.2", MaxTokens: 128000},
	}
	return NewRegistry(caps, endpoints)
}

// Endpoint returns the endpoint config for a model name, or nil.
func (r *Registry) Endpoint(name string) *EndpointConfig {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.endpoints[name]
}

// Chain returns the full preference chain (preferred then fallback) for a
// capability, ignoring health.
func (r *Registry) Chain(c Capability) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cfg, ok := r.capabilities[c]
	if !ok {
		return nil
	}
	chain := make([]string, 0, len(cfg.Preferred)+len(cfg.Fallback))
	chain = append(chain, cfg.Preferred...)
	chain = append(chain, cfg.Fallback...)
	return chain
}

// AvailableChain returns the preference chain filtered to endpoints whose
// circuit is closed. If every endpoint's circuit is open, the unfiltered
// chain is returned so callers still attempt a request rather than failing
// without trying.
func (r *Registry) AvailableChain(c Capability) []string {
	chain := r.Chain(c)

	r.mu.RLock()
	defer r.mu.RUnlock()

	now := time.Now()
	available := make([]string, 0, len(chain))
	for _, name := range chain {
		if h, ok := r.health[name]; ok && now.Before(h.openUntil) {
			continue
		}
		available = append(available, name)
	}
	if len(available) == 0 {
		return chain
	}
	return available
}

// MarkSuccess records a successful request, closing the endpoint's circuit.
func (r *Registry) MarkSuccess(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.health, name)
}

// MarkFailure records a failed request; consecutive failures past the
// threshold open the circuit for the recovery timeout.
func (r *Registry) MarkFailure(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	h, ok := r.health[name]
	if !ok {
		h = &endpointHealth{}
		r.health[name] = h
	}
	h.failures++
	if h.failures >= r.healthCfg.FailureThreshold {
		h.openUntil = time.Now().Add(r.healthCfg.RecoveryTimeout)
		h.failures = 0
	}
}
