// Package config provides configuration loading and management for
// Constellation.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/constellahq/constellation/model"
)

// Config is the complete Constellation configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Model     ModelConfig     `yaml:"model"`
	Auditors  AuditorsConfig  `yaml:"auditors"`
	Session   SessionConfig   `yaml:"session"`
	Knowledge KnowledgeConfig `yaml:"knowledge"`
	NATS      NATSConfig      `yaml:"nats"`
	HITL      HITLConfig      `yaml:"hitl"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	// Addr is the listen address.
	Addr string `yaml:"addr"`
	// AllowOrigin is the CORS origin allowed to call the API
	// (the web frontend); empty disables the CORS headers.
	AllowOrigin string `yaml:"allow_origin"`
}

// ModelConfig configures model selection.
type ModelConfig struct {
	// Capabilities maps capability names to model preference chains.
	Capabilities map[string]*model.CapabilityConfig `yaml:"capabilities"`
	// Endpoints maps model names to provider endpoints.
	Endpoints map[string]*model.EndpointConfig `yaml:"endpoints"`
}

// AuditorsConfig tunes auditor execution.
type AuditorsConfig struct {
	// Timeout bounds each individual auditor invocation.
	Timeout time.Duration `yaml:"timeout"`
	// ExtraKeywords adds activation keywords per non-mandatory auditor id.
	ExtraKeywords map[string][]string `yaml:"extra_keywords"`
}

// SessionConfig configures transcript persistence.
type SessionConfig struct {
	// Path is the SQLite database file for session transcripts.
	Path string `yaml:"path"`
}

// KnowledgeConfig configures the reference-knowledge store.
type KnowledgeConfig struct {
	// Enabled switches retrieval on for the drafting call.
	Enabled bool `yaml:"enabled"`
	// Dir is the directory of reference documents (empty = none).
	Dir string `yaml:"dir"`
	// Patterns are doublestar globs selecting documents under Dir.
	Patterns []string `yaml:"patterns"`
	// Watch reloads documents when files under Dir change.
	Watch bool `yaml:"watch"`
}

// NATSConfig configures the optional progress-event mirror.
type NATSConfig struct {
	// URL is the NATS server URL; empty disables the mirror.
	URL string `yaml:"url"`
	// SubjectPrefix prefixes per-turn event subjects.
	SubjectPrefix string `yaml:"subject_prefix"`
}

// HITLConfig configures the terminal client's approval gate.
type HITLConfig struct {
	// Enabled arms the gate by default; the chat command flag overrides it.
	Enabled bool `yaml:"enabled"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:        ":8080",
			AllowOrigin: "http://localhost:3000",
		},
		Auditors: AuditorsConfig{
			Timeout: 60 * time.Second,
		},
		Session: SessionConfig{
			Path: defaultSessionPath(),
		},
		Knowledge: KnowledgeConfig{
			Patterns: []string{"**/*.md", "**/*.txt"},
		},
		NATS: NATSConfig{
			SubjectPrefix: "constellation.turns",
		},
	}
}

func defaultSessionPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "constellation.db"
	}
	return filepath.Join(home, ".constellation", "sessions.db")
}

// Validate checks the configuration.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("server.addr is required")
	}
	if c.Auditors.Timeout <= 0 {
		return fmt.Errorf("auditors.timeout must be positive")
	}
	for name, ep := range c.Model.Endpoints {
		if ep == nil || ep.Provider == "" || ep.Model == "" {
			return fmt.Errorf("model.endpoints.%s: provider and model are required", name)
		}
	}
	return nil
}

// Registry builds the model registry from the configuration, falling back to
// the built-in defaults when no model section is configured.
func (c *Config) Registry() *model.Registry {
	if len(c.Model.Endpoints) == 0 {
		return model.NewDefaultRegistry()
	}
	caps := make(map[model.Capability]*model.CapabilityConfig, len(c.Model.Capabilities))
	for name, cfg := range c.Model.Capabilities {
		capability := model.ParseCapability(name)
		if capability == "" {
			capability = model.Capability(name)
		}
		caps[capability] = cfg
	}
	return model.NewRegistry(caps, c.Model.Endpoints)
}

// LoadFromFile loads configuration from a YAML file, layered over defaults.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	config := DefaultConfig()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}
	return config, nil
}

// Load loads the config file at path when given, otherwise looks for
// constellation.yaml in the working directory, otherwise returns defaults.
// Environment variables override the listen address and NATS URL.
func Load(path string) (*Config, error) {
	var cfg *Config
	var err error

	switch {
	case path != "":
		cfg, err = LoadFromFile(path)
		if err != nil {
			return nil, err
		}
	default:
		cfg, err = LoadFromFile("constellation.yaml")
		if err != nil {
			if !os.IsNotExist(underlying(err)) {
				return nil, err
			}
			cfg = DefaultConfig()
		}
	}

	if addr := os.Getenv("CONSTELLATION_ADDR"); addr != "" {
		cfg.Server.Addr = addr
	}
	if natsURL := os.Getenv("CONSTELLATION_NATS_URL"); natsURL != "" {
		cfg.NATS.URL = natsURL
	}
	if origin := os.Getenv("FRONTEND_URL"); origin != "" {
		cfg.Server.AllowOrigin = origin
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// underlying unwraps the read error to reach os.IsNotExist.
func underlying(err error) error {
	type unwrapper interface{ Unwrap() error }
	for {
		u, ok := err.(unwrapper)
		if !ok {
			return err
		}
		next := u.Unwrap()
		if next == nil {
			return err
		}
		err = next
	}
}
