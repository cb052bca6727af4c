// Package config captures the adapter construction parameters forwarded to
// the agent. A Config is parsed once from the caller-supplied map (or a YAML
// file) and never mutated afterwards.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Default bounded waits for executor-driven operations.
const (
	DefaultSetupTimeout  = 60 * time.Second
	DefaultAnswerTimeout = 300 * time.Second
)

// Config holds the construction-time parameters of an agent.
type Config struct {
	// Provider selects the model backend ("anthropic", "openai" or "mock").
	Provider string `yaml:"llm_provider" json:"llm_provider"`
	// Model is the provider-specific model identifier.
	Model string `yaml:"llm_model" json:"llm_model"`
	// MCPURL is the endpoint of the MCP data server.
	MCPURL string `yaml:"mcp_url" json:"mcp_url"`
	// SessionID scopes the agent's conversation checkpoint.
	SessionID string `yaml:"session_id" json:"session_id"`

	AnthropicAPIKey string `yaml:"anthropic_api_key" json:"anthropic_api_key,omitempty"`
	OpenAIAPIKey    string `yaml:"openai_api_key" json:"openai_api_key,omitempty"`

	VertexProjectID string `yaml:"vertex_project_id" json:"vertex_project_id,omitempty"`
	VertexLocation  string `yaml:"vertex_location" json:"vertex_location,omitempty"`

	// SetupTimeout bounds the wait for agent construction plus setup.
	SetupTimeout time.Duration `yaml:"setup_timeout" json:"setup_timeout"`
	// AnswerTimeout bounds the wait for one question-processing call.
	AnswerTimeout time.Duration `yaml:"answer_timeout" json:"answer_timeout"`
}

// FromMap parses a Config from the raw construction map. Unknown keys are
// ignored; missing keys keep their zero value so callers can apply their own
// defaulting.
func FromMap(raw map[string]any) Config {
	cfg := Config{
		SessionID:     "default",
		SetupTimeout:  DefaultSetupTimeout,
		AnswerTimeout: DefaultAnswerTimeout,
	}
	cfg.Provider = stringKey(raw, "llm_provider")
	cfg.Model = stringKey(raw, "llm_model")
	cfg.MCPURL = stringKey(raw, "mcp_url")
	if v := stringKey(raw, "session_id"); v != "" {
		cfg.SessionID = v
	}
	cfg.AnthropicAPIKey = stringKey(raw, "anthropic_api_key")
	cfg.OpenAIAPIKey = stringKey(raw, "openai_api_key")
	cfg.VertexProjectID = stringKey(raw, "vertex_project_id")
	cfg.VertexLocation = stringKey(raw, "vertex_location")
	if d, ok := durationKey(raw, "setup_timeout"); ok {
		cfg.SetupTimeout = d
	}
	if d, ok := durationKey(raw, "answer_timeout"); ok {
		cfg.AnswerTimeout = d
	}
	return cfg
}

// Load reads a Config from a YAML file, applying the same defaults as FromMap.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Config{
		SessionID:     "default",
		SetupTimeout:  DefaultSetupTimeout,
		AnswerTimeout: DefaultAnswerTimeout,
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config file: %w", err)
	}
	if cfg.SessionID == "" {
		cfg.SessionID = "default"
	}
	if cfg.SetupTimeout <= 0 {
		cfg.SetupTimeout = DefaultSetupTimeout
	}
	if cfg.AnswerTimeout <= 0 {
		cfg.AnswerTimeout = DefaultAnswerTimeout
	}
	return cfg, nil
}

func stringKey(raw map[string]any, key string) string {
	if v, ok := raw[key].(string); ok {
		return v
	}
	return ""
}

func durationKey(raw map[string]any, key string) (time.Duration, bool) {
	switch v := raw[key].(type) {
	case time.Duration:
		return v, true
	case int:
		return time.Duration(v) * time.Second, true
	case float64:
		return time.Duration(v * float64(time.Second)), true
	case string:
		if d, err := time.ParseDuration(v); err == nil {
			return d, true
		}
	}
	return 0, false
}
