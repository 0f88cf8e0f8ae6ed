// Package config loads spec-context's layered configuration: TOML file
// defaults overlaid by environment variables, which always win.
package config

import (
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
)

// Config holds all configuration for the spec-context server.
// Precedence: environment variables > config file > defaults.
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Transport TransportConfig `toml:"transport"`
	Log       LogConfig       `toml:"log"`
	Chat      ChatConfig      `toml:"chat"`
	ToolShell ToolShellConfig `toml:"tool_shell"`
	Workflow  WorkflowConfig  `toml:"workflow"`
}

// ServerConfig holds MCP server metadata.
type ServerConfig struct {
	Name    string `toml:"name"`
	Version string `toml:"version"`
}

// TransportConfig holds transport-related settings.
type TransportConfig struct {
	// Mode names the transport: "stdio" (default) or "http". Validate
	// accepts both, but the server is served over stdio in either case;
	// there is no HTTP listener.
	Mode string `toml:"mode"`
	// Port is an HTTP listen port. No transport reads it.
	Port string `toml:"port"`
	// Host is an HTTP listen address. No transport reads it.
	Host string `toml:"host"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level string `toml:"level"` // debug, info, warn, error
}

// ChatConfig holds LLM provider credentials and defaults for internal/chat.
type ChatConfig struct {
	AnthropicAPIKey string `toml:"anthropic_api_key"`
	AnthropicModel  string `toml:"anthropic_model"`
	AnthropicBaseURL string `toml:"anthropic_base_url"`
	OpenAIAPIKey    string `toml:"openai_api_key"`
	OpenAIModel     string `toml:"openai_model"`
	OpenAIBaseURL   string `toml:"openai_base_url"`
	RedisEventsURL  string `toml:"redis_events_url"` // empty disables the cross-process event sink
}

// ToolShellConfig controls offload threshold/TTL for internal/toolshell.
type ToolShellConfig struct {
	OffloadThresholdChars int `toml:"offload_threshold_chars"`
	OffloadTTLMinutes     int `toml:"offload_ttl_minutes"`
}

// WorkflowConfig holds the per-project and global persisted-state roots.
type WorkflowConfig struct {
	Home         string `toml:"home"`          // override: SPEC_WORKFLOW_HOME
	DashboardURL string `toml:"dashboard_url"` // wait-for-approval long-poll target
}

// Load creates a Config by reading from a TOML config file and environment
// variables. Precedence: environment variables > config file > defaults.
//
// Config file search order (first found wins):
//  1. Path passed via configPath parameter (from --config flag)
//  2. SPEC_CONTEXT_CONFIG environment variable
//  3. ./spec-context.toml (current directory)
//  4. ~/.config/spec-context/config.toml (XDG-style)
//
// All fields are optional in the config file. Environment variables always
// override file values.
func Load(configPath string) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Name:    "spec-context",
			Version: "0.1.0",
		},
		Transport: TransportConfig{
			Mode: "stdio",
			Port: "8765",
			Host: "0.0.0.0",
		},
		Log: LogConfig{
			Level: "info",
		},
		Chat: ChatConfig{
			AnthropicModel: "claude-sonnet-4-5",
			OpenAIModel:    "gpt-4o",
		},
		ToolShell: ToolShellConfig{
			OffloadThresholdChars: 20000,
			OffloadTTLMinutes:     30,
		},
		Workflow: WorkflowConfig{},
	}

	if err := cfg.loadFile(configPath); err != nil {
		return nil, err
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) loadFile(configPath string) error {
	path := resolveConfigPath(configPath)
	if path == "" {
		return nil // no config file found; rely on defaults + env
	}

	if _, err := toml.DecodeFile(path, c); err != nil {
		return fmt.Errorf("reading config file %s: %w", path, err)
	}

	return nil
}

func resolveConfigPath(explicit string) string {
	if explicit != "" {
		return explicit
	}

	if p := os.Getenv("SPEC_CONTEXT_CONFIG"); p != "" {
		return p
	}

	if _, err := os.Stat("spec-context.toml"); err == nil {
		return "spec-context.toml"
	}

	if home, err := os.UserHomeDir(); err == nil {
		p := home + "/.config/spec-context/config.toml"
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}

	return ""
}

// applyEnv overlays environment variables on top of existing config values.
// An env var only takes effect if it is non-empty.
func (c *Config) applyEnv() {
	envOverride("SPEC_CONTEXT_TRANSPORT", &c.Transport.Mode)
	envOverride("SPEC_CONTEXT_PORT", &c.Transport.Port)
	envOverride("SPEC_CONTEXT_HOST", &c.Transport.Host)
	envOverride("SPEC_CONTEXT_LOG_LEVEL", &c.Log.Level)

	envOverride("SPEC_CONTEXT_ANTHROPIC_API_KEY", &c.Chat.AnthropicAPIKey)
	envOverride("SPEC_CONTEXT_ANTHROPIC_MODEL", &c.Chat.AnthropicModel)
	envOverride("SPEC_CONTEXT_ANTHROPIC_BASE_URL", &c.Chat.AnthropicBaseURL)
	envOverride("SPEC_CONTEXT_OPENAI_API_KEY", &c.Chat.OpenAIAPIKey)
	envOverride("SPEC_CONTEXT_OPENAI_MODEL", &c.Chat.OpenAIModel)
	envOverride("SPEC_CONTEXT_OPENAI_BASE_URL", &c.Chat.OpenAIBaseURL)
	envOverride("SPEC_CONTEXT_REDIS_EVENTS_URL", &c.Chat.RedisEventsURL)

	if v := os.Getenv("SPEC_CONTEXT_OFFLOAD_THRESHOLD_CHARS"); v != "" {
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil && n > 0 {
			c.ToolShell.OffloadThresholdChars = n
		}
	}
	if v := os.Getenv("SPEC_CONTEXT_OFFLOAD_TTL_MINUTES"); v != "" {
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil && n > 0 {
			c.ToolShell.OffloadTTLMinutes = n
		}
	}

	// SPEC_WORKFLOW_* retains the orchestrator-facing naming for the
	// persisted-state root, since existing orchestrator tooling already
	// expects this variable name.
	envOverride("SPEC_WORKFLOW_HOME", &c.Workflow.Home)
	envOverride("SPEC_WORKFLOW_DASHBOARD_URL", &c.Workflow.DashboardURL)
}

// Validate checks that required fields are present and internally consistent.
func (c *Config) Validate() error {
	switch c.Transport.Mode {
	case "stdio", "http":
	default:
		return fmt.Errorf("invalid transport mode: %q (must be \"stdio\" or \"http\")", c.Transport.Mode)
	}

	if c.Chat.AnthropicAPIKey == "" && c.Chat.OpenAIAPIKey == "" {
		return fmt.Errorf("at least one chat provider must be configured: set chat.anthropic_api_key or chat.openai_api_key (or the SPEC_CONTEXT_*_API_KEY env vars)")
	}

	return nil
}

// envOverride sets *dst to the value of the named env var, if it is non-empty.
func envOverride(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}
