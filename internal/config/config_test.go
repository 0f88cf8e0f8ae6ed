package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_DefaultsWithEnvAPIKey(t *testing.T) {
	t.Setenv("SPEC_CONTEXT_ANTHROPIC_API_KEY", "sk-test")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, "stdio", cfg.Transport.Mode)
	assert.Equal(t, "sk-test", cfg.Chat.AnthropicAPIKey)
	assert.Equal(t, 20000, cfg.ToolShell.OffloadThresholdChars)
}

func TestLoad_MissingProviderKeyFails(t *testing.T) {
	_, err := Load("")
	require.Error(t, err)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "spec-context.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
[chat]
anthropic_api_key = "from-file"

[transport]
mode = "http"
`), 0o644))

	t.Setenv("SPEC_CONTEXT_ANTHROPIC_API_KEY", "from-env")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "from-env", cfg.Chat.AnthropicAPIKey)
	assert.Equal(t, "http", cfg.Transport.Mode)
}

func TestLoad_InvalidTransportModeFails(t *testing.T) {
	t.Setenv("SPEC_CONTEXT_ANTHROPIC_API_KEY", "sk-test")
	t.Setenv("SPEC_CONTEXT_TRANSPORT", "carrier-pigeon")
	_, err := Load("")
	require.Error(t, err)
}
