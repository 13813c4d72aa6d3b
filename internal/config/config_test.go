package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gochat/internal/openai"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestDefaultValidates(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoadLayersOverDefaults(t *testing.T) {
	path := writeConfig(t, `
api_key: sk-from-file
chat:
  model: gpt-4
  temperature: 0.3
transcript:
  label_user: ME
  label_assistant: BOT
  tokens_max: 2048
  tokens_balance: 0.4
server:
  port: 9100
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "sk-from-file", cfg.APIKey)
	assert.Equal(t, 0.3, cfg.Chat.Temperature)
	assert.Equal(t, "ME", cfg.Transcript.LabelUser)
	assert.Equal(t, 9100, cfg.Server.Port)
	// Untouched keys keep their defaults.
	assert.False(t, cfg.Chat.NoStream)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	cases := map[string]string{
		"bad port":      "server:\n  port: -1\n",
		"empty model":   "chat:\n  model: \" \"\n",
		"zero tokens":   "transcript:\n  tokens_max: 0\n",
		"balance > 1":   "transcript:\n  tokens_balance: 1.5\n",
		"empty label":   "transcript:\n  label_assistant: \"\"\n",
		"not valid yml": "chat: [\n",
	}
	for name, content := range cases {
		_, err := Load(writeConfig(t, content))
		assert.Error(t, err, name)
	}
}

func TestLoadMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestBearerTokenPrefersEnvironment(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-from-env")

	cfg := Default()
	cfg.APIKey = "sk-from-file"

	token, err := cfg.BearerToken()
	require.NoError(t, err)
	assert.Equal(t, "sk-from-env", token)
}

func TestBearerTokenFallsBackToConfig(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	cfg := Default()
	cfg.APIKey = "sk-from-file"

	token, err := cfg.BearerToken()
	require.NoError(t, err)
	assert.Equal(t, "sk-from-file", token)
}

func TestBearerTokenAbsentEverywhere(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	_, err := Default().BearerToken()
	assert.ErrorIs(t, err, openai.ErrUnauthorized)
}

func TestLabelsUseConfiguredTags(t *testing.T) {
	cfg := Default()
	cfg.Transcript.LabelUser = "ME"
	cfg.Transcript.LabelAssistant = "BOT"

	labels := cfg.Labels()
	assert.Equal(t, "ME", labels.User)
	assert.Equal(t, "BOT", labels.Assistant)
}
