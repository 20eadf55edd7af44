package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "sk-test", cfg.LLM.APIKey)
	assert.Equal(t, 3, cfg.LLM.Attempts)
	assert.Equal(t, 10, cfg.Memory.WindowSize)
	assert.Equal(t, 2000, cfg.Memory.ContextBudget)
	assert.Equal(t, 2*time.Second, cfg.Audio.WakeWindow)
	assert.Equal(t, []string{"jarvis", "hey jarvis"}, cfg.Wake.Phrases)
	assert.Equal(t, []string{"go to sleep", "stop listening", "standby mode"}, cfg.Wake.SleepPhrases)
	assert.True(t, cfg.Power.DryRun)
	assert.NoError(t, cfg.Validate())
}

func TestLoadFileThenEnv(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	path := filepath.Join(t.TempDir(), "jarvis.yaml")
	yml := `
llm:
  api_key: from-file
  model: gpt-test
memory:
  window_size: 5
wake:
  phrases: [friday]
assistant:
  recover_delay: 250ms
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o644))
	t.Setenv("JARVIS_MEMORY__WINDOW_SIZE", "20")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "from-file", cfg.LLM.APIKey)
	assert.Equal(t, "gpt-test", cfg.LLM.Model)
	assert.Equal(t, 20, cfg.Memory.WindowSize)
	assert.Equal(t, []string{"friday"}, cfg.Wake.Phrases)
	assert.Equal(t, 250*time.Millisecond, cfg.Assistant.RecoverDelay)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidateMissingKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.ErrorIs(t, cfg.Validate(), ErrNoAPIKey)
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "memory.window_size", envKey("JARVIS_MEMORY__WINDOW_SIZE"))
	assert.Equal(t, "llm.api_key", envKey("JARVIS_LLM__API_KEY"))
}

func TestEnvPhraseList(t *testing.T) {
	t.Setenv("JARVIS_WAKE__SLEEP_PHRASES", "nap time, lights out")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, []string{"nap time", "lights out"}, cfg.Wake.SleepPhrases)
}
