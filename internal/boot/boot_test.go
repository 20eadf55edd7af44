package boot

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jarvis/internal/assistant"
	"jarvis/internal/config"
)

const completion = `{
  "id": "chatcmpl-1", "object": "chat.completion", "created": 1, "model": "test",
  "choices": [{"index": 0, "finish_reason": "stop",
    "message": {"role": "assistant", "content": "Gravity pulls things together."}}]
}`

func testConfig(t *testing.T) *config.Config {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, completion)
	}))
	t.Cleanup(srv.Close)

	cfg, err := config.Load("")
	require.NoError(t, err)

	dir := t.TempDir()
	cfg.LLM.APIKey = "sk-test"
	cfg.LLM.BaseURL = srv.URL + "/v1"
	cfg.Memory.DBPath = filepath.Join(dir, "jarvis.db")
	cfg.Memory.LegacyPath = filepath.Join(dir, "memory.json")
	cfg.Memory.RedisURL = ""
	cfg.Home.URL = ""
	cfg.Assistant.Personality = "normal"
	return cfg
}

func TestBuildAndRespond(t *testing.T) {
	cfg := testConfig(t)

	core, err := Build(context.Background(), cfg, Options{HTTPClient: http.DefaultClient})
	require.NoError(t, err)
	t.Cleanup(core.Close)

	names := core.Registry.Names()
	assert.Contains(t, names, "weather")
	assert.Contains(t, names, "reminders")
	assert.Contains(t, names, "diagnostics")

	a, err := core.Assistant(assistant.Options{})
	require.NoError(t, err)

	ctx := context.Background()
	reply, _ := a.Respond(ctx, "remember that my city is paris")
	assert.Equal(t, "Got it. I'll remember that your city is paris.", reply)

	reply, _ = a.Respond(ctx, "what is my city")
	assert.Equal(t, "Your city is paris.", reply)

	reply, _ = a.Respond(ctx, "explain gravity")
	assert.Equal(t, "Gravity pulls things together.", reply)

	last, err := core.Store.FetchLast(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, last, 3)
}

func TestBuildWarmsContext(t *testing.T) {
	cfg := testConfig(t)
	ctx := context.Background()

	core, err := Build(ctx, cfg, Options{HTTPClient: http.DefaultClient})
	require.NoError(t, err)
	a, err := core.Assistant(assistant.Options{})
	require.NoError(t, err)
	a.Respond(ctx, "explain gravity")
	core.Close()

	again, err := Build(ctx, cfg, Options{HTTPClient: http.DefaultClient})
	require.NoError(t, err)
	t.Cleanup(again.Close)

	assert.Contains(t, again.Memory.Context(ctx), "User: explain gravity")
}

func TestBuildFailsWithoutStore(t *testing.T) {
	cfg := testConfig(t)
	cfg.Memory.DBPath = ""

	_, err := Build(context.Background(), cfg, Options{HTTPClient: http.DefaultClient})
	assert.Error(t, err)
}
