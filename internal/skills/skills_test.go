package skills

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jarvis/internal/intent"
	"jarvis/internal/personality"
	"jarvis/internal/skill"
)

func TestDefaultsThroughRegistry(t *testing.T) {
	reg := skill.NewRegistry()
	m := &fakeMixer{level: 50}
	for _, s := range Defaults(Deps{
		Owner:       "Tony",
		Store:       openStore(t),
		Mixer:       m,
		Launcher:    &fakeLauncher{},
		Power:       &fakePower{},
		Personality: personality.New("normal"),
		Names:       reg.Names,
	}) {
		reg.Register(s)
	}

	resolver := intent.NewKeywordResolver(nil)
	ctx := context.Background()
	say := func(text string) (string, bool) {
		return reg.Dispatch(ctx, resolver.Resolve(ctx, text, ""), text)
	}

	got, handled := say("what time is it")
	require.True(t, handled)
	assert.Contains(t, got, "It's ")

	got, handled = say("set volume to 150")
	require.True(t, handled)
	assert.Equal(t, "Volume must be between 0 and 100.", got)
	assert.Equal(t, 50, m.level)

	got, _ = say("turn the volume up by 10")
	assert.Equal(t, "Volume increased to 60%.", got)
	assert.Equal(t, 60, m.level)

	got, _ = say("remember that my city is paris")
	assert.Equal(t, "Got it. I'll remember that your city is paris.", got)
	got, _ = say("what is my city?")
	assert.Equal(t, "Your city is paris.", got)

	got, _ = say("what's john's phone number")
	assert.Equal(t, "I don't have contact details for john.", got)

	got, _ = say("what can you do")
	assert.Contains(t, got, "clock")
	assert.NotContains(t, got, "weather")

	_, handled = say("explain quantum physics")
	assert.False(t, handled)

	names := map[string]bool{}
	for _, tool := range reg.Tools() {
		names[tool.Name] = true
	}
	for _, want := range []string{"get_current_time", "set_volume", "open_app", "add_note", "set_reminder", "control_device", "remember_preference", "lookup_contact"} {
		assert.True(t, names[want], want)
	}
	assert.False(t, names["get_weather"])
}
