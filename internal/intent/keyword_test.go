package intent

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeywordResolverScenarios(t *testing.T) {
	r := NewKeywordResolver(nil)
	ctx := context.Background()

	cases := []struct {
		text   string
		tag    Tag
		params Params
	}{
		{"what time is it", Time, Params{}},
		{"hello there", Greeting, Params{}},
		{"tell a joke", Joke, Params{}},
		{"what's the weather in new york?", Weather, Params{"location": "new york"}},
		{"open chrome please", OpenApp, Params{"app": "chrome"}},
		{"launch blender", OpenApp, Params{"app": "blender"}},
		{"set volume to 150", Volume, Params{"action": "set", "level": 150}},
		{"unmute the volume", Volume, Params{"action": "unmute"}},
		{"mute", Volume, Params{"action": "mute"}},
		{"increase volume by 10", Volume, Params{"action": "increase", "step": 10}},
		{"decrease the volume to 20", Volume, Params{"action": "set", "level": 20}},
		{"volume 40", Volume, Params{"action": "set", "level": 40}},
		{"turn the volume up by 10", Volume, Params{"action": "increase", "step": 10}},
		{"volume down 20", Volume, Params{"action": "decrease", "step": 20}},
		{"turn the volume down", Volume, Params{"action": "decrease"}},
		{"turn up the volume", Volume, Params{"action": "increase"}},
		{"turn the volume up to 70", Volume, Params{"action": "set", "level": 70}},
		{"what's john's phone number", Contact, Params{"name": "john"}},
		{"what is john doe's email address", Contact, Params{"name": "john doe"}},
		{"phone number for chiara?", Contact, Params{"name": "chiara"}},
		{"how do i reach the plumber", Contact, Params{"name": "the plumber"}},
		{"reboot the computer", Restart, Params{}},
		{"goodbye", Exit, Params{}},
		{"remember that my favorite color is blue", Learn, Params{"key": "favorite color", "value": "blue"}},
		{"what is my favorite color?", Recall, Params{"key": "favorite color"}},
		{"take a note: buy milk", Note, Params{"action": "add", "content": "buy milk"}},
		{"read my notes", Note, Params{"action": "list"}},
		{"remember my goal: learn go", Goal, Params{"action": "add", "text": "learn go"}},
		{"what are my goals", Goal, Params{"action": "list"}},
		{"mark goal 2 as done", Goal, Params{"action": "done", "id": 2}},
		{"remind me to call mom in 5 minutes", Reminder, Params{"task": "call mom", "seconds": 300}},
		{"turn on the lamp", SmartHome, Params{"device": "lamp", "state": "on"}},
		{"switch to boss mode", Personality, Params{"mode": "boss"}},
		{"what can you do", Help, Params{}},
		{"run a system check", Diagnostics, Params{}},
		{"explain quantum physics", AIResponse, Params{}},
	}

	for _, tc := range cases {
		t.Run(tc.text, func(t *testing.T) {
			got := r.Resolve(ctx, tc.text, "")
			assert.Equal(t, tc.tag, got.Tag)
			assert.Equal(t, KeywordConfidence, got.Confidence)
			assert.Equal(t, tc.params, got.Params)
		})
	}
}

func TestKeywordResolverNoMatch(t *testing.T) {
	got := NewKeywordResolver(nil).Resolve(context.Background(), "purple elephants", "")

	assert.Equal(t, AIResponse, got.Tag)
	assert.Equal(t, FallbackConfidence, got.Confidence)
	assert.Empty(t, got.Params)
}

func TestKeywordResolverFirstMatchWins(t *testing.T) {
	r := NewKeywordResolver([]Rule{
		{Joke, []string{"laugh"}},
		{Greeting, []string{"hello"}},
	})

	got := r.Resolve(context.Background(), "hello, make me laugh", "")
	assert.Equal(t, Joke, got.Tag)

	got = r.Resolve(context.Background(), "HELLO", "")
	assert.Equal(t, Greeting, got.Tag)
}

// Every keyword of every rule resolves to its own tag unless an earlier rule
// also matches.
func TestKeywordTableProperty(t *testing.T) {
	r := NewKeywordResolver(nil)

	for i, rule := range DefaultRules {
		for _, kw := range rule.Keywords {
			earlier := false
			for _, prev := range DefaultRules[:i] {
				for _, pk := range prev.Keywords {
					if strings.Contains(kw, pk) {
						earlier = true
					}
				}
			}
			if earlier {
				continue
			}
			got := r.Resolve(context.Background(), kw, "")
			assert.Equal(t, rule.Tag, got.Tag, kw)
			assert.Equal(t, KeywordConfidence, got.Confidence, kw)
		}
	}
}

func TestParamsInt(t *testing.T) {
	p := Params{"a": 3, "b": 4.0, "c": " 5 ", "d": "x", "e": true}

	n, ok := p.Int("a")
	assert.True(t, ok)
	assert.Equal(t, 3, n)
	n, ok = p.Int("b")
	assert.True(t, ok)
	assert.Equal(t, 4, n)
	n, ok = p.Int("c")
	assert.True(t, ok)
	assert.Equal(t, 5, n)
	_, ok = p.Int("d")
	assert.False(t, ok)
	_, ok = p.Int("e")
	assert.False(t, ok)
	_, ok = p.Int("missing")
	assert.False(t, ok)
}
