package wake

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

type scripted struct {
	texts []string
	err   error
}

func (s *scripted) Listen(context.Context) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	if len(s.texts) == 0 {
		return "", nil
	}
	t := s.texts[0]
	s.texts = s.texts[1:]
	return t, nil
}

func TestIsWakeWord(t *testing.T) {
	tr := New(nil, Options{})

	yes := []string{
		"jarvis",
		"Jarvis!",
		"hey, JARVIS, what's up",
		"ok jarvis.",
		"Hey Jarvis",
	}
	no := []string{
		"jarviston",
		"hey jarvisy",
		"ajarvis",
		"",
		"hello there",
	}

	for _, s := range yes {
		assert.True(t, tr.IsWakeWord(s), s)
	}
	for _, s := range no {
		assert.False(t, tr.IsWakeWord(s), s)
	}
}

func TestIsSleepCommandDisjoint(t *testing.T) {
	tr := New(nil, Options{})

	assert.True(t, tr.IsSleepCommand("Go to sleep, please."))
	assert.True(t, tr.IsSleepCommand("enter standby mode"))
	assert.False(t, tr.IsSleepCommand("jarvis"))
	assert.False(t, tr.IsWakeWord("go to sleep"))
}

func TestCustomPhrases(t *testing.T) {
	tr := New(nil, Options{WakePhrases: []string{"  Friday "}, SleepPhrases: []string{"nap time"}})

	assert.True(t, tr.IsWakeWord("hey friday"))
	assert.False(t, tr.IsWakeWord("jarvis"))
	assert.True(t, tr.IsSleepCommand("it's nap time"))
}

func TestDetect(t *testing.T) {
	l := &scripted{texts: []string{"what a day", "hey jarvis"}}
	tr := New(l, Options{})

	assert.False(t, tr.Detect(context.Background()))
	assert.True(t, tr.Detect(context.Background()))
	assert.False(t, tr.Detect(context.Background()))
}

func TestDetectSwallowsErrors(t *testing.T) {
	tr := New(&scripted{err: errors.New("mic unplugged")}, Options{})

	heard, woke := tr.Poll(context.Background())
	assert.False(t, woke)
	assert.Empty(t, heard)
}
