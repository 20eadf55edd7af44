package skills

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	"jarvis/internal/intent"
	"jarvis/internal/skill"
)

type Greeting struct {
	owner string
	now   func() time.Time
}

func NewGreeting(owner string) *Greeting {
	return &Greeting{owner: owner, now: time.Now}
}

func (*Greeting) Name() string { return "greeting" }

func (*Greeting) CanHandle(tag intent.Tag, _ intent.Params) bool { return tag == intent.Greeting }

func (g *Greeting) Handle(context.Context, intent.Tag, intent.Params) (string, error) {
	part := "evening"
	switch h := g.now().Hour(); {
	case h < 12:
		part = "morning"
	case h < 18:
		part = "afternoon"
	}

	if g.owner == "" {
		return fmt.Sprintf("Good %s! How can I assist you today?", part), nil
	}
	return fmt.Sprintf("Good %s, %s! How can I assist you today?", part, g.owner), nil
}

const clockLayout = "3:04 PM on Monday, January 2, 2006"

type Clock struct {
	now func() time.Time
}

func NewClock() *Clock { return &Clock{now: time.Now} }

func (*Clock) Name() string { return "clock" }

func (*Clock) CanHandle(tag intent.Tag, _ intent.Params) bool { return tag == intent.Time }

func (c *Clock) Handle(context.Context, intent.Tag, intent.Params) (string, error) {
	return "It's " + c.now().Format(clockLayout) + ".", nil
}

func (*Clock) Tools() []skill.ToolSpec {
	return []skill.ToolSpec{{
		Name:        "get_current_time",
		Description: "Get the current local date and time.",
		Parameters:  map[string]any{"type": "object", "properties": map[string]any{}},
		Tag:         intent.Time,
	}}
}

var jokes = []string{
	"Why don't scientists trust atoms? Because they make up everything!",
	"Why did the scarecrow win an award? He was outstanding in his field!",
	"Why don't eggs tell jokes? They'd crack each other up!",
	"What do you call a fake noodle? An impasta!",
}

type Jokes struct {
	pick func(n int) int
}

func NewJokes() *Jokes { return &Jokes{pick: rand.IntN} }

func (*Jokes) Name() string { return "jokes" }

func (*Jokes) CanHandle(tag intent.Tag, _ intent.Params) bool { return tag == intent.Joke }

func (j *Jokes) Handle(context.Context, intent.Tag, intent.Params) (string, error) {
	return jokes[j.pick(len(jokes))], nil
}
