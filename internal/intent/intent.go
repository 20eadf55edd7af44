// Package intent maps free-form command text to an intent tag and a
// parameter map.
package intent

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

type Tag string

const (
	Greeting    Tag = "greeting"
	Time        Tag = "time"
	Joke        Tag = "joke"
	Weather     Tag = "weather"
	OpenApp     Tag = "open_app"
	Volume      Tag = "volume"
	Shutdown    Tag = "shutdown"
	Restart     Tag = "restart"
	Exit        Tag = "exit"
	AIResponse  Tag = "ai_response"
	Learn       Tag = "learn_preference"
	Recall      Tag = "recall_preference"
	Note        Tag = "note"
	Goal        Tag = "goal"
	Reminder    Tag = "reminder"
	SmartHome   Tag = "smart_home"
	Personality Tag = "personality"
	Help        Tag = "help"
	Diagnostics Tag = "diagnostics"
	Contact     Tag = "contact"
)

// Tags is the closed set of intents, in no particular order.
var Tags = []Tag{
	Greeting, Time, Joke, Weather, OpenApp, Volume, Shutdown, Restart, Exit, AIResponse,
	Learn, Recall, Note, Goal, Reminder, SmartHome, Personality, Help, Diagnostics, Contact,
}

func (t Tag) Valid() bool {
	for _, v := range Tags {
		if v == t {
			return true
		}
	}
	return false
}

const (
	KeywordConfidence  = 0.6
	FallbackConfidence = 0.5
)

type Params map[string]any

func (p Params) String(key string) string {
	switch v := p[key].(type) {
	case nil:
		return ""
	case string:
		return v
	default:
		return fmt.Sprint(v)
	}
}

// Int reads an integer parameter. LLM output decodes numbers as float64 and
// sometimes as strings; both are accepted.
func (p Params) Int(key string) (int, bool) {
	switch v := p[key].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	case string:
		n, err := strconv.Atoi(strings.TrimSpace(v))
		return n, err == nil
	default:
		return 0, false
	}
}

// Intent is produced once per turn and never mutated.
type Intent struct {
	Tag        Tag
	Confidence float64
	Params     Params
}

func (i Intent) String() string {
	return fmt.Sprintf("%s (%.2f) %v", i.Tag, i.Confidence, map[string]any(i.Params))
}

// Resolver never fails: anything it cannot classify becomes AIResponse.
type Resolver interface {
	Resolve(ctx context.Context, text, context string) Intent
}
