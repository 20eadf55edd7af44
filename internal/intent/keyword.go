package intent

import (
	"context"
	"regexp"
	"strconv"
	"strings"
)

type Rule struct {
	Tag      Tag
	Keywords []string
}

// DefaultRules is checked top to bottom. The assistant extensions come
// first so that, for example, "remind me" is not taken as a greeting.
var DefaultRules = []Rule{
	{Goal, []string{"my goal", "mark goal", "complete goal", "add goal"}},
	{Reminder, []string{"remind me"}},
	{Note, []string{"note that", "take a note", "make a note", "my notes"}},
	{Recall, []string{"what is my", "what's my", "do you remember my"}},
	{Learn, []string{"remember that", "remember my", "remember i"}},
	{Contact, []string{"phone number", "email address", "contact details", "number for", "email for", "how do i reach"}},
	{Personality, []string{"personality", "boss mode", "fun mode", "savage mode", "normal mode"}},
	{SmartHome, []string{"lamp", "lights", "the light", "the fan", "the heater"}},
	{Help, []string{"what can you do", "your skills", "your capabilities"}},
	{Diagnostics, []string{"diagnostic", "system check", "health check", "status report"}},

	{Greeting, []string{"hello", "hi", "hey", "good morning", "good evening", "namaste"}},
	{Time, []string{"time", "what time", "current time", "what's the time"}},
	{Joke, []string{"joke", "make me laugh", "funny", "tell a joke"}},
	{Weather, []string{"weather", "temperature", "rain", "forecast", "how's the weather"}},
	{OpenApp, []string{"open", "launch", "start"}},
	{Volume, []string{"volume", "mute", "unmute", "sound"}},
	{Shutdown, []string{"shutdown", "turn off", "power off", "sleep"}},
	{Restart, []string{"restart", "reboot"}},
	{Exit, []string{"exit", "quit", "goodbye", "bye"}},
	{AIResponse, []string{"what", "how", "why", "tell me", "explain", "help"}},
}

// KnownApps are matched by name before falling back to the word after the
// open verb.
var KnownApps = []string{"chrome", "youtube", "vscode", "notepad", "calculator", "spotify", "firefox", "terminal"}

// KnownDevices are the smart home device names recognised in commands.
var KnownDevices = []string{"lamp", "lights", "light", "fan", "heater"}

var Modes = []string{"normal", "boss", "fun", "savage"}

// KeywordResolver is the first-match-wins substring classifier.
type KeywordResolver struct {
	rules []Rule
}

func NewKeywordResolver(rules []Rule) *KeywordResolver {
	if rules == nil {
		rules = DefaultRules
	}
	return &KeywordResolver{rules: rules}
}

func (r *KeywordResolver) Resolve(_ context.Context, text, _ string) Intent {
	lower := strings.ToLower(strings.TrimSpace(text))

	for _, rule := range r.rules {
		for _, kw := range rule.Keywords {
			if strings.Contains(lower, kw) {
				return Intent{Tag: rule.Tag, Confidence: KeywordConfidence, Params: Extract(rule.Tag, lower)}
			}
		}
	}
	return Intent{Tag: AIResponse, Confidence: FallbackConfidence, Params: Params{}}
}

var (
	numberRe   = regexp.MustCompile(`\d+`)
	learnRe    = regexp.MustCompile(`remember (?:that )?(?:my |i )?(.+?) (?:is|are) (.+)`)
	recallRe   = regexp.MustCompile(`(?:what is|what's|do you remember) my (.+)`)
	noteRe     = regexp.MustCompile(`(?:note that|take a note|make a note)[:,]?\s*(?:that\s+)?(.*)`)
	goalAddRe  = regexp.MustCompile(`(?:my goal(?: is)?|add goal)[:,]?\s*(.+)`)
	contactRe  = regexp.MustCompile(`\b(?:for|of|reach) (.+)`)
	ownerRe    = regexp.MustCompile(`(?:^| )([a-z][a-z ]*?)'s (?:phone|number|email|contact)`)
	dirRe      = regexp.MustCompile(`\b(?:turn|volume|sound)\s+(?:\w+\s+)?(up|down)\b`)
	goalDoneRe = regexp.MustCompile(`(?:mark|complete) goal (?:number )?(\d+)`)
	remindRe   = regexp.MustCompile(`remind me to (.+?) in (\d+) (second|minute|hour)s?`)
	trailingRe = regexp.MustCompile(`[?.!]+$`)
)

// Extract pulls the tag specific parameters out of lower-cased text.
func Extract(tag Tag, text string) Params {
	text = strings.ToLower(strings.TrimSpace(text))
	p := Params{}

	switch tag {
	case Volume:
		extractVolume(text, p)

	case OpenApp:
		for _, app := range KnownApps {
			if strings.Contains(text, app) {
				p["app"] = app
				return p
			}
		}
		words := strings.Fields(text)
		for i, w := range words {
			if (w == "open" || w == "launch" || w == "start") && i+1 < len(words) {
				p["app"] = clean(words[i+1])
				break
			}
		}

	case Weather:
		words := strings.Fields(text)
		for i, w := range words {
			if w == "in" && i+1 < len(words) {
				p["location"] = clean(strings.Join(words[i+1:], " "))
				break
			}
		}

	case Learn:
		if m := learnRe.FindStringSubmatch(text); m != nil {
			p["key"] = clean(m[1])
			p["value"] = clean(m[2])
		}

	case Recall:
		if m := recallRe.FindStringSubmatch(text); m != nil {
			p["key"] = clean(m[1])
		}

	case Contact:
		if m := ownerRe.FindStringSubmatch(text); m != nil {
			p["name"] = lastName(m[1])
		} else if m := contactRe.FindStringSubmatch(text); m != nil {
			p["name"] = clean(m[1])
		}

	case Note:
		if strings.Contains(text, "my notes") {
			p["action"] = "list"
		} else if m := noteRe.FindStringSubmatch(text); m != nil && clean(m[1]) != "" {
			p["action"] = "add"
			p["content"] = clean(m[1])
		}

	case Goal:
		switch {
		case goalDoneRe.MatchString(text):
			id, _ := strconv.Atoi(goalDoneRe.FindStringSubmatch(text)[1])
			p["action"] = "done"
			p["id"] = id
		case strings.Contains(text, "my goals"):
			p["action"] = "list"
		default:
			if m := goalAddRe.FindStringSubmatch(text); m != nil {
				p["action"] = "add"
				p["text"] = clean(m[1])
			}
		}

	case Reminder:
		if m := remindRe.FindStringSubmatch(text); m != nil {
			n, _ := strconv.Atoi(m[2])
			unit := map[string]int{"second": 1, "minute": 60, "hour": 3600}[m[3]]
			p["task"] = clean(m[1])
			p["seconds"] = n * unit
		}

	case SmartHome:
		for _, d := range KnownDevices {
			if strings.Contains(text, d) {
				p["device"] = d
				break
			}
		}
		for _, w := range strings.Fields(text) {
			switch clean(w) {
			case "on":
				p["state"] = "on"
			case "off":
				p["state"] = "off"
			}
		}

	case Personality:
		for _, m := range Modes {
			if strings.Contains(text, m) {
				p["mode"] = m
				break
			}
		}
	}

	return p
}

func extractVolume(text string, p Params) {
	nums := numberRe.FindAllString(text, -1)
	var level int
	if len(nums) > 0 {
		level, _ = strconv.Atoi(nums[0])
		p["level"] = level
	}

	hasAny := func(words ...string) bool {
		for _, w := range words {
			if strings.Contains(text, w) {
				return true
			}
		}
		return false
	}
	// "by N" or a bare number with a direction is a step; "to N" is a target.
	step := len(nums) > 0 && (strings.Contains(text, " by ") || !strings.Contains(text, " to "))

	var dir string
	if m := dirRe.FindStringSubmatch(text); m != nil {
		dir = m[1]
	}

	switch {
	case strings.Contains(text, "unmute"):
		p["action"] = "unmute"
	case strings.Contains(text, "mute"):
		p["action"] = "mute"
	case dir == "up" || hasAny("increase", "louder", "raise"):
		p["action"] = "increase"
		if step {
			p["step"] = level
			delete(p, "level")
		} else if len(nums) > 0 {
			p["action"] = "set"
		}
	case dir == "down" || hasAny("decrease", "lower", "quieter", "quiet"):
		p["action"] = "decrease"
		if step {
			p["step"] = level
			delete(p, "level")
		} else if len(nums) > 0 {
			p["action"] = "set"
		}
	case len(nums) > 0:
		p["action"] = "set"
	}
}

// lastName drops the question words in front of a possessive, so "what is
// john doe" gives "john doe".
func lastName(s string) string {
	s = clean(s)
	for _, lead := range []string{"what is ", "what's ", "give me ", "tell me "} {
		s = strings.TrimPrefix(s, lead)
	}
	return strings.TrimPrefix(s, "the ")
}

func clean(s string) string {
	return strings.TrimSpace(trailingRe.ReplaceAllString(strings.TrimSpace(s), ""))
}
