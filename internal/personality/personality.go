// Package personality shapes the wording of replies.
package personality

import (
	"strings"
	"sync"
)

type Mode string

const (
	Normal Mode = "normal"
	Boss   Mode = "boss"
	Fun    Mode = "fun"
	Savage Mode = "savage"
)

func ParseMode(s string) (Mode, bool) {
	switch m := Mode(strings.ToLower(strings.TrimSpace(s))); m {
	case Normal, Boss, Fun, Savage:
		return m, true
	default:
		return Normal, false
	}
}

var (
	funWords  = []string{"lol", "haha", "funny", "joke", "laugh"}
	bossWords = []string{"open", "do", "run", "find", "execute", "start", "launch", "get"}
	hedges    = []string{"I think ", "maybe ", "Maybe ", "possibly ", "Possibly "}
)

// Personality is shared between the skill that switches modes and the
// orchestrator that applies them.
type Personality struct {
	mu   sync.RWMutex
	mode Mode
}

func New(mode string) *Personality {
	m, _ := ParseMode(mode)
	return &Personality{mode: m}
}

func (p *Personality) Mode() Mode {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.mode
}

// Set switches mode. Unknown names select Normal and report false.
func (p *Personality) Set(mode string) (Mode, bool) {
	m, ok := ParseMode(mode)
	p.mu.Lock()
	p.mode = m
	p.mu.Unlock()
	return m, ok
}

// AutoAdjust picks a mode from the tone of recent conversation.
func (p *Personality) AutoAdjust(convo string) Mode {
	words := strings.FieldsFunc(strings.ToLower(convo), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r == '\'')
	})

	var fun, boss int
	for _, w := range words {
		for _, f := range funWords {
			if strings.HasPrefix(w, f) {
				fun++
			}
		}
		for _, b := range bossWords {
			if w == b {
				boss++
			}
		}
	}

	m := Normal
	switch {
	case fun > boss && fun > 2:
		m = Fun
	case boss > fun && boss > 3:
		m = Boss
	}

	p.mu.Lock()
	p.mode = m
	p.mu.Unlock()
	return m
}

// Apply restyles a reply for the current mode.
func (p *Personality) Apply(text string) string {
	text = strings.TrimSpace(text)
	if text == "" {
		return text
	}

	switch p.Mode() {
	case Boss:
		for _, h := range hedges {
			text = strings.ReplaceAll(text, h, "")
		}
		text = strings.TrimSpace(text)
		if !strings.HasSuffix(text, ".") {
			text += "."
		}
		return text
	case Fun:
		if !strings.Contains(text, "!") {
			text = strings.TrimSuffix(text, ".") + "!"
		}
		return text
	case Savage:
		if strings.Contains(text, "I don't know") {
			return "Well, that's not in my database of infinite wisdom."
		}
		if strings.Contains(strings.ToLower(text), "error") {
			return "Oh great, something broke. How surprising."
		}
		return text + " Obviously."
	default:
		return text
	}
}

// Hint is a prompt fragment describing the current mode to the model.
func (p *Personality) Hint() string {
	switch p.Mode() {
	case Boss:
		return "Be short, confident and formal."
	case Fun:
		return "Be playful and upbeat."
	case Savage:
		return "Be witty and a little sarcastic, never rude."
	default:
		return ""
	}
}

func (m Mode) String() string { return string(m) }
