// Package wake decides whether a transcript contains a wake or sleep phrase.
package wake

import (
	"context"
	log "log/slog"
	"strings"
	"time"
	"unicode"

	"jarvis/pkg/util"
)

var (
	DefaultWakePhrases  = []string{"jarvis", "hey jarvis"}
	DefaultSleepPhrases = []string{"go to sleep", "stop listening", "standby mode"}
)

// Listener yields one transcript per call; "" means nothing was heard.
type Listener interface {
	Listen(ctx context.Context) (string, error)
}

type Options struct {
	WakePhrases  []string
	SleepPhrases []string
	// Timeout bounds one Poll. Zero leaves it to the listener.
	Timeout time.Duration
}

type Trigger struct {
	listener Listener
	wake     []string
	sleep    []string
	timeout  time.Duration
}

func New(l Listener, opt Options) *Trigger {
	wake := util.NormalizeSet(opt.WakePhrases)
	if len(wake) == 0 {
		wake = DefaultWakePhrases
	}
	sleep := util.NormalizeSet(opt.SleepPhrases)
	if len(sleep) == 0 {
		sleep = DefaultSleepPhrases
	}

	return &Trigger{
		listener: l,
		wake:     normalizeAll(wake),
		sleep:    normalizeAll(sleep),
		timeout:  opt.Timeout,
	}
}

// Detect listens once and reports whether a wake phrase was heard.
func (t *Trigger) Detect(ctx context.Context) bool {
	_, woke := t.Poll(ctx)
	return woke
}

// Poll listens once and returns what was heard. Listener errors are logged
// and reported as silence.
func (t *Trigger) Poll(ctx context.Context) (string, bool) {
	if t.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, t.timeout)
		defer cancel()
	}

	text, err := t.listener.Listen(ctx)
	if err != nil {
		log.Debug("Wake listen failed", "err", err)
		return "", false
	}
	return text, t.IsWakeWord(text)
}

func (t *Trigger) IsWakeWord(text string) bool {
	return matchAny(text, t.wake)
}

func (t *Trigger) IsSleepCommand(text string) bool {
	return matchAny(text, t.sleep)
}

// matchAny reports whether one of phrases occurs in text on word
// boundaries, ignoring case and punctuation.
func matchAny(text string, phrases []string) bool {
	padded := " " + normalize(text) + " "
	if padded == "  " {
		return false
	}
	for _, p := range phrases {
		if p != "" && strings.Contains(padded, " "+p+" ") {
			return true
		}
	}
	return false
}

// normalize lower-cases text, turns punctuation into spaces and collapses
// runs of whitespace.
func normalize(s string) string {
	s = strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r):
			return unicode.ToLower(r)
		case r == '\'':
			return -1
		default:
			return ' '
		}
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

func normalizeAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, p := range in {
		if n := normalize(p); n != "" {
			out = append(out, n)
		}
	}
	return out
}
