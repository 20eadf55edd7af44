// Package memory keeps the assistant's interaction history: a bounded
// in-process window used to build LLM context and an append-only SQLite log
// for long-term recall, plus user preferences, notes, goals and reminders.
package memory

import (
	"context"
	"strings"
	"sync"
	"time"
)

const (
	DefaultWindowSize    = 10
	DefaultContextBudget = 2000
)

type Interaction struct {
	ID            int64     `json:"id,omitempty"`
	UserText      string    `json:"user"`
	AssistantText string    `json:"assistant"`
	Intent        string    `json:"intent,omitempty"`
	At            time.Time `json:"at"`
}

// Recent is the short-term tier. Window is the in-process implementation,
// RedisWindow the shared one.
type Recent interface {
	Append(ctx context.Context, it Interaction) error
	Recent(ctx context.Context, n int) ([]Interaction, error)
}

// Window is a fixed-capacity ring buffer of interactions. On overflow the
// oldest entry is evicted.
type Window struct {
	mu    sync.RWMutex
	buf   []Interaction
	start int
	n     int
}

func NewWindow(capacity int) *Window {
	if capacity <= 0 {
		capacity = DefaultWindowSize
	}
	return &Window{buf: make([]Interaction, capacity)}
}

func (w *Window) Add(userText, assistantText string) {
	w.push(Interaction{UserText: userText, AssistantText: assistantText, At: time.Now()})
}

func (w *Window) Append(_ context.Context, it Interaction) error {
	if it.At.IsZero() {
		it.At = time.Now()
	}
	w.push(it)
	return nil
}

func (w *Window) push(it Interaction) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.n < len(w.buf) {
		w.buf[(w.start+w.n)%len(w.buf)] = it
		w.n++
		return
	}

	w.buf[w.start] = it
	w.start = (w.start + 1) % len(w.buf)
}

// Entries returns every retained interaction, oldest first.
func (w *Window) Entries() []Interaction {
	w.mu.RLock()
	defer w.mu.RUnlock()

	out := make([]Interaction, 0, w.n)
	for i := 0; i < w.n; i++ {
		out = append(out, w.buf[(w.start+i)%len(w.buf)])
	}
	return out
}

func (w *Window) Recent(_ context.Context, n int) ([]Interaction, error) {
	all := w.Entries()
	if n > 0 && len(all) > n {
		all = all[len(all)-n:]
	}
	return all, nil
}

func (w *Window) Len() int {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.n
}

func (w *Window) Cap() int { return len(w.buf) }

// Context renders the last n entries (all when n <= 0) and trims the result
// to budget characters.
func (w *Window) Context(n, budget int) string {
	entries, _ := w.Recent(context.Background(), n)
	return Trim(Render(entries), budget)
}

// Render formats interactions in chronological order as alternating
// "User:" / "Jarvis:" lines.
func Render(entries []Interaction) string {
	if len(entries) == 0 {
		return ""
	}

	var b strings.Builder
	for i, it := range entries {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString("User: ")
		b.WriteString(it.UserText)
		b.WriteString("\nJarvis: ")
		b.WriteString(it.AssistantText)
	}
	return b.String()
}

// Trim keeps the last budget characters of s. The head is dropped so the
// most recent content always survives.
func Trim(s string, budget int) string {
	if budget <= 0 {
		return s
	}

	r := []rune(s)
	if len(r) <= budget {
		return s
	}
	return string(r[len(r)-budget:])
}
