package memory

import (
	"context"
	"fmt"
	log "log/slog"
	"strings"
)

// Memory ties the recent tier and the persistent log together. Record is
// the only writer; Context is read before every dispatch.
type Memory struct {
	recent Recent
	store  *Store
	window int
	budget int
}

type Options struct {
	// ContextEntries limits how many recent interactions go into the
	// context string; <= 0 means all of the recent tier.
	ContextEntries int
	Budget         int
}

// New builds a Memory. store may be nil, in which case only the recent
// tier is kept.
func New(recent Recent, store *Store, opt Options) *Memory {
	if recent == nil {
		recent = NewWindow(DefaultWindowSize)
	}
	if opt.Budget <= 0 {
		opt.Budget = DefaultContextBudget
	}
	return &Memory{
		recent: recent,
		store:  store,
		window: opt.ContextEntries,
		budget: opt.Budget,
	}
}

func (m *Memory) Store() *Store { return m.store }

// Record appends one interaction to both tiers. A failure of the
// persistent tier is returned but the recent tier is already updated.
func (m *Memory) Record(ctx context.Context, it Interaction) error {
	if err := m.recent.Append(ctx, it); err != nil {
		return fmt.Errorf("recent: %w", err)
	}
	if m.store == nil {
		return nil
	}
	if _, err := m.store.Save(ctx, it); err != nil {
		return fmt.Errorf("store: %w", err)
	}
	return nil
}

// Context returns the prompt context: what is known about the user
// followed by the recent conversation, trimmed from the front to the
// character budget.
func (m *Memory) Context(ctx context.Context) string {
	var parts []string

	if m.store != nil {
		prefs, keys, err := m.store.Preferences(ctx)
		if err != nil {
			log.Warn("Failed to read preferences", "err", err)
		} else if len(keys) > 0 {
			facts := make([]string, 0, len(keys))
			for _, k := range keys {
				facts = append(facts, k+" = "+prefs[k])
			}
			parts = append(parts, "Known about the user: "+strings.Join(facts, "; ")+".")
		}
	}

	recent, err := m.recent.Recent(ctx, m.window)
	if err != nil {
		log.Warn("Failed to read recent interactions", "err", err)
	} else if r := Render(recent); r != "" {
		parts = append(parts, r)
	}

	return Trim(strings.Join(parts, "\n"), m.budget)
}

// Warm seeds the recent tier from the persistent log so context survives a
// restart.
func (m *Memory) Warm(ctx context.Context, n int) error {
	if m.store == nil {
		return nil
	}

	last, err := m.store.FetchLast(ctx, n)
	if err != nil {
		return err
	}
	for _, it := range last {
		if err := m.recent.Append(ctx, it); err != nil {
			return err
		}
	}
	return nil
}

// Preference reads a learned preference, returning def when it is missing
// or the store is unavailable.
func (m *Memory) Preference(ctx context.Context, key, def string) string {
	if m.store == nil {
		return def
	}
	v, err := m.store.Preference(ctx, key)
	if err != nil {
		return def
	}
	return v
}
