package skills

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"jarvis/internal/intent"
	"jarvis/internal/memory"
	"jarvis/internal/skill"
)

// Store is the part of the persistent memory the skills use;
// *memory.Store implements it.
type Store interface {
	SetPreference(ctx context.Context, key, value string) error
	Preference(ctx context.Context, key string) (string, error)
	AddNote(ctx context.Context, content string) (int64, error)
	Notes(ctx context.Context) ([]memory.Note, error)
	AddGoal(ctx context.Context, text string) (int64, error)
	ActiveGoals(ctx context.Context) ([]memory.Goal, error)
	CompleteGoal(ctx context.Context, id int64) error
	AddReminder(ctx context.Context, task string, due time.Time) (int64, error)
	Contact(ctx context.Context, name string) (memory.Contact, error)
}

var _ Store = (*memory.Store)(nil)

const noMemory = "My long-term memory is not available right now."

type Preferences struct {
	store Store
}

func NewPreferences(s Store) *Preferences { return &Preferences{store: s} }

func (*Preferences) Name() string { return "preferences" }

func (*Preferences) CanHandle(tag intent.Tag, _ intent.Params) bool {
	return is(tag, intent.Learn, intent.Recall)
}

func (p *Preferences) Handle(ctx context.Context, tag intent.Tag, params intent.Params) (string, error) {
	if p.store == nil {
		return noMemory, nil
	}

	key := params.String("key")
	if tag == intent.Recall {
		if key == "" {
			return "What would you like me to recall?", nil
		}
		v, err := p.store.Preference(ctx, key)
		if errors.Is(err, memory.ErrNotFound) {
			return "I don't know your " + key + " yet.", nil
		}
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Your %s is %s.", key, v), nil
	}

	value := params.String("value")
	if key == "" || value == "" {
		return "What should I remember? Say something like: remember that my city is Paris.", nil
	}
	if err := p.store.SetPreference(ctx, key, value); err != nil {
		return "", err
	}
	return fmt.Sprintf("Got it. I'll remember that your %s is %s.", key, value), nil
}

func (*Preferences) Tools() []skill.ToolSpec {
	str := map[string]any{"type": "string"}
	return []skill.ToolSpec{
		{
			Name:        "remember_preference",
			Description: "Store a fact about the user, such as their city or favourite color.",
			Parameters: map[string]any{
				"type":       "object",
				"properties": map[string]any{"key": str, "value": str},
				"required":   []string{"key", "value"},
			},
			Tag: intent.Learn,
		},
		{
			Name:        "recall_preference",
			Description: "Look up a fact previously stored about the user.",
			Parameters: map[string]any{
				"type":       "object",
				"properties": map[string]any{"key": str},
				"required":   []string{"key"},
			},
			Tag: intent.Recall,
		},
	}
}

// Contacts answers phone and email lookups from the address book.
type Contacts struct {
	store Store
}

func NewContacts(s Store) *Contacts { return &Contacts{store: s} }

func (*Contacts) Name() string { return "contacts" }

func (*Contacts) CanHandle(tag intent.Tag, _ intent.Params) bool { return tag == intent.Contact }

func (c *Contacts) Handle(ctx context.Context, _ intent.Tag, params intent.Params) (string, error) {
	if c.store == nil {
		return noMemory, nil
	}

	name := params.String("name")
	if name == "" {
		return "Whose contact details do you need?", nil
	}

	ct, err := c.store.Contact(ctx, name)
	if errors.Is(err, memory.ErrNotFound) {
		return "I don't have contact details for " + name + ".", nil
	}
	if err != nil {
		return "", err
	}

	var parts []string
	if ct.Phone != "" {
		parts = append(parts, "phone "+ct.Phone)
	}
	if ct.Email != "" {
		parts = append(parts, "email "+ct.Email)
	}
	if len(parts) == 0 {
		return "I have " + name + " saved but no phone or email.", nil
	}
	return fmt.Sprintf("Contact details for %s: %s.", name, strings.Join(parts, ", ")), nil
}

func (*Contacts) Tools() []skill.ToolSpec {
	return []skill.ToolSpec{{
		Name:        "lookup_contact",
		Description: "Look up a saved contact's phone number and email address.",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{"name": map[string]any{"type": "string"}},
			"required":   []string{"name"},
		},
		Tag: intent.Contact,
	}}
}

const notesSpoken = 5

type Notes struct {
	store Store
}

func NewNotes(s Store) *Notes { return &Notes{store: s} }

func (*Notes) Name() string { return "notes" }

func (*Notes) CanHandle(tag intent.Tag, _ intent.Params) bool { return tag == intent.Note }

func (n *Notes) Handle(ctx context.Context, _ intent.Tag, params intent.Params) (string, error) {
	if n.store == nil {
		return noMemory, nil
	}

	content := params.String("content")
	action := params.String("action")
	if action == "" && content != "" {
		action = "add"
	}

	switch action {
	case "add":
		if content == "" {
			return "What should the note say?", nil
		}
		if _, err := n.store.AddNote(ctx, content); err != nil {
			return "", err
		}
		return "Noted.", nil

	case "list":
		notes, err := n.store.Notes(ctx)
		if err != nil {
			return "", err
		}
		if len(notes) == 0 {
			return "You have no notes yet.", nil
		}
		if len(notes) > notesSpoken {
			notes = notes[:notesSpoken]
		}
		items := make([]string, len(notes))
		for i, note := range notes {
			items[i] = note.Content
		}
		return "Your latest notes: " + strings.Join(items, "; ") + ".", nil

	default:
		return "Say take a note followed by what to write down.", nil
	}
}

func (*Notes) Tools() []skill.ToolSpec {
	return []skill.ToolSpec{{
		Name:        "add_note",
		Description: "Write down a note for the user.",
		Parameters: map[string]any{
			"type":       "object",
			"properties": map[string]any{"content": map[string]any{"type": "string"}},
			"required":   []string{"content"},
		},
		Tag: intent.Note,
	}}
}

type Goals struct {
	store Store
}

func NewGoals(s Store) *Goals { return &Goals{store: s} }

func (*Goals) Name() string { return "goals" }

func (*Goals) CanHandle(tag intent.Tag, _ intent.Params) bool { return tag == intent.Goal }

func (g *Goals) Handle(ctx context.Context, _ intent.Tag, params intent.Params) (string, error) {
	if g.store == nil {
		return noMemory, nil
	}

	switch params.String("action") {
	case "add":
		text := params.String("text")
		if text == "" {
			return "What is the goal?", nil
		}
		id, err := g.store.AddGoal(ctx, text)
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Goal %d added: %s.", id, text), nil

	case "done":
		id, ok := params.Int("id")
		if !ok {
			return "Which goal number is done?", nil
		}
		err := g.store.CompleteGoal(ctx, int64(id))
		if errors.Is(err, memory.ErrNotFound) {
			return fmt.Sprintf("I can't find an open goal number %d.", id), nil
		}
		if err != nil {
			return "", err
		}
		return fmt.Sprintf("Marked goal %d as done. Well done.", id), nil

	default:
		goals, err := g.store.ActiveGoals(ctx)
		if err != nil {
			return "", err
		}
		if len(goals) == 0 {
			return "You have no active goals.", nil
		}
		items := make([]string, len(goals))
		for i, goal := range goals {
			items[i] = fmt.Sprintf("%d. %s", goal.ID, goal.Text)
		}
		return "Your goals: " + strings.Join(items, "; ") + ".", nil
	}
}

type Reminders struct {
	store Store
	now   func() time.Time
}

func NewReminders(s Store) *Reminders { return &Reminders{store: s, now: time.Now} }

func (*Reminders) Name() string { return "reminders" }

func (*Reminders) CanHandle(tag intent.Tag, _ intent.Params) bool { return tag == intent.Reminder }

// Handle stores the reminder; the assistant's reminder loop announces it
// when due.
func (r *Reminders) Handle(ctx context.Context, _ intent.Tag, params intent.Params) (string, error) {
	if r.store == nil {
		return noMemory, nil
	}

	task := params.String("task")
	secs, ok := params.Int("seconds")
	if task == "" || !ok || secs <= 0 {
		return "Say something like: remind me to call mom in 10 minutes.", nil
	}

	d := time.Duration(secs) * time.Second
	if _, err := r.store.AddReminder(ctx, task, r.now().Add(d)); err != nil {
		return "", err
	}
	return fmt.Sprintf("Okay, I'll remind you to %s in %s.", task, SpokenDuration(d)), nil
}

func (*Reminders) Tools() []skill.ToolSpec {
	return []skill.ToolSpec{{
		Name:        "set_reminder",
		Description: "Remind the user about a task after a delay.",
		Parameters: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"task":    map[string]any{"type": "string"},
				"seconds": map[string]any{"type": "integer", "minimum": 1},
			},
			"required": []string{"task", "seconds"},
		},
		Tag: intent.Reminder,
	}}
}

// SpokenDuration renders d in the largest whole unit, e.g. "2 hours".
func SpokenDuration(d time.Duration) string {
	unit := func(n int, name string) string {
		if n == 1 {
			return "1 " + name
		}
		return fmt.Sprintf("%d %ss", n, name)
	}

	switch {
	case d >= time.Hour && d%time.Hour == 0:
		return unit(int(d/time.Hour), "hour")
	case d >= time.Minute && d%time.Minute == 0:
		return unit(int(d/time.Minute), "minute")
	default:
		return unit(int(d/time.Second), "second")
	}
}
