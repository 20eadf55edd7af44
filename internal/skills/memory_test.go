package skills

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jarvis/internal/intent"
	"jarvis/internal/memory"
)

func openStore(t *testing.T) *memory.Store {
	t.Helper()

	s, err := memory.Open(filepath.Join(t.TempDir(), "jarvis.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestPreferences(t *testing.T) {
	p := NewPreferences(openStore(t))
	ctx := context.Background()

	got, err := p.Handle(ctx, intent.Recall, intent.Params{"key": "city"})
	require.NoError(t, err)
	assert.Equal(t, "I don't know your city yet.", got)

	got, err = p.Handle(ctx, intent.Learn, intent.Params{"key": "city", "value": "paris"})
	require.NoError(t, err)
	assert.Equal(t, "Got it. I'll remember that your city is paris.", got)

	got, err = p.Handle(ctx, intent.Recall, intent.Params{"key": "City"})
	require.NoError(t, err)
	assert.Equal(t, "Your City is paris.", got)

	got, _ = p.Handle(ctx, intent.Learn, intent.Params{"key": "city"})
	assert.Contains(t, got, "What should I remember?")
}

func TestNotes(t *testing.T) {
	n := NewNotes(openStore(t))
	ctx := context.Background()

	got, _ := n.Handle(ctx, intent.Note, intent.Params{"action": "list"})
	assert.Equal(t, "You have no notes yet.", got)

	for _, c := range []string{"buy milk", "call bob"} {
		got, err := n.Handle(ctx, intent.Note, intent.Params{"content": c})
		require.NoError(t, err)
		assert.Equal(t, "Noted.", got)
	}

	got, err := n.Handle(ctx, intent.Note, intent.Params{"action": "list"})
	require.NoError(t, err)
	assert.Equal(t, "Your latest notes: call bob; buy milk.", got)
}

func TestGoals(t *testing.T) {
	g := NewGoals(openStore(t))
	ctx := context.Background()

	got, err := g.Handle(ctx, intent.Goal, intent.Params{"action": "add", "text": "run a marathon"})
	require.NoError(t, err)
	assert.Equal(t, "Goal 1 added: run a marathon.", got)

	_, err = g.Handle(ctx, intent.Goal, intent.Params{"action": "add", "text": "learn go"})
	require.NoError(t, err)

	got, _ = g.Handle(ctx, intent.Goal, intent.Params{"action": "list"})
	assert.Equal(t, "Your goals: 1. run a marathon; 2. learn go.", got)

	got, _ = g.Handle(ctx, intent.Goal, intent.Params{"action": "done", "id": 1})
	assert.Equal(t, "Marked goal 1 as done. Well done.", got)

	got, _ = g.Handle(ctx, intent.Goal, intent.Params{"action": "done", "id": 1})
	assert.Equal(t, "I can't find an open goal number 1.", got)

	got, _ = g.Handle(ctx, intent.Goal, intent.Params{})
	assert.Equal(t, "Your goals: 2. learn go.", got)
}

func TestReminders(t *testing.T) {
	store := openStore(t)
	r := NewReminders(store)
	now := time.Date(2024, time.March, 4, 9, 0, 0, 0, time.UTC)
	r.now = func() time.Time { return now }
	ctx := context.Background()

	got, err := r.Handle(ctx, intent.Reminder, intent.Params{"task": "stretch", "seconds": 600})
	require.NoError(t, err)
	assert.Equal(t, "Okay, I'll remind you to stretch in 10 minutes.", got)

	pending, err := store.PendingReminders(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, "stretch", pending[0].Task)
	assert.True(t, now.Add(10*time.Minute).Equal(pending[0].DueAt))

	got, _ = r.Handle(ctx, intent.Reminder, intent.Params{"task": "stretch"})
	assert.Contains(t, got, "remind me to")
}

func TestNoStore(t *testing.T) {
	ctx := context.Background()
	for _, h := range []interface {
		Handle(context.Context, intent.Tag, intent.Params) (string, error)
	}{NewPreferences(nil), NewNotes(nil), NewGoals(nil), NewReminders(nil)} {
		got, err := h.Handle(ctx, intent.Note, intent.Params{})
		require.NoError(t, err)
		assert.Equal(t, noMemory, got)
	}
}

func TestSpokenDuration(t *testing.T) {
	assert.Equal(t, "1 hour", SpokenDuration(time.Hour))
	assert.Equal(t, "90 minutes", SpokenDuration(90*time.Minute))
	assert.Equal(t, "1 minute", SpokenDuration(time.Minute))
	assert.Equal(t, "45 seconds", SpokenDuration(45*time.Second))
	assert.Equal(t, "61 seconds", SpokenDuration(61*time.Second))
}

func TestContacts(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	require.NoError(t, store.AddContact(ctx, memory.Contact{Name: "John Doe", Phone: "555", Email: "john@example.com"}))
	require.NoError(t, store.AddContact(ctx, memory.Contact{Name: "Ann"}))

	c := NewContacts(store)
	cases := []struct {
		params intent.Params
		want   string
	}{
		{intent.Params{"name": "john doe"}, "Contact details for john doe: phone 555, email john@example.com."},
		{intent.Params{"name": "ann"}, "I have ann saved but no phone or email."},
		{intent.Params{"name": "bob"}, "I don't have contact details for bob."},
		{intent.Params{}, "Whose contact details do you need?"},
	}
	for _, tc := range cases {
		got, err := c.Handle(ctx, intent.Contact, tc.params)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got)
	}

	got, err := NewContacts(nil).Handle(ctx, intent.Contact, intent.Params{"name": "ann"})
	require.NoError(t, err)
	assert.Equal(t, noMemory, got)
}
