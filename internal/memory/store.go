package memory

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

var ErrNotFound = errors.New("not found")

type Contact struct {
	Name  string
	Phone string
	Email string
}

type Note struct {
	ID      int64
	At      time.Time
	Content string
}

type Goal struct {
	ID   int64
	Text string
	Done bool
	At   time.Time
}

type Reminder struct {
	ID    int64
	Task  string
	DueAt time.Time
}

// Store is the unbounded local log. Every operation takes one coarse lock;
// no transaction spans more than one logical operation.
type Store struct {
	mu sync.Mutex
	db *sql.DB
}

func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("empty database path")
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.ensureSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("schema: %w", err)
	}

	return s, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ensureSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS preferences (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS interactions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			at INTEGER NOT NULL,
			user_text TEXT NOT NULL,
			assistant_text TEXT NOT NULL,
			intent TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS contacts (
			name TEXT PRIMARY KEY,
			phone TEXT,
			email TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS notes (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			at INTEGER NOT NULL,
			content TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS goals (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			at INTEGER NOT NULL,
			text TEXT NOT NULL,
			done INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS reminders (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			task TEXT NOT NULL,
			due_at INTEGER NOT NULL,
			fired INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_reminders_due ON reminders(fired, due_at)`,
		`CREATE TABLE IF NOT EXISTS migration (
			migrated INTEGER
		)`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

// Save appends one interaction to the log.
func (s *Store) Save(ctx context.Context, it Interaction) (int64, error) {
	if it.At.IsZero() {
		it.At = time.Now()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO interactions (at, user_text, assistant_text, intent) VALUES (?, ?, ?, ?)`,
		it.At.UnixNano(), it.UserText, it.AssistantText, nullable(it.Intent))
	if err != nil {
		return 0, fmt.Errorf("insert interaction: %w", err)
	}
	return res.LastInsertId()
}

// FetchLast returns up to n most recent interactions, oldest first.
func (s *Store) FetchLast(ctx context.Context, n int) ([]Interaction, error) {
	if n <= 0 {
		return nil, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, at, user_text, assistant_text, COALESCE(intent, '') FROM interactions ORDER BY id DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("query interactions: %w", err)
	}
	defer rows.Close()

	var out []Interaction
	for rows.Next() {
		var (
			it Interaction
			at int64
		)
		if err := rows.Scan(&it.ID, &at, &it.UserText, &it.AssistantText, &it.Intent); err != nil {
			return nil, err
		}
		it.At = time.Unix(0, at)
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

// SetPreference creates or overwrites a learned preference.
func (s *Store) SetPreference(ctx context.Context, key, value string) error {
	key = normalizeKey(key)
	if key == "" {
		return errors.New("empty preference key")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO preferences (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("upsert preference: %w", err)
	}
	return nil
}

func (s *Store) Preference(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var v string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM preferences WHERE key = ?`, normalizeKey(key)).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("query preference: %w", err)
	}
	return v, nil
}

// Preferences returns all preferences ordered by key.
func (s *Store) Preferences(ctx context.Context) (map[string]string, []string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM preferences ORDER BY key`)
	if err != nil {
		return nil, nil, fmt.Errorf("query preferences: %w", err)
	}
	defer rows.Close()

	prefs := make(map[string]string)
	var keys []string
	for rows.Next() {
		var k, v string
		if err := rows.Scan(&k, &v); err != nil {
			return nil, nil, err
		}
		prefs[k] = v
		keys = append(keys, k)
	}
	return prefs, keys, rows.Err()
}

func (s *Store) AddContact(ctx context.Context, c Contact) error {
	name := normalizeKey(c.Name)
	if name == "" {
		return errors.New("empty contact name")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO contacts (name, phone, email) VALUES (?, ?, ?)
		 ON CONFLICT(name) DO UPDATE SET phone = excluded.phone, email = excluded.email`,
		name, nullable(c.Phone), nullable(c.Email))
	if err != nil {
		return fmt.Errorf("upsert contact: %w", err)
	}
	return nil
}

func (s *Store) Contact(ctx context.Context, name string) (Contact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var c Contact
	err := s.db.QueryRowContext(ctx,
		`SELECT name, COALESCE(phone, ''), COALESCE(email, '') FROM contacts WHERE name = ?`,
		normalizeKey(name)).Scan(&c.Name, &c.Phone, &c.Email)
	if errors.Is(err, sql.ErrNoRows) {
		return Contact{}, ErrNotFound
	}
	if err != nil {
		return Contact{}, fmt.Errorf("query contact: %w", err)
	}
	return c, nil
}

func (s *Store) AddNote(ctx context.Context, content string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `INSERT INTO notes (at, content) VALUES (?, ?)`, time.Now().UnixNano(), content)
	if err != nil {
		return 0, fmt.Errorf("insert note: %w", err)
	}
	return res.LastInsertId()
}

// Notes returns notes newest first.
func (s *Store) Notes(ctx context.Context) ([]Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `SELECT id, at, content FROM notes ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("query notes: %w", err)
	}
	defer rows.Close()

	var out []Note
	for rows.Next() {
		var (
			n  Note
			at int64
		)
		if err := rows.Scan(&n.ID, &at, &n.Content); err != nil {
			return nil, err
		}
		n.At = time.Unix(0, at)
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *Store) AddGoal(ctx context.Context, text string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `INSERT INTO goals (at, text) VALUES (?, ?)`, time.Now().UnixNano(), text)
	if err != nil {
		return 0, fmt.Errorf("insert goal: %w", err)
	}
	return res.LastInsertId()
}

// ActiveGoals returns goals that are not done, oldest first.
func (s *Store) ActiveGoals(ctx context.Context) ([]Goal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `SELECT id, at, text FROM goals WHERE done = 0 ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query goals: %w", err)
	}
	defer rows.Close()

	var out []Goal
	for rows.Next() {
		var (
			g  Goal
			at int64
		)
		if err := rows.Scan(&g.ID, &at, &g.Text); err != nil {
			return nil, err
		}
		g.At = time.Unix(0, at)
		out = append(out, g)
	}
	return out, rows.Err()
}

func (s *Store) CompleteGoal(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `UPDATE goals SET done = 1 WHERE id = ? AND done = 0`, id)
	if err != nil {
		return fmt.Errorf("update goal: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) AddReminder(ctx context.Context, task string, due time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `INSERT INTO reminders (task, due_at) VALUES (?, ?)`, task, due.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("insert reminder: %w", err)
	}
	return res.LastInsertId()
}

// TakeDueReminders returns reminders due at or before now and marks them
// fired, so each reminder is delivered once.
func (s *Store) TakeDueReminders(ctx context.Context, now time.Time) ([]Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, task, due_at FROM reminders WHERE fired = 0 AND due_at <= ? ORDER BY due_at`, now.UnixNano())
	if err != nil {
		return nil, fmt.Errorf("query reminders: %w", err)
	}

	var out []Reminder
	for rows.Next() {
		var (
			r   Reminder
			due int64
		)
		if err := rows.Scan(&r.ID, &r.Task, &due); err != nil {
			rows.Close()
			return nil, err
		}
		r.DueAt = time.Unix(0, due)
		out = append(out, r)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	for _, r := range out {
		if _, err := s.db.ExecContext(ctx, `UPDATE reminders SET fired = 1 WHERE id = ?`, r.ID); err != nil {
			return nil, fmt.Errorf("mark reminder %d: %w", r.ID, err)
		}
	}
	return out, nil
}

// PendingReminders returns reminders not yet fired, soonest first.
func (s *Store) PendingReminders(ctx context.Context) ([]Reminder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.db.QueryContext(ctx, `SELECT id, task, due_at FROM reminders WHERE fired = 0 ORDER BY due_at`)
	if err != nil {
		return nil, fmt.Errorf("query reminders: %w", err)
	}
	defer rows.Close()

	var out []Reminder
	for rows.Next() {
		var (
			r   Reminder
			due int64
		)
		if err := rows.Scan(&r.ID, &r.Task, &due); err != nil {
			return nil, err
		}
		r.DueAt = time.Unix(0, due)
		out = append(out, r)
	}
	return out, rows.Err()
}

func normalizeKey(k string) string {
	return strings.ToLower(strings.TrimSpace(k))
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
