package memory

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"
	"strconv"
	"time"
)

// ImportLegacy copies the flat-file memory (memory.json) into the database
// once. Nested scalar values become "section.key" preferences, notes become
// notes, contacts become contacts. The whole import and the migration mark
// commit together, so a failed import leaves nothing behind. A missing file
// is not an error and does not mark the migration done.
func (s *Store) ImportLegacy(ctx context.Context, path string) (bool, error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read legacy memory: %w", err)
	}

	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return false, fmt.Errorf("parse legacy memory: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin import: %w", err)
	}
	defer tx.Rollback()

	var n int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM migration`).Scan(&n); err != nil {
		return false, fmt.Errorf("query migration: %w", err)
	}
	if n > 0 {
		return false, nil
	}

	if err := importDoc(ctx, tx, doc); err != nil {
		return false, err
	}

	if _, err := tx.ExecContext(ctx, `INSERT INTO migration (migrated) VALUES (1)`); err != nil {
		return false, fmt.Errorf("mark migrated: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit import: %w", err)
	}
	return true, nil
}

func importDoc(ctx context.Context, tx *sql.Tx, doc map[string]any) error {
	keys := make([]string, 0, len(doc))
	for k := range doc {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, key := range keys {
		switch v := doc[key].(type) {
		case map[string]any:
			if key == "contacts" {
				if err := importContacts(ctx, tx, v); err != nil {
					return err
				}
				continue
			}
			for sub, sv := range v {
				if str, ok := scalar(sv); ok {
					if err := putPreference(ctx, tx, key+"."+sub, str); err != nil {
						return err
					}
				}
			}
		case []any:
			if key != "notes" {
				continue
			}
			if err := importNotes(ctx, tx, v); err != nil {
				return err
			}
		default:
			if str, ok := scalar(v); ok {
				if err := putPreference(ctx, tx, key, str); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

func putPreference(ctx context.Context, tx *sql.Tx, key, value string) error {
	key = normalizeKey(key)
	if key == "" {
		return errors.New("empty preference key")
	}
	_, err := tx.ExecContext(ctx,
		`INSERT INTO preferences (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("import preference %s: %w", key, err)
	}
	return nil
}

func importNotes(ctx context.Context, tx *sql.Tx, notes []any) error {
	now := time.Now().UnixNano()
	for _, n := range notes {
		note, ok := n.(map[string]any)
		if !ok {
			continue
		}
		content, _ := note["content"].(string)
		if content == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO notes (at, content) VALUES (?, ?)`, now, content); err != nil {
			return fmt.Errorf("import note: %w", err)
		}
	}
	return nil
}

func importContacts(ctx context.Context, tx *sql.Tx, contacts map[string]any) error {
	for name, v := range contacts {
		entry, ok := v.(map[string]any)
		if !ok {
			continue
		}
		key := normalizeKey(name)
		if key == "" {
			return errors.New("empty contact name")
		}
		phone, _ := entry["phone"].(string)
		email, _ := entry["email"].(string)
		_, err := tx.ExecContext(ctx,
			`INSERT INTO contacts (name, phone, email) VALUES (?, ?, ?)
			 ON CONFLICT(name) DO UPDATE SET phone = excluded.phone, email = excluded.email`,
			key, nullable(phone), nullable(email))
		if err != nil {
			return fmt.Errorf("import contact %s: %w", key, err)
		}
	}
	return nil
}

func scalar(v any) (string, bool) {
	switch x := v.(type) {
	case string:
		return x, true
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64), true
	case bool:
		return strconv.FormatBool(x), true
	default:
		return "", false
	}
}
