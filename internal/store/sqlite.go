package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/user/cognitive/internal/cognitive"
)

const preferencesSchema = `
CREATE TABLE IF NOT EXISTS model_preferences (
	id         INTEGER PRIMARY KEY CHECK (id = 1),
	data       TEXT NOT NULL,
	updated_at TEXT NOT NULL
)`

// SQLitePreferences keeps preferences in a single-row SQLite table.
type SQLitePreferences struct {
	db *sql.DB
}

// OpenSQLitePreferences opens (and if needed creates) the database at path.
func OpenSQLitePreferences(path string) (*SQLitePreferences, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(preferencesSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create preferences table: %w", err)
	}
	return &SQLitePreferences{db: db}, nil
}

// Load returns the stored preferences, or nil when none have been saved.
func (s *SQLitePreferences) Load(ctx context.Context) (*cognitive.Preferences, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM model_preferences WHERE id = 1`).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query preferences: %w", err)
	}

	var prefs cognitive.Preferences
	if err := json.Unmarshal([]byte(data), &prefs); err != nil {
		return nil, fmt.Errorf("unmarshal preferences: %w", err)
	}
	return &prefs, nil
}

// Save upserts the preferences row.
func (s *SQLitePreferences) Save(ctx context.Context, prefs *cognitive.Preferences) error {
	data, err := json.Marshal(prefs)
	if err != nil {
		return fmt.Errorf("marshal preferences: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO model_preferences (id, data, updated_at) VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET data = excluded.data, updated_at = excluded.updated_at`,
		string(data), time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("save preferences: %w", err)
	}
	return nil
}

// Close closes the database.
func (s *SQLitePreferences) Close() error {
	return s.db.Close()
}
