// Package session persists client-local state across restarts: the
// viewer's display name and, for operator sessions, the admin bearer
// credential and identity.
package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/vietstream/livechat/internal/auth"
)

// Fixed keys of the persisted values.
const (
	keyDisplayName = "display_name"
	keyAdminToken  = "admin_token"
	keyAdminUser   = "admin_user"
)

// AdminUser is the locally stored operator identity. Presence of this
// record only unlocks the moderation UI; every privileged call is still
// re-validated server-side.
type AdminUser struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

// Store is the sqlite-backed session state.
type Store struct {
	db *sql.DB
}

// Open creates or opens the session database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	schema := `
		CREATE TABLE IF NOT EXISTS state (
			key   TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) get(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM state WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get %s: %w", key, err)
	}
	return value, nil
}

func (s *Store) set(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO state (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	if err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (s *Store) delete(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		if _, err := s.db.ExecContext(ctx, `DELETE FROM state WHERE key = ?`, key); err != nil {
			return fmt.Errorf("delete %s: %w", key, err)
		}
	}
	return nil
}

// DisplayName returns the persisted display name, empty if never set.
func (s *Store) DisplayName(ctx context.Context) (string, error) {
	return s.get(ctx, keyDisplayName)
}

// SetDisplayName persists the display name for reuse across sessions.
func (s *Store) SetDisplayName(ctx context.Context, name string) error {
	return s.set(ctx, keyDisplayName, name)
}

// SetCredential stores the admin bearer token and identity after a
// successful login.
func (s *Store) SetCredential(ctx context.Context, token string, user AdminUser) error {
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("marshal admin user: %w", err)
	}
	if err := s.set(ctx, keyAdminToken, token); err != nil {
		return err
	}
	return s.set(ctx, keyAdminUser, string(data))
}

// ClearCredential drops the stored admin token and identity.
func (s *Store) ClearCredential(ctx context.Context) error {
	return s.delete(ctx, keyAdminToken, keyAdminUser)
}

// Token returns the stored bearer token, empty if not logged in.
func (s *Store) Token(ctx context.Context) (string, error) {
	return s.get(ctx, keyAdminToken)
}

// Operator returns the stored admin identity and token when a
// credential is present and not yet expired. A missing, malformed, or
// expired credential yields ok=false; trust is still re-validated
// server-side on every privileged call.
func (s *Store) Operator(ctx context.Context) (AdminUser, string, bool) {
	token, err := s.get(ctx, keyAdminToken)
	if err != nil || token == "" {
		return AdminUser{}, "", false
	}

	exp, err := auth.PeekExpiry(token)
	if err != nil || time.Now().After(exp) {
		return AdminUser{}, "", false
	}

	raw, err := s.get(ctx, keyAdminUser)
	if err != nil || raw == "" {
		return AdminUser{}, "", false
	}
	var user AdminUser
	if err := json.Unmarshal([]byte(raw), &user); err != nil {
		return AdminUser{}, "", false
	}
	return user, token, true
}
