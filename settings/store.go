// Package settings keeps session values and cached store listings between
// program runs. Book processing never depends on it, callers resolve what is
// needed and hand it over explicitly.
package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// Well known keys.
const (
	KeyToken   = "token"
	KeyEmail   = "email"
	KeyLibrary = "library"
)

// Store is key-value storage with JSON encoded values.
type Store interface {
	// Get decodes value stored under key into v, reports false when key is absent.
	Get(ctx context.Context, key string, v any) (bool, error)
	Set(ctx context.Context, key string, v any) error
	// Clear removes listed keys, everything when none listed.
	Clear(ctx context.Context, keys ...string) error
	Close() error
}

const schema = `CREATE TABLE IF NOT EXISTS settings (key TEXT PRIMARY KEY, value TEXT NOT NULL)`

// SQLite is Store backed by single database connection, access is serialized.
type SQLite struct {
	mu   sync.Mutex
	conn *sqlite.Conn
	log  *zap.Logger
}

// OpenSQLite opens (creating when necessary) settings database at path.
func OpenSQLite(path string, log *zap.Logger) (*SQLite, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("unable to create settings directory: %w", err)
	}
	conn, err := sqlite.OpenConn(path, sqlite.OpenReadWrite, sqlite.OpenCreate, sqlite.OpenWAL)
	if err != nil {
		return nil, fmt.Errorf("unable to open settings database %s: %w", path, err)
	}
	if err := sqlitex.ExecuteTransient(conn, schema, nil); err != nil {
		conn.Close()
		return nil, fmt.Errorf("unable to prepare settings database: %w", err)
	}
	log.Debug("Settings database opened", zap.String("path", path))
	return &SQLite{conn: conn, log: log}, nil
}

// lock serializes access and arranges for long statements to be interrupted
// when context is cancelled.
func (s *SQLite) lock(ctx context.Context) (func(), error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	if s.conn == nil {
		s.mu.Unlock()
		return nil, errors.New("settings database is closed")
	}
	old := s.conn.SetInterrupt(ctx.Done())
	return func() {
		s.conn.SetInterrupt(old)
		s.mu.Unlock()
	}, nil
}

func (s *SQLite) Get(ctx context.Context, key string, v any) (bool, error) {
	unlock, err := s.lock(ctx)
	if err != nil {
		return false, err
	}
	defer unlock()

	var (
		value string
		found bool
	)
	err = sqlitex.Execute(s.conn, `SELECT value FROM settings WHERE key = ?`, &sqlitex.ExecOptions{
		Args: []any{key},
		ResultFunc: func(stmt *sqlite.Stmt) error {
			value, found = stmt.ColumnText(0), true
			return nil
		},
	})
	if err != nil {
		return false, fmt.Errorf("unable to read setting %q: %w", key, err)
	}
	if !found {
		return false, nil
	}
	if err := json.Unmarshal([]byte(value), v); err != nil {
		return false, fmt.Errorf("unable to decode setting %q: %w", key, err)
	}
	return true, nil
}

func (s *SQLite) Set(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("unable to encode setting %q: %w", key, err)
	}

	unlock, err := s.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	err = sqlitex.Execute(s.conn,
		`INSERT INTO settings (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		&sqlitex.ExecOptions{Args: []any{key, string(data)}})
	if err != nil {
		return fmt.Errorf("unable to store setting %q: %w", key, err)
	}
	return nil
}

func (s *SQLite) Clear(ctx context.Context, keys ...string) (err error) {
	unlock, err := s.lock(ctx)
	if err != nil {
		return err
	}
	defer unlock()

	if len(keys) == 0 {
		if err := sqlitex.Execute(s.conn, `DELETE FROM settings`, nil); err != nil {
			return fmt.Errorf("unable to clear settings: %w", err)
		}
		s.log.Debug("All settings cleared")
		return nil
	}

	defer sqlitex.Save(s.conn)(&err)
	for _, key := range keys {
		if err := sqlitex.Execute(s.conn, `DELETE FROM settings WHERE key = ?`, &sqlitex.ExecOptions{Args: []any{key}}); err != nil {
			return fmt.Errorf("unable to clear setting %q: %w", key, err)
		}
	}
	s.log.Debug("Settings cleared", zap.String("keys", strings.Join(keys, ",")))
	return nil
}

func (s *SQLite) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}
