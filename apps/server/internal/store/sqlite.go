package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"royalcourt/court"
)

const defaultLocalDBName = "royalcourt_local.db"

// SQLiteStore keeps sessions in a local SQLite file. Push notifications are
// process-local: every writer must share this store instance.
type SQLiteStore struct {
	db  *sql.DB
	hub *hub
	mu  sync.Mutex // orders commit+publish
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dbPath = strings.TrimSpace(dbPath)
	if dbPath == "" {
		return nil, fmt.Errorf("empty sqlite database path")
	}
	if dbPath != ":memory:" {
		parent := filepath.Dir(dbPath)
		if parent != "" && parent != "." {
			if err := os.MkdirAll(parent, 0o755); err != nil {
				return nil, err
			}
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := db.ExecContext(ctx, `PRAGMA busy_timeout = 5000;`); err != nil {
		_ = db.Close()
		return nil, err
	}
	if _, err := db.ExecContext(ctx, `PRAGMA journal_mode = WAL;`); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := ensureSQLiteSessionSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteStore{db: db, hub: newHub()}, nil
}

func ensureSQLiteSessionSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS court_sessions (
    code TEXT PRIMARY KEY,
    version INTEGER NOT NULL,
    data TEXT NOT NULL,
    updated_at_ms INTEGER NOT NULL
);`)
	return err
}

func (s *SQLiteStore) Create(ctx context.Context, sess *court.Session) error {
	sess.Version = 1
	data, err := encodeSession(sess)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
INSERT INTO court_sessions (code, version, data, updated_at_ms)
VALUES (?, ?, ?, ?)
ON CONFLICT(code) DO NOTHING`, sess.Code, sess.Version, string(data), nowMs())
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrExists
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, code string) (*court.Session, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data FROM court_sessions WHERE code = ?`, code).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return decodeSession([]byte(data))
}

func (s *SQLiteStore) Update(ctx context.Context, baseVersion uint64, next *court.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := next.Clone()
	stored.Version = baseVersion + 1
	data, err := encodeSession(stored)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
UPDATE court_sessions
SET version = ?, data = ?, updated_at_ms = ?
WHERE code = ? AND version = ?`, stored.Version, string(data), nowMs(), stored.Code, baseVersion)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return s.missOrConflict(ctx, stored.Code)
	}
	next.Version = stored.Version
	s.hub.publish(stored)
	return nil
}

func (s *SQLiteStore) missOrConflict(ctx context.Context, code string) error {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM court_sessions WHERE code = ?`, code).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return ErrConflict
}

func (s *SQLiteStore) Delete(ctx context.Context, code string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM court_sessions WHERE code = ?`, code)
	return err
}

func (s *SQLiteStore) Subscribe(ctx context.Context, code string) (<-chan *court.Session, error) {
	return s.hub.subscribe(ctx, code)
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	s.hub.close()
	return s.db.Close()
}
