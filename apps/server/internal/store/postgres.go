package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/sirupsen/logrus"

	"royalcourt/court"
)

const notifyChannel = "court_sessions"

// PostgresStore shares sessions between server processes. Commits are
// announced with pg_notify and fanned out through a pq.Listener.
type PostgresStore struct {
	db       *sql.DB
	listener *pq.Listener
	hub      *hub
	log      logrus.FieldLogger
	done     chan struct{}
}

func NewPostgresStore(dsn string, log logrus.FieldLogger) (*PostgresStore, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("empty postgres dsn")
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := ensurePostgresSessionSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	log = log.WithField("component", "store.postgres")
	listener := pq.NewListener(dsn, time.Second, time.Minute, func(ev pq.ListenerEventType, err error) {
		if err != nil {
			log.WithError(err).Warn("listener event")
		}
	})
	if err := listener.Listen(notifyChannel); err != nil {
		_ = listener.Close()
		_ = db.Close()
		return nil, fmt.Errorf("listen %s: %w", notifyChannel, err)
	}

	s := &PostgresStore{
		db:       db,
		listener: listener,
		hub:      newHub(),
		log:      log,
		done:     make(chan struct{}),
	}
	go s.listen()
	return s, nil
}

func ensurePostgresSessionSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS court_sessions (
    code TEXT PRIMARY KEY,
    version BIGINT NOT NULL,
    data JSONB NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`)
	return err
}

func (s *PostgresStore) listen() {
	ping := time.NewTicker(90 * time.Second)
	defer ping.Stop()
	for {
		select {
		case <-s.done:
			return
		case n, ok := <-s.listener.Notify:
			if !ok {
				return
			}
			if n == nil {
				// reconnected: notifications may have been lost
				s.refreshAll()
				continue
			}
			s.refresh(n.Extra)
		case <-ping.C:
			go func() { _ = s.listener.Ping() }()
		}
	}
}

func (s *PostgresStore) refreshAll() {
	for _, code := range s.hub.codes() {
		s.refresh(code)
	}
}

func (s *PostgresStore) refresh(code string) {
	if !s.hub.hasSubscribers(code) {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	sess, err := s.Get(ctx, code)
	if err != nil {
		s.log.WithError(err).WithField("room", code).Warn("refresh after notify failed")
		return
	}
	s.hub.publish(sess)
}

func (s *PostgresStore) Create(ctx context.Context, sess *court.Session) error {
	sess.Version = 1
	data, err := encodeSession(sess)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `
INSERT INTO court_sessions (code, version, data)
VALUES ($1, $2, $3::jsonb)
ON CONFLICT (code) DO NOTHING`, sess.Code, int64(sess.Version), string(data))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrExists
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, code string) (*court.Session, error) {
	var data string
	err := s.db.QueryRowContext(ctx, `SELECT data::text FROM court_sessions WHERE code = $1`, code).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return decodeSession([]byte(data))
}

func (s *PostgresStore) Update(ctx context.Context, baseVersion uint64, next *court.Session) error {
	stored := next.Clone()
	stored.Version = baseVersion + 1
	data, err := encodeSession(stored)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
UPDATE court_sessions
SET version = $1, data = $2::jsonb, updated_at = NOW()
WHERE code = $3 AND version = $4`, int64(stored.Version), string(data), stored.Code, int64(baseVersion))
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		var one int
		err := tx.QueryRowContext(ctx, `SELECT 1 FROM court_sessions WHERE code = $1`, stored.Code).Scan(&one)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return ErrConflict
	}
	if _, err := tx.ExecContext(ctx, `SELECT pg_notify($1, $2)`, notifyChannel, stored.Code); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	next.Version = stored.Version
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, code string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM court_sessions WHERE code = $1`, code)
	return err
}

func (s *PostgresStore) Subscribe(ctx context.Context, code string) (<-chan *court.Session, error) {
	return s.hub.subscribe(ctx, code)
}

func (s *PostgresStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	close(s.done)
	s.hub.close()
	_ = s.listener.Close()
	return s.db.Close()
}
