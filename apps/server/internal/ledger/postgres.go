package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

type PostgresService struct {
	db *sql.DB
}

func NewPostgresService(dsn string) (*PostgresService, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("empty postgres dsn")
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
	if _, err := db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS court_rounds (
    code TEXT NOT NULL,
    round INTEGER NOT NULL,
    ended_at TIMESTAMPTZ NOT NULL,
    summary_json JSONB NOT NULL,
    spec_json JSONB NOT NULL,
    PRIMARY KEY (code, round)
)`); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &PostgresService{db: db}, nil
}

func (s *PostgresService) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *PostgresService) Record(ctx context.Context, r RoundResult) error {
	if err := validateResult(r); err != nil {
		return err
	}
	summaryRaw, specRaw, err := encodeResult(r)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO court_rounds (code, round, ended_at, summary_json, spec_json)
VALUES ($1, $2, $3, $4::jsonb, $5::jsonb)
ON CONFLICT (code, round) DO NOTHING
`, r.Code, r.Round, r.EndedAt, string(summaryRaw), string(specRaw))
	return err
}

func (s *PostgresService) ListByRoom(ctx context.Context, code string, limit int) ([]HistoryItem, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT summary_json
FROM court_rounds
WHERE code = $1
ORDER BY round DESC
LIMIT $2
`, code, clampLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSummaries(rows)
}

func (s *PostgresService) Get(ctx context.Context, code string, round int) (*RoundResult, error) {
	var summaryRaw, specRaw []byte
	err := s.db.QueryRowContext(ctx, `
SELECT summary_json, spec_json
FROM court_rounds
WHERE code = $1 AND round = $2
`, code, round).Scan(&summaryRaw, &specRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return decodeResult(summaryRaw, specRaw)
}
