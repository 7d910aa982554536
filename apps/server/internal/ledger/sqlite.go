package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

type SQLiteService struct {
	db *sql.DB
}

func NewSQLiteService(dbPath string) (*SQLiteService, error) {
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
	for _, pragma := range []string{
		`PRAGMA busy_timeout = 5000;`,
		`PRAGMA journal_mode = WAL;`,
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	if err := ensureSQLiteLedgerSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &SQLiteService{db: db}, nil
}

func ensureSQLiteLedgerSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS court_rounds (
    code TEXT NOT NULL,
    round INTEGER NOT NULL,
    ended_at_ms INTEGER NOT NULL,
    summary_json TEXT NOT NULL,
    spec_json TEXT NOT NULL,
    PRIMARY KEY (code, round)
);`)
	return err
}

func (s *SQLiteService) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteService) Record(ctx context.Context, r RoundResult) error {
	if err := validateResult(r); err != nil {
		return err
	}
	summaryRaw, specRaw, err := encodeResult(r)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO court_rounds (code, round, ended_at_ms, summary_json, spec_json)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT (code, round) DO NOTHING
`, r.Code, r.Round, r.EndedAt.UnixMilli(), string(summaryRaw), string(specRaw))
	return err
}

func (s *SQLiteService) ListByRoom(ctx context.Context, code string, limit int) ([]HistoryItem, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT summary_json
FROM court_rounds
WHERE code = ?
ORDER BY round DESC
LIMIT ?
`, code, clampLimit(limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanSummaries(rows)
}

func (s *SQLiteService) Get(ctx context.Context, code string, round int) (*RoundResult, error) {
	var summaryRaw, specRaw string
	err := s.db.QueryRowContext(ctx, `
SELECT summary_json, spec_json
FROM court_rounds
WHERE code = ? AND round = ?
`, code, round).Scan(&summaryRaw, &specRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return decodeResult([]byte(summaryRaw), []byte(specRaw))
}

func encodeResult(r RoundResult) (summary, spec []byte, err error) {
	if summary, err = json.Marshal(r.Summary()); err != nil {
		return nil, nil, err
	}
	if spec, err = json.Marshal(r.Spec); err != nil {
		return nil, nil, err
	}
	return summary, spec, nil
}

func decodeResult(summaryRaw, specRaw []byte) (*RoundResult, error) {
	var item HistoryItem
	if err := json.Unmarshal(summaryRaw, &item); err != nil {
		return nil, fmt.Errorf("decode round summary: %w", err)
	}
	r := &RoundResult{
		Code:      item.Code,
		Round:     item.Round,
		Players:   item.Players,
		Loser:     item.Loser,
		SafeOrder: item.SafeOrder,
		Scores:    item.Scores,
		EndedAt:   item.EndedAt,
	}
	if err := json.Unmarshal(specRaw, &r.Spec); err != nil {
		return nil, fmt.Errorf("decode round spec: %w", err)
	}
	return r, nil
}

func scanSummaries(rows *sql.Rows) ([]HistoryItem, error) {
	items := make([]HistoryItem, 0)
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, err
		}
		var item HistoryItem
		if err := json.Unmarshal(raw, &item); err != nil {
			return nil, fmt.Errorf("decode round summary: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}
