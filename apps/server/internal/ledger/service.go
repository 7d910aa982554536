package ledger

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"royalcourt/court"
	"royalcourt/replay"
)

const (
	defaultLocalDBName = "royalcourt_local.db"
	defaultListLimit   = 20
	maxListLimit       = 100
)

const (
	ModeMemory   = "memory"
	ModeSQLite   = "sqlite"
	ModePostgres = "postgres"
)

var ErrNotFound = errors.New("round not found")

// Service stores finished rounds. Record is idempotent per (code, round):
// the first write wins and later ones are ignored.
type Service interface {
	Record(ctx context.Context, r RoundResult) error
	ListByRoom(ctx context.Context, code string, limit int) ([]HistoryItem, error)
	Get(ctx context.Context, code string, round int) (*RoundResult, error)
	Close() error
}

// RoundResult is the audit record of one finished round. Spec holds the
// opening deal and the accepted moves so the round can be replayed.
type RoundResult struct {
	Code      string           `json:"code"`
	Round     int              `json:"round"`
	Players   []string         `json:"players"`
	Loser     *int             `json:"loser,omitempty"`
	SafeOrder []int            `json:"safe_order"`
	Scores    map[string]int   `json:"scores"`
	Spec      replay.RoundSpec `json:"spec"`
	EndedAt   time.Time        `json:"ended_at"`
}

// HistoryItem is the list view of a RoundResult.
type HistoryItem struct {
	Code      string         `json:"code"`
	Round     int            `json:"round"`
	Players   []string       `json:"players"`
	Loser     *int           `json:"loser,omitempty"`
	LoserName string         `json:"loser_name,omitempty"`
	SafeOrder []int          `json:"safe_order"`
	Scores    map[string]int `json:"scores"`
	MoveCount int            `json:"move_count"`
	EndedAt   time.Time      `json:"ended_at"`
}

func (r RoundResult) Summary() HistoryItem {
	item := HistoryItem{
		Code:      r.Code,
		Round:     r.Round,
		Players:   r.Players,
		Loser:     r.Loser,
		SafeOrder: r.SafeOrder,
		Scores:    r.Scores,
		MoveCount: len(r.Spec.Moves),
		EndedAt:   r.EndedAt,
	}
	if r.Loser != nil && *r.Loser >= 0 && *r.Loser < len(r.Players) {
		item.LoserName = r.Players[*r.Loser]
	}
	return item
}

// ResultFromSession builds the record of the round that just finished in s.
func ResultFromSession(s *court.Session, endedAt time.Time) (RoundResult, error) {
	if s == nil || s.Phase != court.PhaseFinished {
		return RoundResult{}, court.ErrRoundNotActive
	}
	spec, err := replay.SpecFromSession(s)
	if err != nil {
		return RoundResult{}, err
	}
	r := RoundResult{
		Code:      s.Code,
		Round:     s.Round,
		Players:   make([]string, 0, len(s.Players)),
		SafeOrder: append([]int{}, s.SafeOrder...),
		Scores:    make(map[string]int, len(s.Scores)),
		Spec:      spec,
		EndedAt:   endedAt.UTC(),
	}
	for _, p := range s.Players {
		r.Players = append(r.Players, p.Name)
	}
	if s.Loser != nil {
		loser := *s.Loser
		r.Loser = &loser
	}
	for name, v := range s.Scores {
		r.Scores[name] = v
	}
	return r, nil
}

func validateResult(r RoundResult) error {
	if strings.TrimSpace(r.Code) == "" || r.Round <= 0 {
		return fmt.Errorf("round result needs a room code and a positive round")
	}
	return nil
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}

type roundKey struct {
	code  string
	round int
}

// MemoryService keeps history for the life of the process.
type MemoryService struct {
	mu     sync.RWMutex
	rounds map[roundKey]RoundResult
}

func NewMemoryService() *MemoryService {
	return &MemoryService{rounds: make(map[roundKey]RoundResult)}
}

func (m *MemoryService) Record(_ context.Context, r RoundResult) error {
	if err := validateResult(r); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := roundKey{code: r.Code, round: r.Round}
	if _, exists := m.rounds[key]; exists {
		return nil
	}
	m.rounds[key] = r
	return nil
}

func (m *MemoryService) ListByRoom(_ context.Context, code string, limit int) ([]HistoryItem, error) {
	limit = clampLimit(limit)
	m.mu.RLock()
	items := make([]HistoryItem, 0)
	for key, r := range m.rounds {
		if key.code == code {
			items = append(items, r.Summary())
		}
	}
	m.mu.RUnlock()

	sort.Slice(items, func(i, j int) bool { return items[i].Round > items[j].Round })
	if len(items) > limit {
		items = items[:limit]
	}
	return items, nil
}

func (m *MemoryService) Get(_ context.Context, code string, round int) (*RoundResult, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.rounds[roundKey{code: code, round: round}]
	if !ok {
		return nil, ErrNotFound
	}
	return &r, nil
}

func (m *MemoryService) Close() error { return nil }

type Options struct {
	Mode        string
	SQLitePath  string
	DatabaseURL string
}

// NewService opens the ledger selected by opts.Mode and returns the resolved
// mode name.
func NewService(opts Options) (Service, string, error) {
	mode := strings.ToLower(strings.TrimSpace(opts.Mode))
	switch mode {
	case "", ModeMemory:
		return NewMemoryService(), ModeMemory, nil
	case ModeSQLite, "local":
		path := opts.SQLitePath
		if strings.TrimSpace(path) == "" {
			path = filepath.Join("data", defaultLocalDBName)
		}
		svc, err := NewSQLiteService(path)
		if err != nil {
			return nil, ModeSQLite, err
		}
		return svc, ModeSQLite, nil
	case ModePostgres, "postgresql", "pg":
		svc, err := NewPostgresService(opts.DatabaseURL)
		if err != nil {
			return nil, ModePostgres, err
		}
		return svc, ModePostgres, nil
	case "redis":
		// Redis holds live sessions only; history goes to memory.
		return NewMemoryService(), ModeMemory, nil
	default:
		return nil, mode, fmt.Errorf("invalid LEDGER_MODE %q (supported: %s, %s, %s)",
			mode, ModeMemory, ModeSQLite, ModePostgres)
	}
}
