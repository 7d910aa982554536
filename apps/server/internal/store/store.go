package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"royalcourt/court"
)

var (
	// ErrConflict means the record changed since it was read. Re-read,
	// re-validate and retry.
	ErrConflict = errors.New("session version conflict")
	ErrExists   = errors.New("room code already exists")
	ErrNotFound = court.ErrNotFound
	ErrClosed   = errors.New("store closed")
)

// Store is the synchronized session store. Update is a compare-and-swap on
// Version: it commits only if the stored version equals baseVersion and then
// stores baseVersion+1 (also written into next.Version).
type Store interface {
	Create(ctx context.Context, s *court.Session) error
	Get(ctx context.Context, code string) (*court.Session, error)
	Update(ctx context.Context, baseVersion uint64, next *court.Session) error
	Delete(ctx context.Context, code string) error
	// Subscribe pushes every committed version of the room until ctx is done.
	// Slow readers only see the latest version.
	Subscribe(ctx context.Context, code string) (<-chan *court.Session, error)
	Close() error
}

const (
	DefaultMaxAttempts = 5
	retryBaseDelay     = 5 * time.Millisecond
)

// MaxAttempts bounds Mutate retries on ErrConflict.
var MaxAttempts = DefaultMaxAttempts

// Mutate reads the room, applies fn to a clone and commits it with a
// compare-and-swap. Errors from fn are returned as-is and nothing is written.
// Conflicts are retried with jittered backoff, re-running fn on fresh state.
func Mutate(ctx context.Context, st Store, code string, fn func(s *court.Session) error) (*court.Session, error) {
	for attempt := 1; ; attempt++ {
		cur, err := st.Get(ctx, code)
		if err != nil {
			return nil, err
		}
		next := cur.Clone()
		if err := fn(next); err != nil {
			return nil, err
		}
		err = st.Update(ctx, cur.Version, next)
		if err == nil {
			return next, nil
		}
		if !errors.Is(err, ErrConflict) {
			return nil, err
		}
		if attempt >= MaxAttempts {
			return nil, fmt.Errorf("room %s after %d attempts: %w", code, attempt, ErrConflict)
		}
		delay := retryBaseDelay*time.Duration(attempt) + time.Duration(rand.Int63n(int64(retryBaseDelay)))
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
	}
}

func encodeSession(s *court.Session) ([]byte, error) {
	return json.Marshal(s)
}

func decodeSession(data []byte) (*court.Session, error) {
	var s court.Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	if s.Scores == nil {
		s.Scores = make(map[string]int)
	}
	return &s, nil
}

func nowMs() int64 { return time.Now().UnixMilli() }
