package store

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"royalcourt/court"
)

func backends(t *testing.T) map[string]func(t *testing.T) Store {
	t.Helper()
	out := map[string]func(t *testing.T) Store{
		"memory": func(t *testing.T) Store {
			return NewMemoryStore()
		},
		"sqlite": func(t *testing.T) Store {
			st, err := NewSQLiteStore(":memory:")
			require.NoError(t, err)
			return st
		},
		"redis": func(t *testing.T) Store {
			mr := miniredis.RunT(t)
			st, err := NewRedisStore(RedisOptions{Addr: mr.Addr()}, logrus.New())
			require.NoError(t, err)
			return st
		},
	}
	if dsn := os.Getenv("TEST_DATABASE_URL"); dsn != "" {
		out["postgres"] = func(t *testing.T) Store {
			st, err := NewPostgresStore(dsn, logrus.New())
			require.NoError(t, err)
			return st
		}
	}
	return out
}

func newLobby(t *testing.T) *court.Session {
	t.Helper()
	s, err := court.NewSession("R"+uuid.NewString()[:8], "Ann", court.Config{TargetPlayers: 4})
	require.NoError(t, err)
	return s
}

func TestStoreContract(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			st := open(t)
			defer st.Close()
			ctx := context.Background()

			s := newLobby(t)
			require.NoError(t, st.Create(ctx, s))
			assert.Equal(t, uint64(1), s.Version)
			assert.ErrorIs(t, st.Create(ctx, s.Clone()), ErrExists)

			got, err := st.Get(ctx, s.Code)
			require.NoError(t, err)
			assert.Equal(t, s, got)

			_, err = st.Get(ctx, "missing-"+s.Code)
			assert.ErrorIs(t, err, ErrNotFound)
			assert.True(t, court.IsValidation(err))

			next := got.Clone()
			_, err = next.AddPlayer("Ben", false, "")
			require.NoError(t, err)
			require.NoError(t, st.Update(ctx, 1, next))
			assert.Equal(t, uint64(2), next.Version)

			stale := got.Clone()
			_, err = stale.AddPlayer("Cat", false, "")
			require.NoError(t, err)
			assert.ErrorIs(t, st.Update(ctx, 1, stale), ErrConflict)

			got, err = st.Get(ctx, s.Code)
			require.NoError(t, err)
			assert.Len(t, got.Players, 2)
			assert.Equal(t, uint64(2), got.Version)

			ghost := got.Clone()
			ghost.Code = "ghost-" + s.Code
			assert.ErrorIs(t, st.Update(ctx, 2, ghost), ErrNotFound)

			require.NoError(t, st.Delete(ctx, s.Code))
			_, err = st.Get(ctx, s.Code)
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStoreSubscribe(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			st := open(t)
			defer st.Close()
			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			s := newLobby(t)
			require.NoError(t, st.Create(ctx, s))
			ch, err := st.Subscribe(ctx, s.Code)
			require.NoError(t, err)

			_, err = Mutate(ctx, st, s.Code, func(s *court.Session) error {
				_, err := s.AddPlayer("Ben", false, "")
				return err
			})
			require.NoError(t, err)

			select {
			case got := <-ch:
				require.NotNil(t, got)
				assert.Equal(t, uint64(2), got.Version)
				assert.Len(t, got.Players, 2)
			case <-time.After(5 * time.Second):
				t.Fatal("no update pushed")
			}

			cancel()
			require.Eventually(t, func() bool {
				select {
				case _, ok := <-ch:
					return !ok
				default:
					return false
				}
			}, 5*time.Second, 10*time.Millisecond)
		})
	}
}

func TestMutate_NoLostUpdates(t *testing.T) {
	for name, open := range backends(t) {
		t.Run(name, func(t *testing.T) {
			st := open(t)
			defer st.Close()
			ctx := context.Background()

			s := newLobby(t)
			require.NoError(t, st.Create(ctx, s))

			const writers = 16
			var (
				wg sync.WaitGroup
				mu sync.Mutex
				ok int
			)
			for i := 0; i < writers; i++ {
				wg.Add(1)
				go func() {
					defer wg.Done()
					_, err := Mutate(ctx, st, s.Code, func(s *court.Session) error {
						s.Scores["Ann"]++
						return nil
					})
					if err == nil {
						mu.Lock()
						ok++
						mu.Unlock()
						return
					}
					assert.ErrorIs(t, err, ErrConflict)
				}()
			}
			wg.Wait()

			got, err := st.Get(ctx, s.Code)
			require.NoError(t, err)
			assert.Greater(t, ok, 0)
			assert.Equal(t, ok, got.Scores["Ann"])
			assert.Equal(t, uint64(ok+1), got.Version)
		})
	}
}

func TestMutate_ValidationErrorWritesNothing(t *testing.T) {
	st := NewMemoryStore()
	defer st.Close()
	ctx := context.Background()

	s := newLobby(t)
	require.NoError(t, st.Create(ctx, s))
	_, err := Mutate(ctx, st, s.Code, func(s *court.Session) error {
		return s.StartRound(0, nil, nil)
	})
	assert.ErrorIs(t, err, court.ErrInsufficientPlayers)

	got, err := st.Get(ctx, s.Code)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), got.Version)
}

// conflictStore fails the first n updates with ErrConflict.
type conflictStore struct {
	Store
	n int
}

func (c *conflictStore) Update(ctx context.Context, base uint64, next *court.Session) error {
	if c.n > 0 {
		c.n--
		return ErrConflict
	}
	return c.Store.Update(ctx, base, next)
}

func TestMutate_RetriesThenGivesUp(t *testing.T) {
	ctx := context.Background()
	mem := NewMemoryStore()
	s := newLobby(t)
	require.NoError(t, mem.Create(ctx, s))

	calls := 0
	bump := func(s *court.Session) error {
		calls++
		s.Scores["Ann"]++
		return nil
	}

	got, err := Mutate(ctx, &conflictStore{Store: mem, n: 2}, s.Code, bump)
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
	assert.Equal(t, 1, got.Scores["Ann"])

	_, err = Mutate(ctx, &conflictStore{Store: mem, n: 100}, s.Code, bump)
	assert.True(t, errors.Is(err, ErrConflict))
}

func TestNew_Modes(t *testing.T) {
	st, mode, err := New(Options{Mode: "mem"}, nil)
	require.NoError(t, err)
	assert.Equal(t, ModeMemory, mode)
	require.NoError(t, st.Close())

	st, mode, err = New(Options{Mode: "local", SQLitePath: ":memory:"}, nil)
	require.NoError(t, err)
	assert.Equal(t, ModeSQLite, mode)
	require.NoError(t, st.Close())

	_, _, err = New(Options{Mode: "etcd"}, nil)
	assert.Error(t, err)
}
