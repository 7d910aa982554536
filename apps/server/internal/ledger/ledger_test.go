package ledger

import (
	"context"
	"encoding/json"
	"io"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"royalcourt/card"
	"royalcourt/court"
	"royalcourt/replay"
)

func playedRound(t *testing.T, code string, seed int64) *court.Session {
	t.Helper()
	s, err := court.NewSession(code, "Ann", court.Config{TargetPlayers: 4, FillWithBots: true})
	require.NoError(t, err)
	require.NoError(t, s.StartRound(0, rand.New(rand.NewSource(seed)), nil))
	for steps := 0; s.Phase == court.PhasePlaying; steps++ {
		require.Less(t, steps, 5000, "round did not finish")
		legal := s.LegalCards(s.TurnSeat)
		require.NotEmpty(t, legal)
		_, err := s.SubmitMove(s.TurnSeat, legal[0])
		require.NoError(t, err)
	}
	return s
}

func services(t *testing.T) map[string]Service {
	t.Helper()
	out := map[string]Service{"memory": NewMemoryService()}
	sq, err := NewSQLiteService(":memory:")
	require.NoError(t, err)
	out["sqlite"] = sq
	if dsn := os.Getenv("TEST_DATABASE_URL"); dsn != "" {
		pg, err := NewPostgresService(dsn)
		require.NoError(t, err)
		_, err = pg.db.Exec(`DELETE FROM court_rounds WHERE code LIKE 'LT%'`)
		require.NoError(t, err)
		out["postgres"] = pg
	}
	t.Cleanup(func() {
		for _, svc := range out {
			_ = svc.Close()
		}
	})
	return out
}

func TestResultFromSession(t *testing.T) {
	s := playedRound(t, "LTAAA", 3)
	r, err := ResultFromSession(s, time.Now())
	require.NoError(t, err)

	assert.Equal(t, "LTAAA", r.Code)
	assert.Equal(t, 1, r.Round)
	assert.Len(t, r.Players, 4)
	assert.Equal(t, s.Moves, mustMoves(t, r.Spec))
	assert.Equal(t, s.Scores, r.Scores)

	// the stored spec replays to the same outcome
	tape, err := replay.GenerateTape(r.Spec)
	require.NoError(t, err)
	assert.True(t, tape.Result.Finished)
	assert.Equal(t, r.Loser, tape.Result.Loser)
	assert.Equal(t, r.SafeOrder, tape.Result.SafeOrder)
}

func TestResultFromSession_RequiresFinishedRound(t *testing.T) {
	s, err := court.NewSession("LTBBB", "Ann", court.Config{TargetPlayers: 4})
	require.NoError(t, err)
	_, err = ResultFromSession(s, time.Now())
	assert.ErrorIs(t, err, court.ErrRoundNotActive)
}

func mustMoves(t *testing.T, spec replay.RoundSpec) []court.Play {
	t.Helper()
	out := make([]court.Play, 0, len(spec.Moves))
	for _, mv := range spec.Moves {
		c, err := card.Parse(mv.Card)
		require.NoError(t, err)
		out = append(out, court.Play{Seat: mv.Seat, Card: c})
	}
	return out
}

func TestServiceContract(t *testing.T) {
	for name, svc := range services(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			first, err := ResultFromSession(playedRound(t, "LTCCC", 1), time.UnixMilli(1_700_000_000_000))
			require.NoError(t, err)
			require.NoError(t, svc.Record(ctx, first))

			second := first
			second.Round = 2
			second.EndedAt = first.EndedAt.Add(time.Minute)
			require.NoError(t, svc.Record(ctx, second))

			// duplicate (code, round) is ignored
			dup := first
			dup.Players = []string{"someone", "else"}
			require.NoError(t, svc.Record(ctx, dup))

			got, err := svc.Get(ctx, "LTCCC", 1)
			require.NoError(t, err)
			assert.Equal(t, first.Players, got.Players)
			assert.Equal(t, first.Spec.Seats, got.Spec.Seats)
			assert.Equal(t, first.Spec.Moves, got.Spec.Moves)
			assert.True(t, first.EndedAt.Equal(got.EndedAt))

			items, err := svc.ListByRoom(ctx, "LTCCC", 0)
			require.NoError(t, err)
			require.Len(t, items, 2)
			assert.Equal(t, 2, items[0].Round)
			assert.Equal(t, 1, items[1].Round)
			assert.Equal(t, len(first.Spec.Moves), items[1].MoveCount)

			items, err = svc.ListByRoom(ctx, "LTCCC", 1)
			require.NoError(t, err)
			assert.Len(t, items, 1)

			_, err = svc.Get(ctx, "LTCCC", 9)
			assert.ErrorIs(t, err, ErrNotFound)

			assert.Error(t, svc.Record(ctx, RoundResult{Code: "", Round: 1}))
		})
	}
}

func TestNewService_Modes(t *testing.T) {
	svc, mode, err := NewService(Options{Mode: ""})
	require.NoError(t, err)
	assert.Equal(t, ModeMemory, mode)
	require.NoError(t, svc.Close())

	svc, mode, err = NewService(Options{Mode: "local", SQLitePath: ":memory:"})
	require.NoError(t, err)
	assert.Equal(t, ModeSQLite, mode)
	require.NoError(t, svc.Close())

	_, _, err = NewService(Options{Mode: "cassandra"})
	assert.Error(t, err)
}

func newTestServer(t *testing.T) (*httptest.Server, Service) {
	t.Helper()
	svc := NewMemoryService()
	r, err := ResultFromSession(playedRound(t, "LTDDD", 7), time.Now())
	require.NoError(t, err)
	require.NoError(t, svc.Record(context.Background(), r))

	log := logrus.New()
	log.SetOutput(io.Discard)
	mux := http.NewServeMux()
	NewHTTPHandler(svc, log).RegisterRoutes(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, svc
}

func getJSON(t *testing.T, url string, out any) int {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func TestHTTP_History(t *testing.T) {
	srv, _ := newTestServer(t)

	var list struct {
		Code  string        `json:"code"`
		Items []HistoryItem `json:"items"`
	}
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/rooms/ltddd/history", &list))
	assert.Equal(t, "LTDDD", list.Code)
	require.Len(t, list.Items, 1)
	assert.Equal(t, 1, list.Items[0].Round)

	var one RoundResult
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/rooms/LTDDD/history/1", &one))
	assert.NotEmpty(t, one.Spec.Moves)

	assert.Equal(t, http.StatusNotFound, getJSON(t, srv.URL+"/api/rooms/LTDDD/history/2", nil))
	assert.Equal(t, http.StatusBadRequest, getJSON(t, srv.URL+"/api/rooms/LTDDD/history/abc", nil))
	assert.Equal(t, http.StatusNotFound, getJSON(t, srv.URL+"/api/rooms/LTDDD/other", nil))
}

func TestHTTP_Replay(t *testing.T) {
	srv, _ := newTestServer(t)

	var tape replay.ReplayTape
	require.Equal(t, http.StatusOK, getJSON(t, srv.URL+"/api/rooms/LTDDD/history/1/replay?seat=2", &tape))
	assert.Equal(t, 2, tape.HeroSeat)
	assert.True(t, tape.Result.Finished)
	require.NotEmpty(t, tape.Events)
	assert.Equal(t, "deal", tape.Events[0].Type)

	resp, err := http.Post(srv.URL+"/api/rooms/LTDDD/history/1/replay", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}
