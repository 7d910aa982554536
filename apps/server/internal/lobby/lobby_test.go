package lobby

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"royalcourt/apps/server/internal/room"
	"royalcourt/apps/server/internal/store"
	"royalcourt/court"
)

func newTestLobby(t *testing.T, st store.Store, idle time.Duration) *Lobby {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)
	l := New(st, Config{Room: room.Options{Log: log, LeaseTTL: time.Second}, IdleTTL: idle})
	t.Cleanup(l.Close)
	return l
}

func TestNewRoomCode(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 200; i++ {
		code := newRoomCode()
		require.Len(t, code, codeLength)
		for _, ch := range code {
			assert.True(t, strings.ContainsRune(codeAlphabet, ch), "code %q", code)
		}
		seen[code] = true
	}
	assert.Greater(t, len(seen), 190)
}

func TestCreateJoinResume(t *testing.T) {
	ctx := context.Background()
	l := newTestLobby(t, store.NewMemoryStore(), time.Hour)

	host, err := l.CreateRoom(ctx, " Ann ", 4, false)
	require.NoError(t, err)
	assert.Equal(t, 0, host.Seat)
	assert.NotEmpty(t, host.Token)
	require.NotNil(t, host.Room)

	s := host.Room.Snapshot()
	assert.Equal(t, "Ann", s.Players[0].Name)
	assert.NotEmpty(t, s.Players[0].TokenHash)
	assert.NotEqual(t, host.Token, s.Players[0].TokenHash)

	ben, err := l.JoinRoom(ctx, strings.ToLower(host.Code), "Ben")
	require.NoError(t, err)
	assert.Equal(t, 1, ben.Seat)
	assert.Same(t, host.Room, ben.Room)

	_, err = l.JoinRoom(ctx, host.Code, "ann")
	assert.ErrorIs(t, err, court.ErrNameTaken)
	_, err = l.JoinRoom(ctx, host.Code, "  ")
	assert.ErrorIs(t, err, court.ErrNameRequired)
	_, err = l.JoinRoom(ctx, "ZZZZZ", "Cat")
	assert.ErrorIs(t, err, court.ErrNotFound)

	back, err := l.Resume(ctx, host.Code, 1, ben.Token)
	require.NoError(t, err)
	assert.Equal(t, 1, back.Seat)

	_, err = l.Resume(ctx, host.Code, 1, host.Token)
	assert.ErrorIs(t, err, court.ErrInvalidToken)
	_, err = l.Resume(ctx, host.Code, 7, ben.Token)
	assert.ErrorIs(t, err, court.ErrInvalidSeat)
	_, err = l.Resume(ctx, host.Code, 0, "")
	assert.ErrorIs(t, err, court.ErrInvalidToken)
}

func TestCreateRoom_InvalidConfig(t *testing.T) {
	l := newTestLobby(t, store.NewMemoryStore(), time.Hour)
	_, err := l.CreateRoom(context.Background(), "Ann", 3, true)
	assert.Error(t, err)
	_, err = l.CreateRoom(context.Background(), "", 4, true)
	assert.ErrorIs(t, err, court.ErrNameRequired)
}

func TestResumeAfterReapReopensRoom(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	l := newTestLobby(t, st, time.Millisecond)

	host, err := l.CreateRoom(ctx, "Ann", 4, true)
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)
	assert.Equal(t, 1, l.Reap())
	assert.True(t, host.Room.IsClosed())
	assert.Empty(t, l.ListRooms())

	// the record outlives the actor
	back, err := l.Resume(ctx, host.Code, 0, host.Token)
	require.NoError(t, err)
	assert.NotSame(t, host.Room, back.Room)
	assert.False(t, back.Room.IsClosed())
	assert.Equal(t, []string{host.Code}, l.ListRooms())
}

func TestTwoLobbiesShareStore(t *testing.T) {
	ctx := context.Background()
	st := store.NewMemoryStore()
	a := newTestLobby(t, st, time.Hour)
	b := newTestLobby(t, st, time.Hour)

	host, err := a.CreateRoom(ctx, "Ann", 4, false)
	require.NoError(t, err)
	ben, err := b.JoinRoom(ctx, host.Code, "Ben")
	require.NoError(t, err)
	assert.Equal(t, 1, ben.Seat)

	require.Eventually(t, func() bool {
		return len(host.Room.Snapshot().Players) == 2
	}, time.Second, 5*time.Millisecond)

	_, err = a.Resume(ctx, host.Code, 1, ben.Token)
	require.NoError(t, err)
}
