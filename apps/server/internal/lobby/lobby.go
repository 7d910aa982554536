package lobby

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"

	"royalcourt/apps/server/internal/room"
	"royalcourt/apps/server/internal/store"
	"royalcourt/court"
)

const (
	codeLength      = 5
	codeAlphabet    = "ABCDEFGHJKLMNPQRSTUVWXYZ" // no I or O
	maxCodeAttempts = 8
	tokenBytes      = 24
	DefaultIdleTTL  = 2 * time.Hour
)

// Lobby manages room lifecycle for this process: creating rooms, handing out
// seat tokens and keeping one room actor per open room.
type Lobby struct {
	store    store.Store
	roomOpts room.Options
	idleTTL  time.Duration
	log      logrus.FieldLogger

	mu    sync.Mutex
	rooms map[string]*room.Room
}

type Config struct {
	Room    room.Options
	IdleTTL time.Duration
}

// Ticket is what a client needs to act for a seat. Token is returned once;
// only its bcrypt hash is stored.
type Ticket struct {
	Code  string
	Seat  int
	Token string
	Room  *room.Room
}

// New creates a lobby over st.
func New(st store.Store, cfg Config) *Lobby {
	log := cfg.Room.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	if cfg.Room.DriverID == "" {
		cfg.Room.DriverID = uuid.NewString()
	}
	idle := cfg.IdleTTL
	if idle <= 0 {
		idle = DefaultIdleTTL
	}
	return &Lobby{
		store:    st,
		roomOpts: cfg.Room,
		idleTTL:  idle,
		log:      log.WithField("component", "lobby"),
		rooms:    make(map[string]*room.Room),
	}
}

// CreateRoom opens a new room with hostName in seat 0.
func (l *Lobby) CreateRoom(ctx context.Context, hostName string, targetPlayers int, fillWithBots bool) (Ticket, error) {
	token, hash, err := newSeatToken()
	if err != nil {
		return Ticket{}, err
	}
	cfg := court.Config{TargetPlayers: targetPlayers, FillWithBots: fillWithBots}

	for attempt := 1; attempt <= maxCodeAttempts; attempt++ {
		code := newRoomCode()
		s, err := court.NewSession(code, strings.TrimSpace(hostName), cfg)
		if err != nil {
			return Ticket{}, err
		}
		s.Players[0].TokenHash = hash

		err = l.store.Create(ctx, s)
		if errors.Is(err, store.ErrExists) {
			l.log.WithField("room", code).Debug("room code taken, retrying")
			continue
		}
		if err != nil {
			return Ticket{}, err
		}

		r, err := l.Room(ctx, code)
		if err != nil {
			return Ticket{}, err
		}
		l.log.WithFields(logrus.Fields{"room": code, "host": s.Players[0].Name}).Info("room created")
		return Ticket{Code: code, Seat: 0, Token: token, Room: r}, nil
	}
	return Ticket{}, fmt.Errorf("no free room code after %d attempts", maxCodeAttempts)
}

// JoinRoom seats name in the room's lobby phase.
func (l *Lobby) JoinRoom(ctx context.Context, code, name string) (Ticket, error) {
	r, err := l.Room(ctx, code)
	if err != nil {
		return Ticket{}, err
	}
	token, hash, err := newSeatToken()
	if err != nil {
		return Ticket{}, err
	}
	seat, err := r.Join(strings.TrimSpace(name), hash)
	if err != nil {
		return Ticket{}, err
	}
	return Ticket{Code: r.Code, Seat: seat, Token: token, Room: r}, nil
}

// Resume reattaches a client to its seat after a reconnect.
func (l *Lobby) Resume(ctx context.Context, code string, seat int, token string) (Ticket, error) {
	code = NormalizeCode(code)
	s, err := l.store.Get(ctx, code)
	if err != nil {
		return Ticket{}, err
	}
	p := s.Seat(seat)
	if p == nil {
		return Ticket{}, court.ErrInvalidSeat
	}
	if p.Bot || p.TokenHash == "" || token == "" {
		return Ticket{}, court.ErrInvalidToken
	}
	if err := bcrypt.CompareHashAndPassword([]byte(p.TokenHash), []byte(token)); err != nil {
		return Ticket{}, court.ErrInvalidToken
	}
	r, err := l.Room(ctx, code)
	if err != nil {
		return Ticket{}, err
	}
	return Ticket{Code: code, Seat: seat, Token: token, Room: r}, nil
}

// Room returns the local actor for code, opening it from the store when this
// process has not seen the room yet.
func (l *Lobby) Room(ctx context.Context, code string) (*room.Room, error) {
	code = NormalizeCode(code)
	if code == "" {
		return nil, court.ErrNotFound
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if r, ok := l.rooms[code]; ok && !r.IsClosed() {
		return r, nil
	}
	r, err := room.New(ctx, code, l.store, l.roomOpts)
	if err != nil {
		return nil, err
	}
	l.rooms[code] = r
	return r, nil
}

// Reap stops rooms idle for longer than the idle TTL and returns how many
// were stopped. The shared record stays in the store.
func (l *Lobby) Reap() int {
	l.mu.Lock()
	idle := make([]*room.Room, 0)
	for code, r := range l.rooms {
		if r.IsIdleFor(l.idleTTL) {
			idle = append(idle, r)
			delete(l.rooms, code)
		}
	}
	l.mu.Unlock()

	for _, r := range idle {
		r.Stop()
		l.log.WithField("room", r.Code).Info("reaped idle room")
	}
	return len(idle)
}

// RunReaper calls Reap every interval until ctx is done.
func (l *Lobby) RunReaper(ctx context.Context, every time.Duration) {
	if every <= 0 {
		every = time.Minute
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Reap()
		}
	}
}

// ListRooms returns the codes of rooms open in this process.
func (l *Lobby) ListRooms() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	codes := make([]string, 0, len(l.rooms))
	for code := range l.rooms {
		codes = append(codes, code)
	}
	return codes
}

// Close stops every room actor.
func (l *Lobby) Close() {
	l.mu.Lock()
	rooms := l.rooms
	l.rooms = make(map[string]*room.Room)
	l.mu.Unlock()
	for _, r := range rooms {
		r.Stop()
	}
}

func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// newRoomCode derives a short human-typable code from a random UUID.
func newRoomCode() string {
	id := uuid.New()
	var b strings.Builder
	b.Grow(codeLength)
	for i := 0; i < codeLength; i++ {
		b.WriteByte(codeAlphabet[int(id[i])%len(codeAlphabet)])
	}
	return b.String()
}

func newSeatToken() (token, hash string, err error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", "", err
	}
	token = base64.RawURLEncoding.EncodeToString(buf)
	h, err := bcrypt.GenerateFromPassword([]byte(token), bcrypt.MinCost)
	if err != nil {
		return "", "", err
	}
	return token, string(h), nil
}
