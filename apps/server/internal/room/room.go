package room

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"royalcourt/apps/server/internal/ledger"
	"royalcourt/apps/server/internal/store"
	"royalcourt/card"
	"royalcourt/court"
	"royalcourt/court/npc"
)

// Room is the per-process actor for one shared session. Commands from this
// process are applied one at a time; commits from other processes arrive
// through the store subscription.
type Room struct {
	Code string

	store    store.Store
	npc      *npc.Manager
	ledger   ledger.Service
	log      logrus.FieldLogger
	driverID string
	leaseTTL time.Duration
	rng      *rand.Rand // actor goroutine only

	mu         sync.RWMutex
	latest     *court.Session
	viewers    map[string]chan Update
	closed     bool
	stopOnce   sync.Once
	lastActive time.Time
	pendingBot turnKey

	// Event channel for actor pattern
	events chan Event
	done   chan struct{}
	cancel context.CancelFunc
}

type Options struct {
	NPC    *npc.Manager
	Ledger ledger.Service
	Log    logrus.FieldLogger
	// DriverID identifies this process when it holds the bot-driver lease.
	DriverID string
	LeaseTTL time.Duration
	Seed     int64 // 0 => time-based
}

// Update is pushed to viewers for every committed version. Moves lists what
// happened since the previous version the viewer was sent, when derivable.
type Update struct {
	Session *court.Session
	Moves   []court.MoveResult
}

type EventType int

const (
	EventJoin EventType = iota
	EventStartRound
	EventMove
	EventBotMove
	EventHeartbeat
)

// Event is a command for the room actor.
type Event struct {
	Type      EventType
	Seat      int
	Name      string
	TokenHash string
	Card      card.Card
	Turn      turnKey
	Response  chan Reply
}

type Reply struct {
	Seat   int
	Result *court.MoveResult
	Err    error
}

// turnKey pins a bot decision to the exact state it was made for.
type turnKey struct {
	round   int
	moveSeq int
	seat    int
}

var (
	ErrRoomClosed = errors.New("room closed")
	errStaleTurn  = errors.New("stale bot turn")
)

const (
	DefaultLeaseTTL   = 15 * time.Second
	viewerBuffer      = 16
	persistTimeout    = 3 * time.Second
	releaseTimeout    = 2 * time.Second
	minHeartbeatEvery = 10 * time.Millisecond
)

// New loads the room from st and starts its actor.
func New(ctx context.Context, code string, st store.Store, opts Options) (*Room, error) {
	s, err := st.Get(ctx, code)
	if err != nil {
		return nil, err
	}
	subCtx, cancel := context.WithCancel(context.Background())
	updates, err := st.Subscribe(subCtx, code)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("subscribe room %s: %w", code, err)
	}

	log := opts.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	driverID := opts.DriverID
	if driverID == "" {
		driverID = uuid.NewString()
	}
	ttl := opts.LeaseTTL
	if ttl <= 0 {
		ttl = DefaultLeaseTTL
	}
	seed := opts.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}

	r := &Room{
		Code:       code,
		store:      st,
		npc:        opts.NPC,
		ledger:     opts.Ledger,
		log:        log.WithFields(logrus.Fields{"component": "room", "room": code}),
		driverID:   driverID,
		leaseTTL:   ttl,
		rng:        rand.New(rand.NewSource(seed)),
		latest:     s,
		viewers:    make(map[string]chan Update),
		lastActive: time.Now(),
		pendingBot: turnKey{seat: court.NoSeat},
		events:     make(chan Event, 64),
		done:       make(chan struct{}),
		cancel:     cancel,
	}
	go r.run(updates)
	r.log.WithField("version", s.Version).Info("room opened")
	return r, nil
}

func (r *Room) run(updates <-chan *court.Session) {
	every := r.leaseTTL / 3
	if every < minHeartbeatEvery {
		every = minHeartbeatEvery
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	// a round may already be waiting on a bot
	r.tick()
	for {
		select {
		case event := <-r.events:
			reply := r.handleEvent(event)
			if event.Response != nil {
				event.Response <- reply
			}
		case s, ok := <-updates:
			if !ok {
				updates = nil
				continue
			}
			r.apply(s)
		case <-ticker.C:
			r.tick()
		case <-r.done:
			r.log.Info("actor stopped")
			return
		}
	}
}

func (r *Room) handleEvent(e Event) Reply {
	r.touch()
	switch e.Type {
	case EventJoin:
		return r.handleJoin(e.Name, e.TokenHash)
	case EventStartRound:
		return Reply{Err: r.handleStartRound(e.Seat)}
	case EventMove:
		res, err := r.handleMove(e.Seat, e.Card)
		return Reply{Seat: e.Seat, Result: res, Err: err}
	case EventBotMove:
		r.handleBotMove(e.Turn, e.Card)
		return Reply{Seat: e.Seat}
	case EventHeartbeat:
		r.tick()
		return Reply{}
	default:
		return Reply{Err: fmt.Errorf("unknown event type: %d", e.Type)}
	}
}

func (r *Room) mutate(fn func(s *court.Session) error) (*court.Session, error) {
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	next, err := store.Mutate(ctx, r.store, r.Code, fn)
	if err != nil {
		return nil, err
	}
	r.apply(next)
	return next, nil
}

func (r *Room) handleJoin(name, tokenHash string) Reply {
	seat := court.NoSeat
	_, err := r.mutate(func(s *court.Session) error {
		var err error
		seat, err = s.AddPlayer(name, false, "")
		if err != nil {
			return err
		}
		s.Players[seat].TokenHash = tokenHash
		return nil
	})
	if err != nil {
		return Reply{Seat: court.NoSeat, Err: err}
	}
	r.log.WithFields(logrus.Fields{"seat": seat, "name": name}).Info("player joined")
	return Reply{Seat: seat}
}

func (r *Room) handleStartRound(actor int) error {
	var pool []court.BotSeat
	if r.npc != nil {
		pool = r.npc.BotPool()
	}
	next, err := r.mutate(func(s *court.Session) error {
		if err := s.StartRound(actor, r.rng, pool); err != nil {
			return err
		}
		// the starting process drives bots unless another lease is live
		s.ClaimDriver(r.driverID, time.Now(), r.leaseTTL)
		return nil
	})
	if err != nil {
		return err
	}
	r.log.WithFields(logrus.Fields{"round": next.Round, "turn": next.TurnSeat}).Info(next.Log)
	return nil
}

func (r *Room) handleMove(seat int, c card.Card) (*court.MoveResult, error) {
	var res *court.MoveResult
	next, err := r.mutate(func(s *court.Session) error {
		var err error
		res, err = s.SubmitMove(seat, c)
		return err
	})
	if err != nil {
		return nil, err
	}
	r.afterMove(next, res)
	return res, nil
}

func (r *Room) handleBotMove(key turnKey, c card.Card) {
	var res *court.MoveResult
	next, err := r.mutate(func(s *court.Session) error {
		if s.Phase != court.PhasePlaying || s.Round != key.round ||
			s.MoveSeq != key.moveSeq || s.TurnSeat != key.seat {
			return errStaleTurn
		}
		if !s.ClaimDriver(r.driverID, time.Now(), r.leaseTTL) {
			return errStaleTurn
		}
		var err error
		res, err = s.SubmitMove(key.seat, c)
		return err
	})
	if err != nil {
		entry := r.log.WithFields(logrus.Fields{"seat": key.seat, "move_seq": key.moveSeq})
		if errors.Is(err, errStaleTurn) {
			entry.Debug("discarded stale bot decision")
		} else {
			entry.WithError(err).Warn("bot move failed")
		}
		if errors.Is(err, store.ErrConflict) {
			// lost every retry; think again against whatever is current
			r.mu.Lock()
			if r.pendingBot == key {
				r.pendingBot = turnKey{seat: court.NoSeat}
			}
			r.mu.Unlock()
			r.maybeScheduleBot(r.Snapshot())
		}
		return
	}
	r.afterMove(next, res)
}

func (r *Room) afterMove(next *court.Session, res *court.MoveResult) {
	entry := r.log.WithFields(logrus.Fields{
		"round":    next.Round,
		"move_seq": next.MoveSeq,
		"seat":     res.Seat,
		"card":     res.Card.String(),
		"outcome":  string(res.Outcome),
	})
	entry.Debug(next.Log)
	if res.RoundOver {
		entry.WithField("loser", res.Loser).Info(next.Log)
		r.recordRound(next)
	}
}

// recordRound writes the finished round to the ledger. Only the process that
// committed the final move calls it.
func (r *Room) recordRound(s *court.Session) {
	if r.ledger == nil {
		return
	}
	result, err := ledger.ResultFromSession(s, time.Now())
	if err != nil {
		r.log.WithError(err).Warn("build round result failed")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()
	if err := r.ledger.Record(ctx, result); err != nil {
		r.log.WithError(err).WithField("round", s.Round).Warn("record round failed")
	}
}

// apply installs a committed version and fans it out. Older or repeated
// versions are ignored.
func (r *Room) apply(s *court.Session) {
	if s == nil {
		return
	}
	r.mu.Lock()
	prev := r.latest
	if prev != nil && s.Version <= prev.Version {
		r.mu.Unlock()
		return
	}
	r.latest = s
	update := Update{Session: s, Moves: movesBetween(prev, s)}
	for _, ch := range r.viewers {
		offerUpdate(ch, update)
	}
	r.mu.Unlock()

	r.maybeScheduleBot(s)
}

// movesBetween re-applies the moves committed after prev to describe them.
func movesBetween(prev, next *court.Session) []court.MoveResult {
	if prev == nil || prev.Round != next.Round || len(next.Moves) <= len(prev.Moves) {
		return nil
	}
	sim := prev.Clone()
	out := make([]court.MoveResult, 0, len(next.Moves)-len(prev.Moves))
	for _, mv := range next.Moves[len(prev.Moves):] {
		res, err := sim.SubmitMove(mv.Seat, mv.Card)
		if err != nil {
			break
		}
		out = append(out, *res)
	}
	return out
}

// maybeScheduleBot starts the think timer when a bot seat is on turn and this
// process holds the driver lease.
func (r *Room) maybeScheduleBot(s *court.Session) {
	if r.npc == nil || s == nil || s.Phase != court.PhasePlaying {
		return
	}
	p := s.Seat(s.TurnSeat)
	if p == nil || !p.Bot || !s.HasDriver(r.driverID, time.Now()) {
		return
	}
	key := turnKey{round: s.Round, moveSeq: s.MoveSeq, seat: s.TurnSeat}

	r.mu.Lock()
	if r.closed || r.pendingBot == key {
		r.mu.Unlock()
		return
	}
	r.pendingBot = key
	r.mu.Unlock()

	snapshot := s.Clone()
	delay := r.npc.ThinkDelay()
	go func() {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-r.done:
			return
		}
		c, ok := r.npc.Decide(snapshot, key.seat)
		if !ok {
			r.log.WithField("seat", key.seat).Warn("bot has no legal card")
			return
		}
		// Inject the decision back into the actor queue.
		if err := r.SubmitEvent(Event{Type: EventBotMove, Seat: key.seat, Card: c, Turn: key}); err != nil &&
			!errors.Is(err, ErrRoomClosed) {
			r.log.WithError(err).Warn("submit bot move failed")
		}
	}()
}

// tick renews or takes over the driver lease while bots still have cards.
func (r *Room) tick() {
	s := r.Snapshot()
	if s == nil || s.Phase != court.PhasePlaying || !hasPlayingBot(s) {
		return
	}
	now := time.Now()
	if s.Driver.ID != r.driverID && s.Driver.ExpiresAtMs > now.UnixMilli() {
		return
	}
	_, err := r.mutate(func(s *court.Session) error {
		if !s.ClaimDriver(r.driverID, time.Now(), r.leaseTTL) {
			return errStaleTurn
		}
		return nil
	})
	if err != nil && !errors.Is(err, errStaleTurn) {
		r.log.WithError(err).Warn("driver heartbeat failed")
	}
}

func hasPlayingBot(s *court.Session) bool {
	for i := range s.Players {
		if s.Players[i].Bot && s.Players[i].Playing() {
			return true
		}
	}
	return false
}

// SubmitEvent sends an event to the actor and waits for its reply.
func (r *Room) SubmitEvent(e Event) error {
	reply := r.submit(e)
	return reply.Err
}

func (r *Room) submit(e Event) Reply {
	if e.Response == nil {
		e.Response = make(chan Reply, 1)
	}
	if r.IsClosed() {
		return Reply{Seat: court.NoSeat, Err: ErrRoomClosed}
	}

	select {
	case r.events <- e:
	case <-r.done:
		return Reply{Seat: court.NoSeat, Err: ErrRoomClosed}
	}

	select {
	case reply := <-e.Response:
		return reply
	case <-r.done:
		return Reply{Seat: court.NoSeat, Err: ErrRoomClosed}
	}
}

// Join seats a new human player and stores the hash of their seat token.
func (r *Room) Join(name, tokenHash string) (int, error) {
	reply := r.submit(Event{Type: EventJoin, Name: name, TokenHash: tokenHash})
	return reply.Seat, reply.Err
}

// StartRound deals a new round on behalf of seat (the host).
func (r *Room) StartRound(seat int) error {
	return r.SubmitEvent(Event{Type: EventStartRound, Seat: seat})
}

func (r *Room) SubmitMove(seat int, c card.Card) (*court.MoveResult, error) {
	reply := r.submit(Event{Type: EventMove, Seat: seat, Card: c})
	return reply.Result, reply.Err
}

// Subscribe registers a viewer. The channel receives the current state first
// and is closed by Unsubscribe or Stop.
func (r *Room) Subscribe(id string) (<-chan Update, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil, ErrRoomClosed
	}
	if old, ok := r.viewers[id]; ok {
		close(old)
	}
	ch := make(chan Update, viewerBuffer)
	if r.latest != nil {
		ch <- Update{Session: r.latest}
	}
	r.viewers[id] = ch
	r.lastActive = time.Now()
	return ch, nil
}

func (r *Room) Unsubscribe(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ch, ok := r.viewers[id]; ok {
		delete(r.viewers, id)
		close(ch)
	}
	r.lastActive = time.Now()
}

// offerUpdate never blocks the actor: a full viewer queue drops its oldest
// entry. The newest update always carries the full state.
func offerUpdate(ch chan Update, u Update) {
	for {
		select {
		case ch <- u:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
	}
}

// Snapshot returns a copy of the latest committed session.
func (r *Room) Snapshot() *court.Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.latest == nil {
		return nil
	}
	return r.latest.Clone()
}

func (r *Room) DriverID() string { return r.driverID }

func (r *Room) ViewerCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.viewers)
}

func (r *Room) touch() {
	r.mu.Lock()
	r.lastActive = time.Now()
	r.mu.Unlock()
}

// IsIdleFor reports whether the room has had no viewers and no commands for
// at least ttl.
func (r *Room) IsIdleFor(ttl time.Duration) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return true
	}
	if len(r.viewers) > 0 {
		return false
	}
	return time.Since(r.lastActive) >= ttl
}

func (r *Room) IsClosed() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.closed
}

// Stop shuts the actor down, hands the driver lease back and closes every
// viewer channel.
func (r *Room) Stop() {
	r.stopOnce.Do(func() {
		r.mu.Lock()
		r.closed = true
		for id, ch := range r.viewers {
			delete(r.viewers, id)
			close(ch)
		}
		r.mu.Unlock()
		close(r.done)
		r.cancel()

		ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
		defer cancel()
		_, err := store.Mutate(ctx, r.store, r.Code, func(s *court.Session) error {
			if !s.ReleaseDriver(r.driverID) {
				return errStaleTurn
			}
			return nil
		})
		if err != nil && !errors.Is(err, errStaleTurn) && !errors.Is(err, store.ErrNotFound) &&
			!errors.Is(err, store.ErrClosed) {
			r.log.WithError(err).Warn("release driver lease failed")
		}
	})
}
