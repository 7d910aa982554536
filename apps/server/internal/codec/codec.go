package codec

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"royalcourt/card"
	"royalcourt/court"
)

// Client message types.
const (
	TypeCreateRoom   = "create_room"
	TypeJoinRoom     = "join_room"
	TypeResume       = "resume"
	TypeStartRound   = "start_round"
	TypePlayCard     = "play_card"
	TypeRequestState = "request_state"
)

// Server message types.
const (
	TypeJoined = "joined"
	TypeState  = "state"
	TypeEvent  = "event"
	TypeError  = "error"
)

// ClientEnvelope is every message a client may send. Only the fields of the
// given Type are read.
type ClientEnvelope struct {
	Type string `json:"type"`

	// create_room / join_room
	Name          string `json:"name,omitempty"`
	TargetPlayers int    `json:"targetPlayers,omitempty"`
	FillWithBots  bool   `json:"fillWithBots,omitempty"`

	// join_room / resume
	Code  string `json:"code,omitempty"`
	Seat  *int   `json:"seat,omitempty"`
	Token string `json:"token,omitempty"`

	// play_card
	Card     string `json:"card,omitempty"`
	ActionID string `json:"actionId,omitempty"`
}

// DecodeClient parses one client frame.
func DecodeClient(data []byte) (ClientEnvelope, error) {
	var env ClientEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return ClientEnvelope{}, fmt.Errorf("invalid message format: %w", err)
	}
	env.Type = strings.TrimSpace(env.Type)
	if env.Type == "" {
		return ClientEnvelope{}, fmt.Errorf("missing message type")
	}
	return env, nil
}

// ServerEnvelope wraps every server message. Exactly one payload is set.
type ServerEnvelope struct {
	Type       string `json:"type"`
	RoomCode   string `json:"code,omitempty"`
	ServerSeq  uint64 `json:"seq"`
	ServerTsMs int64  `json:"ts"`

	Joined *Joined     `json:"joined,omitempty"`
	State  *StateView  `json:"state,omitempty"`
	Event  *EventView  `json:"event,omitempty"`
	Error  *ErrorReply `json:"error,omitempty"`
}

type Joined struct {
	Code  string `json:"code"`
	Seat  int    `json:"seat"`
	Token string `json:"token,omitempty"`
}

type ErrorReply struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Retryable bool   `json:"retryable"`
	ActionID  string `json:"actionId,omitempty"`
}

// StateView is the session as one seat may see it: other seats' hands are
// reduced to a count and token hashes never leave the server.
type StateView struct {
	Code          string         `json:"code"`
	Version       uint64         `json:"version"`
	Phase         court.Phase    `json:"phase"`
	Round         int            `json:"round"`
	MoveSeq       int            `json:"moveSeq"`
	HostSeat      int            `json:"hostSeat"`
	TargetPlayers int            `json:"targetPlayers"`
	FillWithBots  bool           `json:"fillWithBots"`
	YouSeat       int            `json:"youSeat"`
	Players       []PlayerView   `json:"players"`
	Pile          []court.Play   `json:"pile"`
	LeadSuit      *card.Suit     `json:"leadSuit,omitempty"`
	TrickSize     int            `json:"trickSize"`
	Mandatory     *card.Card     `json:"mandatoryCard,omitempty"`
	BurntCount    int            `json:"burntCount"`
	DiscardCount  int            `json:"discardCount"`
	TurnSeat      int            `json:"turnSeat"`
	SafeOrder     []int          `json:"safeOrder"`
	Loser         *int           `json:"loser,omitempty"`
	Scores        map[string]int `json:"scores"`
	LegalCards    []card.Card    `json:"legalCards"`
	Log           string         `json:"log"`
}

type PlayerView struct {
	Seat      int          `json:"seat"`
	Name      string       `json:"name"`
	Bot       bool         `json:"bot"`
	Status    court.Status `json:"status"`
	CardCount int          `json:"cardCount"`
	Hand      []card.Card  `json:"hand,omitempty"`
}

// ViewFor projects s for viewer seat. court.NoSeat gives a spectator view.
func ViewFor(s *court.Session, seat int) *StateView {
	v := &StateView{
		Code:          s.Code,
		Version:       s.Version,
		Phase:         s.Phase,
		Round:         s.Round,
		MoveSeq:       s.MoveSeq,
		HostSeat:      s.HostSeat,
		TargetPlayers: s.TargetPlayers,
		FillWithBots:  s.FillWithBots,
		YouSeat:       seat,
		Players:       make([]PlayerView, 0, len(s.Players)),
		Pile:          append([]court.Play{}, s.Pile...),
		TrickSize:     s.TrickSize,
		BurntCount:    len(s.Burnt),
		DiscardCount:  len(s.Discard),
		TurnSeat:      s.TurnSeat,
		SafeOrder:     append([]int{}, s.SafeOrder...),
		Scores:        make(map[string]int, len(s.Scores)),
		LegalCards:    []card.Card{},
		Log:           s.Log,
	}
	for _, p := range s.Players {
		pv := PlayerView{
			Seat:      p.Seat,
			Name:      p.Name,
			Bot:       p.Bot,
			Status:    p.Status,
			CardCount: len(p.Hand),
		}
		if p.Seat == seat {
			pv.Hand = append([]card.Card{}, p.Hand...)
		}
		v.Players = append(v.Players, pv)
	}
	if s.LeadSuit != nil {
		suit := *s.LeadSuit
		v.LeadSuit = &suit
	}
	if s.Mandatory != nil {
		m := *s.Mandatory
		v.Mandatory = &m
	}
	if s.Loser != nil {
		loser := *s.Loser
		v.Loser = &loser
	}
	for name, score := range s.Scores {
		v.Scores[name] = score
	}
	if legal := s.LegalCards(seat); len(legal) > 0 {
		v.LegalCards = append(v.LegalCards, legal...)
	}
	return v
}

// Event kinds.
const (
	EventCut       = "cut"
	EventClear     = "clear"
	EventSafe      = "safe"
	EventRoundOver = "round_over"
)

// EventView announces a notable outcome of one accepted move.
type EventView struct {
	Kind      string    `json:"kind"`
	Seat      int       `json:"seat"`
	Card      card.Card `json:"card"`
	Victim    *int      `json:"victim,omitempty"`
	Winner    *int      `json:"winner,omitempty"`
	Loser     *int      `json:"loser,omitempty"`
	ReEntered bool      `json:"reEntered,omitempty"`
}

// EventsFor lists the notable outcomes of res in the order they happened.
// A plain follow produces no events.
func EventsFor(res court.MoveResult) []EventView {
	out := make([]EventView, 0, 2)
	base := EventView{Seat: res.Seat, Card: res.Card}
	if res.BecameSafe {
		e := base
		e.Kind = EventSafe
		out = append(out, e)
	}
	switch res.Outcome {
	case court.OutcomeCut:
		e := base
		e.Kind = EventCut
		e.Victim = seatPtr(res.Victim)
		e.ReEntered = res.ReEntered
		out = append(out, e)
	case court.OutcomeClear:
		e := base
		e.Kind = EventClear
		e.Winner = seatPtr(res.Winner)
		out = append(out, e)
	}
	if res.RoundOver {
		e := base
		e.Kind = EventRoundOver
		e.Loser = seatPtr(res.Loser)
		out = append(out, e)
	}
	return out
}

func seatPtr(seat int) *int {
	if seat == court.NoSeat {
		return nil
	}
	return &seat
}

// Encode stamps env and marshals it for the wire.
func Encode(env *ServerEnvelope, seq uint64) ([]byte, error) {
	env.ServerSeq = seq
	env.ServerTsMs = time.Now().UnixMilli()
	return json.Marshal(env)
}

// ErrorFor maps err to the wire error body. Rule rejections keep their stable
// code; version conflicts are retryable.
func ErrorFor(err error, retryable bool) *ErrorReply {
	code := court.ErrorCode(err)
	if code == "" {
		code = "Internal"
	}
	return &ErrorReply{Code: code, Message: err.Error(), Retryable: retryable}
}
