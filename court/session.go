package court

import (
	"fmt"
	"strings"
	"time"

	"royalcourt/card"
)

// NewSession creates a lobby with the host in seat 0.
func NewSession(code, hostName string, cfg Config) (*Session, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	s := &Session{
		Code:          code,
		HostSeat:      0,
		TargetPlayers: cfg.TargetPlayers,
		FillWithBots:  cfg.FillWithBots,
		Phase:         PhaseLobby,
		TurnSeat:      NoSeat,
		Scores:        make(map[string]int),
	}
	if _, err := s.AddPlayer(hostName, false, ""); err != nil {
		return nil, err
	}
	s.Log = "Waiting for players..."
	return s, nil
}

// AddPlayer seats a new player at the next free seat.
func (s *Session) AddPlayer(name string, bot bool, persona string) (int, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return NoSeat, ErrNameRequired
	}
	if s.Phase != PhaseLobby {
		return NoSeat, ErrAlreadyStarted
	}
	if len(s.Players) >= s.TargetPlayers {
		return NoSeat, ErrRoomFull
	}
	if s.SeatByName(name) != NoSeat {
		return NoSeat, ErrNameTaken
	}
	seat := len(s.Players)
	s.Players = append(s.Players, Player{
		Seat:    seat,
		Name:    name,
		Bot:     bot,
		Persona: persona,
		Status:  StatusPlaying,
	})
	if s.Scores == nil {
		s.Scores = make(map[string]int)
	}
	if _, ok := s.Scores[name]; !ok {
		s.Scores[name] = 0
	}
	s.Log = fmt.Sprintf("%s joined.", name)
	return seat, nil
}

func (s *Session) Seat(seat int) *Player {
	if seat < 0 || seat >= len(s.Players) {
		return nil
	}
	return &s.Players[seat]
}

func (s *Session) SeatByName(name string) int {
	for i := range s.Players {
		if strings.EqualFold(s.Players[i].Name, name) {
			return i
		}
	}
	return NoSeat
}

// HumanCount counts seats not controlled by a bot.
func (s *Session) HumanCount() int {
	n := 0
	for i := range s.Players {
		if !s.Players[i].Bot {
			n++
		}
	}
	return n
}

// ActiveCount counts players still in the playing status.
func (s *Session) ActiveCount() int {
	n := 0
	for i := range s.Players {
		if s.Players[i].Playing() {
			n++
		}
	}
	return n
}

// nextPlayingSeat walks the seat ring once starting after from and returns
// the first seat still playing, or NoSeat.
func (s *Session) nextPlayingSeat(from int) int {
	n := len(s.Players)
	for i := 1; i <= n; i++ {
		seat := ((from+i)%n + n) % n
		if s.Players[seat].Playing() {
			return seat
		}
	}
	return NoSeat
}

// Clone returns a deep copy. Callers mutate clones, never stored records.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.Players = make([]Player, len(s.Players))
	for i, p := range s.Players {
		p.Hand = p.Hand.Clone()
		c.Players[i] = p
	}
	c.Pile = clonePlays(s.Pile)
	c.Moves = clonePlays(s.Moves)
	if s.LeadSuit != nil {
		v := *s.LeadSuit
		c.LeadSuit = &v
	}
	if s.Mandatory != nil {
		v := *s.Mandatory
		c.Mandatory = &v
	}
	if s.Loser != nil {
		v := *s.Loser
		c.Loser = &v
	}
	c.Burnt = s.Burnt.Clone()
	c.Discard = s.Discard.Clone()
	if s.Scores != nil {
		c.Scores = make(map[string]int, len(s.Scores))
		for k, v := range s.Scores {
			c.Scores[k] = v
		}
	}
	if s.SafeOrder != nil {
		c.SafeOrder = append([]int(nil), s.SafeOrder...)
	}
	if s.Opening != nil {
		o := &Opening{Burnt: s.Opening.Burnt.Clone()}
		for _, h := range s.Opening.Hands {
			o.Hands = append(o.Hands, h.Clone())
		}
		c.Opening = o
	}
	return &c
}

func clonePlays(in []Play) []Play {
	if in == nil {
		return nil
	}
	return append([]Play(nil), in...)
}

// CheckConservation verifies that hands, pile, burnt and cleared cards
// together hold each of the 52 cards exactly once.
func (s *Session) CheckConservation() error {
	if s.Phase == PhaseLobby {
		return nil
	}
	var seen [256]bool
	total := 0
	mark := func(where string, c card.Card) error {
		if !c.Valid() {
			return ErrInvalidState(fmt.Sprintf("invalid card 0x%02x in %s", byte(c), where))
		}
		if seen[c] {
			return ErrInvalidState(fmt.Sprintf("duplicate card %s in %s", c, where))
		}
		seen[c] = true
		total++
		return nil
	}
	for i := range s.Players {
		for _, c := range s.Players[i].Hand {
			if err := mark(fmt.Sprintf("seat %d hand", i), c); err != nil {
				return err
			}
		}
	}
	for _, p := range s.Pile {
		if err := mark("pile", p.Card); err != nil {
			return err
		}
	}
	for _, c := range s.Burnt {
		if err := mark("burnt", c); err != nil {
			return err
		}
	}
	for _, c := range s.Discard {
		if err := mark("discard", c); err != nil {
			return err
		}
	}
	if total != 52 {
		return ErrInvalidState(fmt.Sprintf("card count %d != 52", total))
	}
	return nil
}

// ClaimDriver takes or renews the bot-driver lease for id. It fails only when
// another driver holds an unexpired lease.
func (s *Session) ClaimDriver(id string, now time.Time, ttl time.Duration) bool {
	nowMs := now.UnixMilli()
	if s.Driver.ID != "" && s.Driver.ID != id && s.Driver.ExpiresAtMs > nowMs {
		return false
	}
	s.Driver = DriverLease{ID: id, ExpiresAtMs: now.Add(ttl).UnixMilli()}
	return true
}

// ReleaseDriver drops the lease if id holds it.
func (s *Session) ReleaseDriver(id string) bool {
	if s.Driver.ID != id {
		return false
	}
	s.Driver = DriverLease{}
	return true
}

// HasDriver reports whether id holds an unexpired lease at now.
func (s *Session) HasDriver(id string, now time.Time) bool {
	return s.Driver.ID == id && s.Driver.ExpiresAtMs > now.UnixMilli()
}
