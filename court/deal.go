package court

import (
	"fmt"
	"math/rand"
	"strings"

	"royalcourt/card"
)

// BotSeat is a candidate bot used to fill empty seats.
type BotSeat struct {
	Name    string
	Persona string
}

// SeatDeal is one seat of a prepared deal.
type SeatDeal struct {
	Name string
	Bot  bool
	Hand card.CardList
}

// StartRound checks the roster, fills bots when allowed, shuffles a fresh
// deck and deals it. pool supplies bot names in order; exhausted or taken
// names fall back to "Bot N".
func (s *Session) StartRound(actor int, rng *rand.Rand, pool []BotSeat) error {
	if s.Phase == PhasePlaying {
		return ErrRoundInProgress
	}
	if actor != s.HostSeat {
		return ErrNotHost
	}
	humans := s.HumanCount()
	if s.FillWithBots {
		if humans < 1 {
			return ErrInsufficientPlayers
		}
	} else if humans < 2 || len(s.Players) < s.TargetPlayers {
		return ErrInsufficientPlayers
	}

	s.fillBots(pool)
	deck := card.NewDeck()
	deck.Shuffle(rng)
	return s.DealFrom(deck)
}

func (s *Session) fillBots(pool []BotSeat) {
	next := 0
	for n := 1; len(s.Players) < s.TargetPlayers; {
		var b BotSeat
		for next < len(pool) && b.Name == "" {
			if s.SeatByName(pool[next].Name) == NoSeat {
				b = pool[next]
			}
			next++
		}
		for b.Name == "" {
			name := fmt.Sprintf("Bot %d", n)
			n++
			if s.SeatByName(name) == NoSeat {
				b = BotSeat{Name: name}
			}
		}
		// phase is still lobby here so AddPlayer only fails on programmer error
		if _, err := s.AddPlayer(b.Name, true, b.Persona); err != nil {
			panic(err)
		}
	}
}

// DealFrom deals an already ordered deck: consecutive chunks of 52/n cards per
// seat, the remainder burnt. The same deck always produces the same session.
func (s *Session) DealFrom(deck card.CardList) error {
	n := len(s.Players)
	if n != s.TargetPlayers || n < MinSeats || n > MaxSeats {
		return ErrInsufficientPlayers
	}
	if len(deck) != 52 {
		return ErrInvalidState(fmt.Sprintf("deck has %d cards", len(deck)))
	}
	size, _ := HandSize(n)
	rest := deck.Clone()
	hands := make([]card.CardList, n)
	for i := 0; i < n; i++ {
		cards, _ := rest.PopCards(size)
		hands[i] = cards
	}
	return s.dealHands(hands, rest)
}

// NewSessionFromDeal builds a session that is already playing the given deal.
// Seat 0 is the host.
func NewSessionFromDeal(code string, seats []SeatDeal, burnt card.CardList) (*Session, error) {
	s, err := NewSession(code, firstName(seats), Config{TargetPlayers: len(seats)})
	if err != nil {
		return nil, err
	}
	s.Players[0].Bot = seats[0].Bot
	for _, sd := range seats[1:] {
		if _, err := s.AddPlayer(sd.Name, sd.Bot, ""); err != nil {
			return nil, fmt.Errorf("seat %q: %w", sd.Name, err)
		}
	}
	hands := make([]card.CardList, len(seats))
	for i, sd := range seats {
		hands[i] = sd.Hand
	}
	if err := s.dealHands(hands, burnt); err != nil {
		return nil, err
	}
	return s, nil
}

func firstName(seats []SeatDeal) string {
	if len(seats) == 0 {
		return ""
	}
	return seats[0].Name
}

func (s *Session) dealHands(hands []card.CardList, burnt card.CardList) error {
	if len(hands) != len(s.Players) {
		return ErrInvalidState("hand count does not match seats")
	}
	next := s.Clone()
	for i := range next.Players {
		h := hands[i].Clone()
		card.SortHand(h)
		next.Players[i].Hand = h
		next.Players[i].Status = StatusPlaying
	}
	next.Burnt = burnt.Clone()
	card.SortHand(next.Burnt)
	next.Discard = nil
	next.Pile = nil
	next.LeadSuit = nil
	next.TrickSize = 0
	next.SafeOrder = nil
	next.Loser = nil
	next.Moves = nil
	next.MoveSeq = 0
	next.Phase = PhasePlaying
	if err := next.CheckConservation(); err != nil {
		return err
	}

	mandatory, holder, passed := next.findMandatory()
	if holder == NoSeat {
		return ErrInvalidState("no spade held by any player")
	}
	next.Mandatory = &mandatory
	next.TurnSeat = holder
	next.Round++
	next.Opening = &Opening{Burnt: next.Burnt.Clone()}
	for i := range next.Players {
		next.Opening.Hands = append(next.Opening.Hands, next.Players[i].Hand.Clone())
	}
	for i := range next.Players {
		if _, ok := next.Scores[next.Players[i].Name]; !ok {
			next.Scores[next.Players[i].Name] = 0
		}
	}

	holderName := next.Players[holder].Name
	if len(passed) == 0 {
		next.Log = fmt.Sprintf("%s has the %s and leads.", holderName, mandatory)
	} else {
		verb := "is"
		if len(passed) > 1 {
			verb = "are"
		}
		next.Log = fmt.Sprintf("%s %s burnt. %s has the %s.", strings.Join(passed, " and "), verb, holderName, mandatory)
	}
	*s = *next
	return nil
}

// findMandatory scans spades from A down and returns the first one held,
// its holder and the higher spades that were skipped because they are burnt.
func (s *Session) findMandatory() (card.Card, int, []string) {
	var passed []string
	for r := card.RankA; r >= card.RankMin; r-- {
		c := card.New(card.Spade, r)
		for i := range s.Players {
			if s.Players[i].Hand.Contains(c) {
				return c, i, passed
			}
		}
		passed = append(passed, c.String())
	}
	return card.CardInvalid, NoSeat, passed
}
