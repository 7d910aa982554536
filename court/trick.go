package court

import (
	"fmt"

	"royalcourt/card"
)

// LegalCards is a pure projection of the cards seat may play right now.
func (s *Session) LegalCards(seat int) card.CardList {
	if s.Phase != PhasePlaying || seat != s.TurnSeat {
		return nil
	}
	p := s.Seat(seat)
	if p == nil || !p.Playing() {
		return nil
	}
	if s.Mandatory != nil {
		if p.Hand.Contains(*s.Mandatory) {
			return card.CardList{*s.Mandatory}
		}
		return nil
	}
	if len(s.Pile) > 0 && s.LeadSuit != nil && p.Hand.HasSuit(*s.LeadSuit) {
		return p.Hand.OfSuit(*s.LeadSuit)
	}
	return p.Hand.Clone()
}

// Leading reports whether the next card starts a new trick.
func (s *Session) Leading() bool { return len(s.Pile) == 0 }

func (s *Session) validateMove(seat int, c card.Card) error {
	if s.Phase != PhasePlaying {
		return ErrRoundNotActive
	}
	p := s.Seat(seat)
	if p == nil {
		return ErrInvalidSeat
	}
	if seat != s.TurnSeat {
		return ErrNotYourTurn
	}
	if s.Mandatory != nil && c != *s.Mandatory {
		return ErrMustPlayMandatory
	}
	if !p.Hand.Contains(c) {
		return ErrCardNotHeld
	}
	if len(s.Pile) > 0 && s.LeadSuit != nil && c.Suit() != *s.LeadSuit && p.Hand.HasSuit(*s.LeadSuit) {
		return ErrMustFollowSuit
	}
	return nil
}

// SubmitMove validates and applies one card. On error the session is left
// untouched.
func (s *Session) SubmitMove(seat int, c card.Card) (*MoveResult, error) {
	if err := s.validateMove(seat, c); err != nil {
		return nil, err
	}

	p := &s.Players[seat]
	leading := s.Leading()
	if leading {
		// snapshot before this card can make the leader safe
		s.TrickSize = s.ActiveCount()
		suit := c.Suit()
		s.LeadSuit = &suit
	}

	p.Hand.Remove(c)
	s.Pile = append(s.Pile, Play{Seat: seat, Card: c})
	s.Moves = append(s.Moves, Play{Seat: seat, Card: c})
	s.Mandatory = nil
	s.MoveSeq++

	res := &MoveResult{
		Seat:    seat,
		Card:    c,
		Outcome: OutcomeContinue,
		Victim:  NoSeat,
		Winner:  NoSeat,
		Loser:   NoSeat,
	}
	s.Log = fmt.Sprintf("%s played %s.", p.Name, c)

	if len(p.Hand) == 0 {
		s.markSafe(seat)
		res.BecameSafe = true
		s.Log = fmt.Sprintf("%s is safe!", p.Name)
	}

	switch {
	case !leading && c.Suit() != *s.LeadSuit:
		s.resolveCut(res)
	case len(s.Pile) >= s.TrickSize:
		s.resolveClear(res)
	default:
		s.TurnSeat = s.nextPlayingSeat(seat)
		return res, nil
	}
	s.checkRoundOver(res)
	return res, nil
}

func (s *Session) markSafe(seat int) {
	s.Players[seat].Status = StatusSafe
	s.SafeOrder = append(s.SafeOrder, seat)
}

// trickHigh returns the seat that contributed the highest lead-suit card.
func (s *Session) trickHigh() int {
	best := NoSeat
	var bestRank card.Rank
	for _, pl := range s.Pile {
		if pl.Card.Suit() != *s.LeadSuit {
			continue
		}
		if best == NoSeat || pl.Card.Rank() > bestRank {
			best, bestRank = pl.Seat, pl.Card.Rank()
		}
	}
	return best
}

func (s *Session) resetTrick() {
	s.Pile = nil
	s.LeadSuit = nil
	s.TrickSize = 0
}

func (s *Session) resolveCut(res *MoveResult) {
	victim := s.trickHigh()
	vp := &s.Players[victim]
	for _, pl := range s.Pile {
		vp.Hand = append(vp.Hand, pl.Card)
	}
	card.SortHand(vp.Hand)
	if !vp.Playing() {
		vp.Status = StatusPlaying
		s.SafeOrder = removeSeat(s.SafeOrder, victim)
		res.ReEntered = true
	}
	s.resetTrick()
	s.TurnSeat = victim

	res.Outcome = OutcomeCut
	res.Victim = victim
	s.Log = fmt.Sprintf("%s cuts! %s picks up.", s.Players[res.Seat].Name, vp.Name)
}

func (s *Session) resolveClear(res *MoveResult) {
	winner := s.trickHigh()
	for _, pl := range s.Pile {
		s.Discard = append(s.Discard, pl.Card)
	}
	s.resetTrick()

	wp := &s.Players[winner]
	if wp.Playing() {
		s.TurnSeat = winner
		s.Log = fmt.Sprintf("%s cleared the trick.", wp.Name)
	} else {
		s.TurnSeat = s.nextPlayingSeat(winner)
		s.Log = fmt.Sprintf("%s cleared and is safe! Lead passes.", wp.Name)
	}
	res.Outcome = OutcomeClear
	res.Winner = winner
}

func (s *Session) checkRoundOver(res *MoveResult) {
	if s.ActiveCount() > 1 {
		return
	}
	s.Phase = PhaseFinished
	s.Mandatory = nil
	res.RoundOver = true

	loser := s.nextPlayingSeat(NoSeat)
	if loser == NoSeat {
		s.Loser = nil
		s.TurnSeat = NoSeat
		s.Log = "Round over. Everyone is safe."
		return
	}
	name := s.Players[loser].Name
	if s.Scores == nil {
		s.Scores = make(map[string]int)
	}
	s.Scores[name]++
	s.Loser = &loser
	s.TurnSeat = loser
	res.Loser = loser
	s.Log = fmt.Sprintf("Round over. %s loses.", name)
}

func removeSeat(seats []int, seat int) []int {
	out := seats[:0:0]
	for _, v := range seats {
		if v != seat {
			out = append(out, v)
		}
	}
	return out
}
