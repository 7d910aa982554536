package npc

import (
	"royalcourt/card"
	"royalcourt/court"
)

// GameView is a read-only projection of the session visible to one bot seat.
type GameView struct {
	Seat        int
	Hand        card.CardList
	Leading     bool
	LeadSuit    *card.Suit
	Mandatory   *card.Card
	PileSize    int
	ActiveCount int
	Legal       card.CardList
}

// Decision is what a BrainDecider returns.
type Decision struct {
	Card card.Card
}

// BrainDecider is the core interface all NPC types implement.
type BrainDecider interface {
	// Decide is called when it's the NPC's turn.
	Decide(view GameView) Decision
	// Name returns a human-readable identifier for debugging.
	Name() string
}

// ViewFor builds the view of seat from a session record.
func ViewFor(s *court.Session, seat int) GameView {
	v := GameView{
		Seat:        seat,
		Leading:     s.Leading(),
		PileSize:    len(s.Pile),
		ActiveCount: s.ActiveCount(),
		Legal:       s.LegalCards(seat),
	}
	if p := s.Seat(seat); p != nil {
		v.Hand = p.Hand.Clone()
	}
	if s.LeadSuit != nil {
		suit := *s.LeadSuit
		v.LeadSuit = &suit
	}
	if s.Mandatory != nil {
		m := *s.Mandatory
		v.Mandatory = &m
	}
	return v
}
