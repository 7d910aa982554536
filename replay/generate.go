package replay

import (
	"errors"
	"fmt"

	"royalcourt/court"
)

// GenerateTape re-runs a round through the engine and records every step.
// The first rejected move stops generation with a *ReplayError.
func GenerateTape(spec RoundSpec) (*ReplayTape, error) {
	ns, err := normalizeSpec(spec)
	if err != nil {
		return nil, err
	}

	s, err := court.NewSessionFromDeal(ns.code, ns.seats, ns.burnt)
	if err != nil {
		return nil, &ReplayError{StepIndex: -1, Reason: "invalid_deal", Message: err.Error()}
	}

	builder := newTapeBuilder(ns.hero)
	builder.addDeal(s)
	builder.addPrompt(s)

	for stepIdx, mv := range ns.moves {
		if s.Phase != court.PhasePlaying {
			return nil, &ReplayError{
				StepIndex: stepIdx,
				Reason:    "no_action_expected",
				Message:   "round is already complete; no further moves are allowed",
				Expected:  expectedState(s),
			}
		}
		res, err := s.SubmitMove(mv.seat, mv.card)
		if err != nil {
			return nil, &ReplayError{
				StepIndex: stepIdx,
				Reason:    reasonFor(err),
				Message:   fmt.Sprintf("seat %d playing %s: %v", mv.seat, mv.card, err),
				Expected:  expectedState(s),
			}
		}
		builder.addMove(s, res)
		if !res.RoundOver {
			builder.addPrompt(s)
		}
	}

	return &ReplayTape{
		TapeVersion: 1,
		RoomCode:    ns.code,
		HeroSeat:    ns.hero,
		Events:      builder.events,
		Result: RoundResult{
			Finished:  s.Phase == court.PhaseFinished,
			Loser:     s.Loser,
			SafeOrder: append([]int{}, s.SafeOrder...),
			Scores:    s.Scores,
		},
	}, nil
}

func reasonFor(err error) string {
	switch {
	case errors.Is(err, court.ErrNotYourTurn), errors.Is(err, court.ErrInvalidSeat):
		return "out_of_turn"
	case errors.Is(err, court.ErrMustPlayMandatory):
		return "must_play_mandatory"
	case errors.Is(err, court.ErrMustFollowSuit):
		return "must_follow_suit"
	case errors.Is(err, court.ErrCardNotHeld):
		return "card_not_held"
	default:
		return "move_apply_failed"
	}
}

func expectedState(s *court.Session) *ExpectedState {
	exp := &ExpectedState{
		TurnSeat:   s.TurnSeat,
		LegalCards: s.LegalCards(s.TurnSeat).Codes(),
		Phase:      string(s.Phase),
	}
	if s.Mandatory != nil {
		exp.Mandatory = s.Mandatory.Code()
	}
	if s.LeadSuit != nil {
		exp.LeadSuit = s.LeadSuit.Letter()
	}
	return exp
}

type tapeBuilder struct {
	hero   int
	seq    uint64
	events []ReplayEvent
}

func newTapeBuilder(hero int) *tapeBuilder {
	return &tapeBuilder{
		hero:   hero,
		events: make([]ReplayEvent, 0, 128),
	}
}

func (b *tapeBuilder) addDeal(s *court.Session) {
	e := ReplayEvent{Type: "deal", Seat: s.TurnSeat, Log: s.Log}
	if s.Mandatory != nil {
		e.Card = s.Mandatory.Code()
	}
	if p := s.Seat(b.hero); p != nil {
		e.Cards = p.Hand.Codes()
	}
	b.push(e)
}

func (b *tapeBuilder) addPrompt(s *court.Session) {
	e := ReplayEvent{Type: "prompt", Seat: s.TurnSeat}
	// legal cards are only shown to the hero
	if s.TurnSeat == b.hero {
		e.Cards = s.LegalCards(s.TurnSeat).Codes()
	}
	b.push(e)
}

func (b *tapeBuilder) addMove(s *court.Session, res *court.MoveResult) {
	b.push(ReplayEvent{Type: "play", Seat: res.Seat, Card: res.Card.Code()})
	if res.BecameSafe {
		b.push(ReplayEvent{Type: "safe", Seat: res.Seat})
	}
	switch res.Outcome {
	case court.OutcomeCut:
		e := ReplayEvent{Type: "cut", Seat: res.Victim, Log: s.Log}
		if res.Victim == b.hero {
			e.Cards = s.Players[res.Victim].Hand.Codes()
		}
		b.push(e)
		if res.ReEntered {
			b.push(ReplayEvent{Type: "reenter", Seat: res.Victim})
		}
	case court.OutcomeClear:
		b.push(ReplayEvent{Type: "clear", Seat: res.Winner, Log: s.Log})
	}
	if res.RoundOver {
		b.push(ReplayEvent{Type: "roundEnd", Seat: res.Loser, Log: s.Log})
	}
}

func (b *tapeBuilder) push(e ReplayEvent) {
	b.seq++
	e.Seq = b.seq
	b.events = append(b.events, e)
}

