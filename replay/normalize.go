package replay

import (
	"fmt"
	"sort"
	"strings"

	"royalcourt/card"
	"royalcourt/court"
)

type normalizedMove struct {
	seat int
	card card.Card
}

type normalizedSpec struct {
	code  string
	hero  int
	seats []court.SeatDeal
	burnt card.CardList
	moves []normalizedMove
}

const defaultRoomCode = "replay_local"

func normalizeSpec(spec RoundSpec) (normalizedSpec, error) {
	var out normalizedSpec
	out.code = strings.TrimSpace(spec.Code)
	if out.code == "" {
		out.code = defaultRoomCode
	}

	n := len(spec.Seats)
	if n < court.MinSeats || n > court.MaxSeats {
		return out, &ReplayError{StepIndex: -1, Reason: "invalid_seats", Message: fmt.Sprintf("need %d or %d seats, got %d", court.MinSeats, court.MaxSeats, n)}
	}

	seats := append([]SeatSpec(nil), spec.Seats...)
	sort.SliceStable(seats, func(i, j int) bool { return seats[i].Seat < seats[j].Seat })
	handSize, burntSize := court.HandSize(n)
	seenName := make(map[string]struct{}, n)
	for i, seat := range seats {
		if seat.Seat != i {
			return out, &ReplayError{StepIndex: -1, Reason: "invalid_seat", Message: fmt.Sprintf("seats must be numbered 0..%d, found %d", n-1, seat.Seat)}
		}
		name := strings.TrimSpace(seat.Name)
		if name == "" {
			name = fmt.Sprintf("P%d", seat.Seat)
		}
		key := strings.ToLower(name)
		if _, dup := seenName[key]; dup {
			return out, &ReplayError{StepIndex: -1, Reason: "duplicate_name", Message: fmt.Sprintf("duplicate name %q", name)}
		}
		seenName[key] = struct{}{}

		hand, err := card.ParseList(seat.Hand)
		if err != nil {
			return out, &ReplayError{StepIndex: -1, Reason: "invalid_hand", Message: fmt.Sprintf("seat %d: %v", i, err)}
		}
		if len(hand) != handSize {
			return out, &ReplayError{StepIndex: -1, Reason: "invalid_hand_size", Message: fmt.Sprintf("seat %d has %d cards, want %d", i, len(hand), handSize)}
		}
		out.seats = append(out.seats, court.SeatDeal{Name: name, Bot: seat.Bot, Hand: hand})
	}

	burnt, err := card.ParseList(spec.Burnt)
	if err != nil {
		return out, &ReplayError{StepIndex: -1, Reason: "invalid_burnt", Message: err.Error()}
	}
	if len(burnt) != burntSize {
		return out, &ReplayError{StepIndex: -1, Reason: "invalid_burnt", Message: fmt.Sprintf("%d burnt cards, want %d", len(burnt), burntSize)}
	}
	out.burnt = burnt

	if spec.HeroSeat < 0 || spec.HeroSeat >= n {
		return out, &ReplayError{StepIndex: -1, Reason: "invalid_hero", Message: "hero_seat out of range"}
	}
	out.hero = spec.HeroSeat

	for i, mv := range spec.Moves {
		c, err := card.Parse(mv.Card)
		if err != nil {
			return out, &ReplayError{StepIndex: i, Reason: "invalid_card", Message: err.Error()}
		}
		out.moves = append(out.moves, normalizedMove{seat: mv.Seat, card: c})
	}
	return out, nil
}

// SpecFromSession captures the current round of s as a RoundSpec. The session
// must have been dealt.
func SpecFromSession(s *court.Session) (RoundSpec, error) {
	if s == nil || s.Opening == nil {
		return RoundSpec{}, fmt.Errorf("session has no dealt round")
	}
	spec := RoundSpec{
		Code:  s.Code,
		Round: s.Round,
		Burnt: s.Opening.Burnt.Codes(),
		Moves: make([]MoveSpec, 0, len(s.Moves)),
	}
	for i := range s.Players {
		p := s.Players[i]
		var hand []string
		if i < len(s.Opening.Hands) {
			hand = s.Opening.Hands[i].Codes()
		}
		spec.Seats = append(spec.Seats, SeatSpec{Seat: p.Seat, Name: p.Name, Bot: p.Bot, Hand: hand})
	}
	for _, mv := range s.Moves {
		spec.Moves = append(spec.Moves, MoveSpec{Seat: mv.Seat, Card: mv.Card.Code()})
	}
	return spec, nil
}
