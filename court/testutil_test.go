package court

import (
	"testing"

	"royalcourt/card"
)

func hand(t *testing.T, codes ...string) card.CardList {
	t.Helper()
	cards, err := card.ParseList(codes)
	if err != nil {
		t.Fatalf("parse %v: %v", codes, err)
	}
	return cards
}

// midRound builds a playing session with the given hands, seat 0 to act and
// no mandatory card. Card conservation is not required.
func midRound(t *testing.T, hands ...[]string) *Session {
	t.Helper()
	s := &Session{
		Code:          "TEST",
		TargetPlayers: len(hands),
		Phase:         PhasePlaying,
		Round:         1,
		TurnSeat:      0,
		Scores:        map[string]int{},
	}
	for i, h := range hands {
		name := string(rune('A' + i))
		s.Players = append(s.Players, Player{Seat: i, Name: name, Hand: hand(t, h...), Status: StatusPlaying})
		s.Scores[name] = 0
	}
	return s
}

func lobbyWith(t *testing.T, target int, fill bool, names ...string) *Session {
	t.Helper()
	s, err := NewSession("ROOM", names[0], Config{TargetPlayers: target, FillWithBots: fill})
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	for _, n := range names[1:] {
		if _, err := s.AddPlayer(n, false, ""); err != nil {
			t.Fatalf("AddPlayer %s: %v", n, err)
		}
	}
	return s
}
