package court

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"royalcourt/card"
)

func TestStartRound_FourSeats(t *testing.T) {
	s := lobbyWith(t, 4, false, "Ann", "Ben", "Cat", "Dan")
	require.NoError(t, s.StartRound(0, rand.New(rand.NewSource(7)), nil))

	assert.Equal(t, PhasePlaying, s.Phase)
	assert.Equal(t, 1, s.Round)
	assert.Empty(t, s.Burnt)
	for i := range s.Players {
		assert.Len(t, s.Players[i].Hand, 13)
		assert.Equal(t, StatusPlaying, s.Players[i].Status)
	}
	require.NoError(t, s.CheckConservation())

	require.NotNil(t, s.Mandatory)
	assert.Equal(t, card.CardSpadeA, *s.Mandatory)
	assert.True(t, s.Players[s.TurnSeat].Hand.Contains(card.CardSpadeA))
	require.NotNil(t, s.Opening)
	assert.Len(t, s.Opening.Hands, 4)
}

func TestStartRound_HandsSorted(t *testing.T) {
	s := lobbyWith(t, 4, false, "Ann", "Ben", "Cat", "Dan")
	require.NoError(t, s.StartRound(0, rand.New(rand.NewSource(3)), nil))
	for _, p := range s.Players {
		for i := 1; i < len(p.Hand); i++ {
			a, b := p.Hand[i-1], p.Hand[i]
			ok := a.Suit() < b.Suit() || (a.Suit() == b.Suit() && a.Rank() > b.Rank())
			assert.Truef(t, ok, "seat %d out of order at %d: %s %s", p.Seat, i, a, b)
		}
	}
}

func TestDealFrom_FiveSeatsBurnsRemainderAndSkipsBurntSpades(t *testing.T) {
	s := lobbyWith(t, 5, false, "Ann", "Ben", "Cat", "Dan", "Eve")

	// A♠ and K♠ are the last two cards of the deck, so they are burnt.
	deck := card.CardList{}
	for _, c := range card.NewDeck() {
		if c != card.CardSpadeA && c != card.CardSpadeK {
			deck = append(deck, c)
		}
	}
	deck = append(deck, card.CardSpadeK, card.CardSpadeA)

	require.NoError(t, s.DealFrom(deck))
	assert.ElementsMatch(t, card.CardList{card.CardSpadeA, card.CardSpadeK}, s.Burnt)
	for i := range s.Players {
		assert.Len(t, s.Players[i].Hand, 10)
	}
	require.NotNil(t, s.Mandatory)
	assert.Equal(t, card.CardSpadeQ, *s.Mandatory)
	assert.True(t, s.Players[s.TurnSeat].Hand.Contains(card.CardSpadeQ))
	assert.Contains(t, s.Log, "burnt")
	require.NoError(t, s.CheckConservation())
}

func TestDealFrom_Deterministic(t *testing.T) {
	deck := card.NewDeck()
	deck.Shuffle(rand.New(rand.NewSource(42)))

	a := lobbyWith(t, 4, false, "Ann", "Ben", "Cat", "Dan")
	b := lobbyWith(t, 4, false, "Ann", "Ben", "Cat", "Dan")
	require.NoError(t, a.DealFrom(deck))
	require.NoError(t, b.DealFrom(deck))
	assert.Equal(t, a, b)
}

func TestStartRound_InsufficientPlayers(t *testing.T) {
	rng := rand.New(rand.NewSource(1))

	solo := lobbyWith(t, 4, false, "Ann")
	before := solo.Clone()
	assert.ErrorIs(t, solo.StartRound(0, rng, nil), ErrInsufficientPlayers)
	assert.Equal(t, before, solo)

	short := lobbyWith(t, 4, false, "Ann", "Ben", "Cat")
	assert.ErrorIs(t, short.StartRound(0, rng, nil), ErrInsufficientPlayers)
	assert.Equal(t, PhaseLobby, short.Phase)
}

func TestStartRound_FillsBotsDeterministically(t *testing.T) {
	s := lobbyWith(t, 5, true, "Ann", "Ben")
	pool := []BotSeat{{Name: "Ben", Persona: "dup"}, {Name: "Duchess", Persona: "duchess"}}
	require.NoError(t, s.StartRound(0, rand.New(rand.NewSource(1)), pool))

	require.Len(t, s.Players, 5)
	assert.Equal(t, "Duchess", s.Players[2].Name)
	assert.Equal(t, "duchess", s.Players[2].Persona)
	assert.True(t, s.Players[2].Bot)
	assert.Equal(t, "Bot 1", s.Players[3].Name)
	assert.Equal(t, "Bot 2", s.Players[4].Name)
	assert.Len(t, s.Burnt, 2)
	require.NoError(t, s.CheckConservation())
}

func TestStartRound_HostOnlyAndNotTwice(t *testing.T) {
	s := lobbyWith(t, 4, true, "Ann", "Ben")
	rng := rand.New(rand.NewSource(1))
	assert.ErrorIs(t, s.StartRound(1, rng, nil), ErrNotHost)
	require.NoError(t, s.StartRound(0, rng, nil))
	assert.ErrorIs(t, s.StartRound(0, rng, nil), ErrRoundInProgress)
}

func TestAddPlayer_Errors(t *testing.T) {
	s := lobbyWith(t, 4, false, "Ann", "Ben", "Cat")

	_, err := s.AddPlayer("ann", false, "")
	assert.ErrorIs(t, err, ErrNameTaken)
	_, err = s.AddPlayer("  ", false, "")
	assert.ErrorIs(t, err, ErrNameRequired)

	seat, err := s.AddPlayer("Dan", false, "")
	require.NoError(t, err)
	assert.Equal(t, 3, seat)

	_, err = s.AddPlayer("Eve", false, "")
	assert.ErrorIs(t, err, ErrRoomFull)

	require.NoError(t, s.StartRound(0, rand.New(rand.NewSource(1)), nil))
	_, err = s.AddPlayer("Fay", false, "")
	assert.ErrorIs(t, err, ErrAlreadyStarted)
}

func TestNewSessionFromDeal(t *testing.T) {
	deck := card.NewDeck()
	seats := make([]SeatDeal, 4)
	for i := range seats {
		seats[i] = SeatDeal{Name: string(rune('A' + i)), Hand: deck[i*13 : (i+1)*13]}
	}
	seats[3].Bot = true

	s, err := NewSessionFromDeal("R", seats, nil)
	require.NoError(t, err)
	assert.Equal(t, PhasePlaying, s.Phase)
	assert.True(t, s.Players[3].Bot)
	// NewDeck is suit-major so seat 0 holds every spade.
	assert.Equal(t, 0, s.TurnSeat)
	assert.Equal(t, card.CardSpadeA, *s.Mandatory)

	seats[1].Hand = seats[0].Hand
	_, err = NewSessionFromDeal("R", seats, nil)
	assert.Error(t, err)
}

func TestNextRoundCarriesScores(t *testing.T) {
	s := lobbyWith(t, 4, false, "Ann", "Ben", "Cat", "Dan")
	s.Scores["Ben"] = 3
	s.Phase = PhaseFinished
	require.NoError(t, s.StartRound(0, rand.New(rand.NewSource(9)), nil))
	assert.Equal(t, 3, s.Scores["Ben"])
	assert.Nil(t, s.Loser)
	assert.Empty(t, s.SafeOrder)
}
