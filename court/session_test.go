package court

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"royalcourt/card"
)

func TestClone_IsDeep(t *testing.T) {
	s := midRound(t, []string{"AS", "2H"}, []string{"KS"}, []string{"3C"}, []string{"4D"})
	suit := card.Spade
	s.LeadSuit = &suit
	s.Pile = []Play{{Seat: 3, Card: card.CardDiamond5}}
	s.Opening = &Opening{Hands: []card.CardList{hand(t, "AS")}}

	c := s.Clone()
	require.Equal(t, s, c)

	c.Players[0].Hand[0] = card.CardClub9
	c.Pile[0].Seat = 0
	*c.LeadSuit = card.Heart
	c.Scores["A"] = 5
	c.Opening.Hands[0][0] = card.CardClub2

	assert.Equal(t, card.CardSpadeA, s.Players[0].Hand[0])
	assert.Equal(t, 3, s.Pile[0].Seat)
	assert.Equal(t, card.Spade, *s.LeadSuit)
	assert.Equal(t, 0, s.Scores["A"])
	assert.Equal(t, card.CardSpadeA, s.Opening.Hands[0][0])
}

func TestCheckConservation_DetectsDuplicate(t *testing.T) {
	s := lobbyWith(t, 4, false, "Ann", "Ben", "Cat", "Dan")
	require.NoError(t, s.DealFrom(card.NewDeck()))
	require.NoError(t, s.CheckConservation())

	s.Players[1].Hand[0] = s.Players[0].Hand[0]
	var ise InvalidStateError
	assert.ErrorAs(t, s.CheckConservation(), &ise)
}

func TestDriverLease(t *testing.T) {
	s := &Session{}
	now := time.Unix(1000, 0)

	assert.True(t, s.ClaimDriver("a", now, 10*time.Second))
	assert.True(t, s.HasDriver("a", now))
	assert.False(t, s.ClaimDriver("b", now.Add(5*time.Second), 10*time.Second))
	assert.True(t, s.ClaimDriver("a", now.Add(5*time.Second), 10*time.Second), "holder renews")
	assert.True(t, s.ClaimDriver("b", now.Add(16*time.Second), 10*time.Second), "expired lease is taken over")
	assert.False(t, s.HasDriver("a", now.Add(16*time.Second)))

	assert.False(t, s.ReleaseDriver("a"))
	assert.True(t, s.ReleaseDriver("b"))
	assert.Empty(t, s.Driver.ID)
}

func TestErrorCode(t *testing.T) {
	assert.Equal(t, "MustFollowSuit", ErrorCode(ErrMustFollowSuit))
	assert.True(t, IsValidation(ErrRoomFull))
	assert.False(t, IsValidation(ErrInvalidState("x")))
	assert.False(t, IsValidation(nil))
}
