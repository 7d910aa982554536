package codec

import (
	"encoding/json"
	"errors"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"royalcourt/court"
)

func dealtSession(t *testing.T) *court.Session {
	t.Helper()
	s, err := court.NewSession("CDAAA", "Ann", court.Config{TargetPlayers: 4, FillWithBots: true})
	require.NoError(t, err)
	s.Players[0].TokenHash = "$2a$04$secret"
	require.NoError(t, s.StartRound(0, rand.New(rand.NewSource(5)), nil))
	return s
}

func TestViewFor_HidesOtherHands(t *testing.T) {
	s := dealtSession(t)
	for seat := 0; seat < 4; seat++ {
		v := ViewFor(s, seat)
		assert.Equal(t, seat, v.YouSeat)
		for _, p := range v.Players {
			assert.Equal(t, 13, p.CardCount)
			if p.Seat == seat {
				assert.Len(t, p.Hand, 13)
			} else {
				assert.Empty(t, p.Hand)
			}
		}
		if seat == s.TurnSeat {
			require.Len(t, v.LegalCards, 1)
			assert.Equal(t, *s.Mandatory, v.LegalCards[0])
		} else {
			assert.Empty(t, v.LegalCards)
		}
	}

	raw, err := json.Marshal(ViewFor(s, court.NoSeat))
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "secret")
	assert.NotContains(t, string(raw), `"hand"`)
	assert.Contains(t, string(raw), `"legalCards":[]`)
	assert.Contains(t, string(raw), `"mandatoryCard":"AS"`)
}

func TestViewFor_IsDetached(t *testing.T) {
	s := dealtSession(t)
	v := ViewFor(s, 0)
	v.Scores["Ann"] = 99
	v.Players[0].Hand[0] = 0
	assert.Equal(t, 0, s.Scores["Ann"])
	assert.NotEqual(t, 0, int(s.Players[0].Hand[0]))
}

func TestEventsFor(t *testing.T) {
	tests := []struct {
		name  string
		res   court.MoveResult
		kinds []string
	}{
		{"follow", court.MoveResult{Outcome: court.OutcomeContinue, Victim: -1, Winner: -1, Loser: -1}, nil},
		{"cut", court.MoveResult{Outcome: court.OutcomeCut, Victim: 2, Winner: -1, Loser: -1, ReEntered: true}, []string{EventCut}},
		{"clear and safe", court.MoveResult{Outcome: court.OutcomeClear, Winner: 1, Victim: -1, Loser: -1, BecameSafe: true}, []string{EventSafe, EventClear}},
		{"last cut ends round", court.MoveResult{Outcome: court.OutcomeCut, Victim: 3, Winner: -1, RoundOver: true, Loser: 3}, []string{EventCut, EventRoundOver}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			events := EventsFor(tt.res)
			kinds := make([]string, 0, len(events))
			for _, e := range events {
				kinds = append(kinds, e.Kind)
			}
			if tt.kinds == nil {
				assert.Empty(t, kinds)
				return
			}
			assert.Equal(t, tt.kinds, kinds)
		})
	}

	cut := EventsFor(court.MoveResult{Outcome: court.OutcomeCut, Victim: 2, Winner: -1, Loser: -1, ReEntered: true})[0]
	require.NotNil(t, cut.Victim)
	assert.Equal(t, 2, *cut.Victim)
	assert.Nil(t, cut.Winner)
	assert.True(t, cut.ReEntered)

	over := EventsFor(court.MoveResult{Outcome: court.OutcomeClear, Winner: 0, Victim: -1, RoundOver: true, Loser: -1})
	require.Len(t, over, 2)
	assert.Nil(t, over[1].Loser)
}

func TestDecodeClient(t *testing.T) {
	env, err := DecodeClient([]byte(`{"type":"play_card","card":"QH","actionId":"a-1"}`))
	require.NoError(t, err)
	assert.Equal(t, TypePlayCard, env.Type)
	assert.Equal(t, "QH", env.Card)
	assert.Equal(t, "a-1", env.ActionID)

	env, err = DecodeClient([]byte(`{"type":"resume","code":"ABCDE","seat":0,"token":"t"}`))
	require.NoError(t, err)
	require.NotNil(t, env.Seat)
	assert.Equal(t, 0, *env.Seat)

	_, err = DecodeClient([]byte(`{"card":"QH"}`))
	assert.Error(t, err)
	_, err = DecodeClient([]byte(`not json`))
	assert.Error(t, err)
}

func TestEncodeAndErrorFor(t *testing.T) {
	raw, err := Encode(&ServerEnvelope{Type: TypeError, Error: ErrorFor(court.ErrMustFollowSuit, false)}, 9)
	require.NoError(t, err)
	s := string(raw)
	assert.True(t, strings.HasPrefix(s, `{"type":"error"`))
	assert.Contains(t, s, `"seq":9`)
	assert.Contains(t, s, `"code":"MustFollowSuit"`)
	assert.Contains(t, s, `"retryable":false`)

	reply := ErrorFor(errors.New("boom"), true)
	assert.Equal(t, "Internal", reply.Code)
	assert.True(t, reply.Retryable)
}
