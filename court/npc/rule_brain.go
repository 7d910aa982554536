package npc

import (
	"math/rand"

	"royalcourt/card"
)

// RuleBrain plays the fixed house policy: mandatory card first, random-suit
// leads, greedy follows and cheapest cuts. It keeps no memory between calls.
type RuleBrain struct {
	Persona *NPCPersona
	rng     *rand.Rand
}

// NewRuleBrain creates a RuleBrain from a persona definition. A nil persona
// uses the default profile.
func NewRuleBrain(persona *NPCPersona, seed int64) *RuleBrain {
	if persona == nil {
		persona = &NPCPersona{ID: "default", Name: "Bot", Brain: DefaultProfile()}
	}
	return &RuleBrain{
		Persona: persona,
		rng:     rand.New(rand.NewSource(seed)),
	}
}

func (b *RuleBrain) Name() string { return b.Persona.Name }

// Decide implements BrainDecider.
func (b *RuleBrain) Decide(view GameView) Decision {
	d := b.decide(view)
	if len(view.Legal) > 0 && !view.Legal.Contains(d.Card) {
		return Decision{Card: view.Legal[0]}
	}
	return d
}

func (b *RuleBrain) decide(view GameView) Decision {
	hand := view.Hand
	if len(hand) == 0 {
		return Decision{Card: card.CardInvalid}
	}

	// 1. mandatory card overrides everything
	if view.Mandatory != nil && hand.Contains(*view.Mandatory) {
		return Decision{Card: *view.Mandatory}
	}

	// 2. lead: uniform random suit, then high or low of that suit
	if view.Leading {
		var held []card.Suit
		for _, s := range card.Suits {
			if hand.HasSuit(s) {
				held = append(held, s)
			}
		}
		cards := hand.OfSuit(held[b.rng.Intn(len(held))])
		high, _ := cards.Highest()
		low, _ := cards.Lowest()
		p := b.Persona.Brain
		if p.PowerLead && high.Rank() >= card.RankK {
			return Decision{Card: high}
		}
		if b.rng.Float64() < clamp01(p.LeadHigh) {
			return Decision{Card: high}
		}
		return Decision{Card: low}
	}

	// 3. follow with the highest card of the lead suit
	if view.LeadSuit != nil {
		if follow := hand.OfSuit(*view.LeadSuit); len(follow) > 0 {
			high, _ := follow.Highest()
			return Decision{Card: high}
		}
	}

	// 4. forced cut: throw the cheapest card
	low, _ := hand.Lowest()
	return Decision{Card: low}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
