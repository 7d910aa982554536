package card

import (
	"math/rand"
	"sort"
)

type CardList []Card

// NewDeck returns the 52 distinct cards in suit order, ranks ascending.
func NewDeck() CardList {
	deck := make(CardList, 0, 52)
	for _, s := range Suits {
		for r := RankMin; r <= RankMax; r++ {
			deck = append(deck, New(s, r))
		}
	}
	return deck
}

func (ds *CardList) Init(cards []Card) {
	*ds = make([]Card, len(cards))
	copy(*ds, cards)
}

// Count 获取总牌数
func (ds CardList) Count() int {
	return len(ds)
}

func (ds CardList) Clone() CardList {
	if ds == nil {
		return nil
	}
	out := make(CardList, len(ds))
	copy(out, ds)
	return out
}

// Shuffle permutes the list in place (Fisher-Yates via rand.Shuffle).
func (ds CardList) Shuffle(rng *rand.Rand) {
	rng.Shuffle(len(ds), func(i, j int) {
		ds[i], ds[j] = ds[j], ds[i]
	})
}

func (ds *CardList) Add(cards ...Card) {
	*ds = append(*ds, cards...)
}

func (ds *CardList) PopCards(size int) ([]Card, bool) {
	if size > ds.Count() {
		return nil, false
	}
	cards := make([]Card, size)
	copy(cards, (*ds)[:size])
	*ds = (*ds)[size:]
	return cards, true
}

// Remove deletes the first occurrence of c, preserving order.
func (ds *CardList) Remove(c Card) bool {
	for i, cc := range *ds {
		if cc == c {
			*ds = append((*ds)[:i:i], (*ds)[i+1:]...)
			return true
		}
	}
	return false
}

func (ds CardList) Contains(c Card) bool {
	for _, cc := range ds {
		if cc == c {
			return true
		}
	}
	return false
}

func (ds CardList) HasSuit(s Suit) bool {
	for _, c := range ds {
		if c.Suit() == s {
			return true
		}
	}
	return false
}

// OfSuit returns the cards of suit s in their current order.
func (ds CardList) OfSuit(s Suit) CardList {
	var out CardList
	for _, c := range ds {
		if c.Suit() == s {
			out = append(out, c)
		}
	}
	return out
}

// Highest returns the highest-rank card; ties keep the earlier card.
func (ds CardList) Highest() (Card, bool) {
	if len(ds) == 0 {
		return CardInvalid, false
	}
	best := ds[0]
	for _, c := range ds[1:] {
		if c.Rank() > best.Rank() {
			best = c
		}
	}
	return best, true
}

// Lowest returns the lowest-rank card; ties keep the later card.
func (ds CardList) Lowest() (Card, bool) {
	if len(ds) == 0 {
		return CardInvalid, false
	}
	low := ds[0]
	for _, c := range ds[1:] {
		if c.Rank() <= low.Rank() {
			low = c
		}
	}
	return low, true
}

// SortHand orders cards by suit (S, H, C, D) then rank descending.
func SortHand(cards CardList) {
	sort.SliceStable(cards, func(i, j int) bool {
		if cards[i].Suit() != cards[j].Suit() {
			return cards[i].Suit() < cards[j].Suit()
		}
		return cards[i].Rank() > cards[j].Rank()
	})
}

func (ds CardList) Codes() []string {
	out := make([]string, 0, len(ds))
	for _, c := range ds {
		out = append(out, c.Code())
	}
	return out
}
