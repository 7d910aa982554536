package card

import "fmt"

type Suit byte

// Suit order doubles as the display/sort tie-break: S < H < C < D.
const (
	Spade   Suit = iota // ♠
	Heart               // ♥
	Club                // ♣
	Diamond             // ♦
)

var Suits = []Suit{Spade, Heart, Club, Diamond}

func (s Suit) String() string {
	switch s {
	case Diamond:
		return "♦"
	case Club:
		return "♣"
	case Heart:
		return "♥"
	case Spade:
		return "♠"
	}
	return "?"
}

// Letter returns the single-letter wire form (S, H, C, D).
func (s Suit) Letter() string {
	switch s {
	case Spade:
		return "S"
	case Heart:
		return "H"
	case Club:
		return "C"
	case Diamond:
		return "D"
	}
	return "?"
}

func (s Suit) Valid() bool { return s <= Diamond }

func (s Suit) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, fmt.Errorf("invalid suit: %d", byte(s))
	}
	return []byte(s.Letter()), nil
}

func (s *Suit) UnmarshalText(b []byte) error {
	v, err := ParseSuit(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// ParseSuit accepts a letter (either case) or a suit symbol.
func ParseSuit(raw string) (Suit, error) {
	switch raw {
	case "s", "S", "♠", "♠️":
		return Spade, nil
	case "h", "H", "♥", "♥️":
		return Heart, nil
	case "c", "C", "♣", "♣️":
		return Club, nil
	case "d", "D", "♦", "♦️":
		return Diamond, nil
	}
	return 0, fmt.Errorf("invalid suit: %q", raw)
}
