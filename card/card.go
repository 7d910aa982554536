package card

import (
	"fmt"
	"strings"
)

// Card 牌枚举
//
// 编码规则:
// - 高4位: 花色 (0:Spade, 1:Heart, 2:Club, 3:Diamond)
// - 低4位: 点数 (2..10, 11:J, 12:Q, 13:K, 14:A)
type Card byte

// Rank is the face value 2..14 (J=11, Q=12, K=13, A=14).
type Rank byte

func (r Rank) String() string {
	switch r {
	case 10:
		return "T"
	case RankJ:
		return "J"
	case RankQ:
		return "Q"
	case RankK:
		return "K"
	case RankA:
		return "A"
	}
	if r >= RankMin && r < 10 {
		return fmt.Sprintf("%d", r)
	}
	return "?"
}

// New builds a card from suit and rank. It does not validate.
func New(s Suit, r Rank) Card {
	return Card(byte(s)<<4 | byte(r))
}

func (c Card) String() string {
	if c == CardInvalid {
		return "Invalid"
	}
	if c == CardRear {
		return "Rear"
	}
	return c.Rank().String() + c.Suit().String()
}

// Code is the two-character wire form, e.g. "AS", "TD", "2C".
func (c Card) Code() string {
	return c.Rank().String() + c.Suit().Letter()
}

// Rank 获取牌面值 2-14 (A=14)
func (c Card) Rank() Rank {
	if c == CardInvalid || c == CardRear {
		return 0
	}
	return Rank(c & 0x0F)
}

// Suit 花色 (0:Spades, 1:Hearts, 2:Clubs, 3:Diamonds)
func (c Card) Suit() Suit {
	return Suit(c >> 4)
}

func (c Card) Valid() bool {
	r := c.Rank()
	return c.Suit().Valid() && r >= RankMin && r <= RankMax
}

func (c Card) MarshalText() ([]byte, error) {
	if !c.Valid() {
		return nil, fmt.Errorf("invalid card: 0x%02x", byte(c))
	}
	return []byte(c.Code()), nil
}

func (c *Card) UnmarshalText(b []byte) error {
	v, err := Parse(string(b))
	if err != nil {
		return err
	}
	*c = v
	return nil
}

// Parse converts strings such as "AS", "Td", "10h" or "Q♠" into a Card.
func Parse(cardStr string) (Card, error) {
	cardStr = strings.TrimSpace(cardStr)
	if len(cardStr) < 2 {
		return CardInvalid, fmt.Errorf("invalid card string: %q", cardStr)
	}

	// Suit symbols are multi-byte; the rank is always one or two ASCII bytes.
	rankLen := 1
	if strings.HasPrefix(cardStr, "10") {
		rankLen = 2
	}
	suit, err := ParseSuit(cardStr[rankLen:])
	if err != nil {
		return CardInvalid, err
	}

	var rank Rank
	switch strings.ToUpper(cardStr[:rankLen]) {
	case "2", "3", "4", "5", "6", "7", "8", "9":
		rank = Rank(cardStr[0] - '0')
	case "T", "10":
		rank = 10
	case "J":
		rank = RankJ
	case "Q":
		rank = RankQ
	case "K":
		rank = RankK
	case "A":
		rank = RankA
	default:
		return CardInvalid, fmt.Errorf("invalid rank: %q", cardStr[:rankLen])
	}
	return New(suit, rank), nil
}

// MustParse panics on malformed input; intended for fixtures.
func MustParse(cardStr string) Card {
	c, err := Parse(cardStr)
	if err != nil {
		panic(err)
	}
	return c
}

// ParseList parses a list of card strings.
func ParseList(strs []string) (CardList, error) {
	out := make(CardList, 0, len(strs))
	for _, s := range strs {
		c, err := Parse(s)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, nil
}
