package court

import "royalcourt/card"

const NoSeat = -1

// Phase 房间阶段
type Phase string

const (
	PhaseLobby    Phase = "lobby"
	PhasePlaying  Phase = "playing"
	PhaseFinished Phase = "finished"
)

// Status 玩家状态：playing 仍需出牌，safe 手牌已出完
type Status string

const (
	StatusPlaying Status = "playing"
	StatusSafe    Status = "safe"
)

// Outcome describes how a single accepted move resolved.
type Outcome string

const (
	OutcomeContinue Outcome = "continue"
	OutcomeCut      Outcome = "cut"
	OutcomeClear    Outcome = "clear"
)

type Player struct {
	Seat      int           `json:"seat"`
	Name      string        `json:"name"`
	Bot       bool          `json:"bot"`
	Persona   string        `json:"persona,omitempty"`
	Hand      card.CardList `json:"hand"`
	Status    Status        `json:"status"`
	TokenHash string        `json:"tokenHash,omitempty"`
}

func (p *Player) Playing() bool { return p.Status == StatusPlaying }

// Play is one card placed by one seat.
type Play struct {
	Seat int       `json:"seat"`
	Card card.Card `json:"card"`
}

// Opening is the dealt state of a round, kept so the round can be replayed.
type Opening struct {
	Hands []card.CardList `json:"hands"`
	Burnt card.CardList   `json:"burnt"`
}

// DriverLease names the process currently allowed to drive bot seats.
type DriverLease struct {
	ID          string `json:"id,omitempty"`
	ExpiresAtMs int64  `json:"expiresAtMs,omitempty"`
}

// Session is the complete shared record of one room. Every field is plain
// data so the record can be cloned, stored and compared by Version.
type Session struct {
	Code    string `json:"code"`
	Version uint64 `json:"version"`

	HostSeat      int  `json:"hostSeat"`
	TargetPlayers int  `json:"targetPlayers"`
	FillWithBots  bool `json:"fillWithBots"`

	Phase   Phase    `json:"phase"`
	Round   int      `json:"round"`
	MoveSeq int      `json:"moveSeq"`
	Players []Player `json:"players"`

	Pile      []Play        `json:"pile"`
	LeadSuit  *card.Suit    `json:"leadSuit,omitempty"`
	TrickSize int           `json:"trickSize"`
	Mandatory *card.Card    `json:"mandatoryCard,omitempty"`
	Burnt     card.CardList `json:"burnt"`
	Discard   card.CardList `json:"discard"`
	TurnSeat  int           `json:"turnSeat"`

	Scores    map[string]int `json:"scores"`
	SafeOrder []int          `json:"safeOrder"`
	Loser     *int           `json:"loser,omitempty"`

	Opening *Opening    `json:"opening,omitempty"`
	Moves   []Play      `json:"moves"`
	Driver  DriverLease `json:"driver"`

	Log string `json:"log"`
}

// MoveResult summarizes what an accepted move did to the record.
type MoveResult struct {
	Seat       int
	Card       card.Card
	Outcome    Outcome
	Victim     int
	Winner     int
	BecameSafe bool
	ReEntered  bool
	RoundOver  bool
	Loser      int
}
