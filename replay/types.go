package replay

// RoundSpec is everything needed to re-run one round: the dealt hands, the
// burnt cards and the accepted moves in order.
type RoundSpec struct {
	Code     string     `json:"code,omitempty"`
	Round    int        `json:"round,omitempty"`
	HeroSeat int        `json:"hero_seat"`
	Seats    []SeatSpec `json:"seats"`
	Burnt    []string   `json:"burnt,omitempty"`
	Moves    []MoveSpec `json:"moves"`
}

type SeatSpec struct {
	Seat int      `json:"seat"`
	Name string   `json:"name,omitempty"`
	Bot  bool     `json:"bot,omitempty"`
	Hand []string `json:"hand"`
}

type MoveSpec struct {
	Seat int    `json:"seat"`
	Card string `json:"card"`
}

type ReplayTape struct {
	TapeVersion int           `json:"tape_version"`
	RoomCode    string        `json:"room_code"`
	HeroSeat    int           `json:"hero_seat"`
	Events      []ReplayEvent `json:"events"`
	Result      RoundResult   `json:"result"`
}

// ReplayEvent is one step of the tape. Seat is -1 when the event has no seat.
type ReplayEvent struct {
	Type  string   `json:"type"`
	Seq   uint64   `json:"seq"`
	Seat  int      `json:"seat"`
	Card  string   `json:"card,omitempty"`
	Cards []string `json:"cards,omitempty"`
	Log   string   `json:"log,omitempty"`
}

type RoundResult struct {
	Finished  bool           `json:"finished"`
	Loser     *int           `json:"loser,omitempty"`
	SafeOrder []int          `json:"safe_order"`
	Scores    map[string]int `json:"scores"`
}
