package replay

import "fmt"

type ReplayError struct {
	StepIndex int            `json:"step_index"`
	Reason    string         `json:"reason"`
	Message   string         `json:"message"`
	Expected  *ExpectedState `json:"expected,omitempty"`
}

type ExpectedState struct {
	TurnSeat   int      `json:"turn_seat"`
	LegalCards []string `json:"legal_cards,omitempty"`
	Mandatory  string   `json:"mandatory,omitempty"`
	LeadSuit   string   `json:"lead_suit,omitempty"`
	Phase      string   `json:"phase,omitempty"`
}

func (e *ReplayError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("replay error(step=%d reason=%s): %s", e.StepIndex, e.Reason, e.Message)
}
