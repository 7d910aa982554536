package court

import "errors"

// Validation errors. A call that returns one of these leaves the session
// unchanged.
var (
	ErrNotYourTurn         = errors.New("not your turn")
	ErrMustPlayMandatory   = errors.New("must play the mandatory card")
	ErrMustFollowSuit      = errors.New("must follow suit")
	ErrCardNotHeld         = errors.New("card not in hand")
	ErrRoundNotActive      = errors.New("round not active")
	ErrRoundInProgress     = errors.New("round already in progress")
	ErrInsufficientPlayers = errors.New("insufficient players")
	ErrNotHost             = errors.New("only the host can start a round")
	ErrNotFound            = errors.New("room not found")
	ErrAlreadyStarted      = errors.New("game already started")
	ErrRoomFull            = errors.New("room full")
	ErrNameTaken           = errors.New("name already taken")
	ErrNameRequired        = errors.New("name required")
	ErrInvalidToken        = errors.New("invalid seat token")
	ErrInvalidSeat         = errors.New("invalid seat")
	ErrInvalidConfig       = errors.New("invalid room config")
)

var validationCodes = []struct {
	err  error
	code string
}{
	{ErrNotYourTurn, "NotYourTurn"},
	{ErrMustPlayMandatory, "MustPlayMandatory"},
	{ErrMustFollowSuit, "MustFollowSuit"},
	{ErrCardNotHeld, "CardNotHeld"},
	{ErrRoundNotActive, "RoundNotActive"},
	{ErrRoundInProgress, "RoundInProgress"},
	{ErrInsufficientPlayers, "InsufficientPlayers"},
	{ErrNotHost, "NotHost"},
	{ErrNotFound, "NotFound"},
	{ErrAlreadyStarted, "AlreadyStarted"},
	{ErrRoomFull, "RoomFull"},
	{ErrNameTaken, "NameTaken"},
	{ErrNameRequired, "NameRequired"},
	{ErrInvalidToken, "InvalidToken"},
	{ErrInvalidSeat, "InvalidSeat"},
	{ErrInvalidConfig, "InvalidConfig"},
}

// IsValidation reports whether err is a synchronous rule rejection.
func IsValidation(err error) bool {
	return ErrorCode(err) != ""
}

// ErrorCode maps a validation error to its stable wire code, or "".
func ErrorCode(err error) string {
	if err == nil {
		return ""
	}
	for _, v := range validationCodes {
		if errors.Is(err, v.err) {
			return v.code
		}
	}
	return ""
}

type InvalidStateError string

func (e InvalidStateError) Error() string { return "invalid state: " + string(e) }

func ErrInvalidState(msg string) error { return InvalidStateError(msg) }
