package court

import "fmt"

const (
	MinSeats = 4
	MaxSeats = 5
)

type Config struct {
	TargetPlayers int
	FillWithBots  bool
}

func (c Config) validate() error {
	if c.TargetPlayers < MinSeats || c.TargetPlayers > MaxSeats {
		return fmt.Errorf("%w: TargetPlayers must be %d or %d, got %d", ErrInvalidConfig, MinSeats, MaxSeats, c.TargetPlayers)
	}
	return nil
}

// HandSize returns the cards per hand and the burnt remainder for n seats.
func HandSize(n int) (hand, burnt int) {
	if n <= 0 {
		return 0, 0
	}
	return 52 / n, 52 % n
}
