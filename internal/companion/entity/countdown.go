package entity

type CountdownLevel string

const (
	CountdownNormal  CountdownLevel = "normal"
	CountdownWarning CountdownLevel = "warning"
	CountdownUrgent  CountdownLevel = "urgent"
)

// LevelFor maps remaining seconds to a display level.
func LevelFor(remaining int) CountdownLevel {
	switch {
	case remaining <= 5:
		return CountdownUrgent
	case remaining <= 10:
		return CountdownWarning
	default:
		return CountdownNormal
	}
}

// ProjectedAccountState is the locally extrapolated countdown of one account.
type ProjectedAccountState struct {
	RemainingSeconds int
	Progress         float64
}

// Countdown is what a detail view renders on every tick.
type Countdown struct {
	ID               string         `json:"id"`
	Code             string         `json:"code"`
	RemainingSeconds int            `json:"remainingSeconds"`
	Progress         float64        `json:"progress"`
	Level            CountdownLevel `json:"level"`
	ShowRing         bool           `json:"showRing"`
}
