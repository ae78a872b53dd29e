package domain

import "time"

// SecurityLevel is the coarse permission tier gating command access.
type SecurityLevel string

const (
	LevelLow    SecurityLevel = "low"
	LevelMedium SecurityLevel = "medium"
	LevelHigh   SecurityLevel = "high"
)

// rank orders levels for comparison; unknown levels rank below low.
func (l SecurityLevel) rank() int {
	switch l {
	case LevelLow:
		return 1
	case LevelMedium:
		return 2
	case LevelHigh:
		return 3
	}
	return 0
}

// Meets reports whether the level satisfies the required tier.
func (l SecurityLevel) Meets(required SecurityLevel) bool {
	return l.rank() >= required.rank()
}

// Valid reports whether the level is one of the known tiers.
func (l SecurityLevel) Valid() bool {
	return l.rank() > 0
}

// User represents a chat platform account known to the service.
type User struct {
	ID            int64
	SecurityLevel SecurityLevel
	CreatedAt     time.Time
}
