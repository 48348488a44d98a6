package id

import (
	"fmt"

	clierr "github.com/sudostake/sudostake-cli/internal/errors"
)

const secondsPerDay = 86400

// DaysToSeconds scales a whole-day loan duration to the seconds the vault
// contract expects.
func DaysToSeconds(days int64) (int64, error) {
	if days <= 0 {
		return 0, clierr.New(clierr.CodeUsage, fmt.Sprintf("duration must be a positive number of days, got %d", days))
	}
	return days * secondsPerDay, nil
}

// FormatDurationSeconds renders an on-chain duration for display. Day-aligned
// values show as days; anything else shows exact seconds rather than a
// floor-rounded day count, so the display never understates the term.
func FormatDurationSeconds(seconds int64) string {
	if seconds > 0 && seconds%secondsPerDay == 0 {
		days := seconds / secondsPerDay
		if days == 1 {
			return "1 day"
		}
		return fmt.Sprintf("%d days", days)
	}
	return fmt.Sprintf("%ds", seconds)
}
