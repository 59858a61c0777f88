package confirmation

import (
	"time"

	"ms-meals/internal/cutoff"
)

const dateLayout = "2006-01-02"

// Allowed decides whether a shift's confirmation is currently permitted.
// It is a pure function of the target date, the clock, the resolved cutoff
// ("HH:MM[:SS]", empty when absent) and the shift's confirmed flag.
//
// Rules, in order:
//  1. already confirmed: never (confirmation is terminal);
//  2. no cutoff resolved: never (unknown cutoff blocks rather than allows);
//  3. target date is today: only once the wall clock reaches the cutoff,
//     boundary inclusive;
//  4. target date in the past: always (retroactive confirmation);
//  5. target date in the future: never.
func Allowed(targetDate string, now time.Time, shiftCutoff string, confirmed bool) bool {
	if confirmed {
		return false
	}
	if shiftCutoff == "" {
		return false
	}

	today := now.Format(dateLayout)
	switch {
	case targetDate == today:
		limit, err := time.ParseInLocation(dateLayout+" 15:04", targetDate+" "+cutoff.Normalize(shiftCutoff), now.Location())
		if err != nil {
			return false
		}
		return !now.Before(limit)
	case targetDate < today:
		return true
	default:
		return false
	}
}
