// Package cutoff reduces the per-shift cutoff times of a restaurant's
// active contracts to a single effective cutoff per shift.
//
// The effective cutoff is the latest one across active contracts:
// confirmation must wait until the last-eligible worksite's cutoff has
// passed, not the first.
package cutoff

import (
	"strings"

	"ms-meals/internal/models"
)

// MaxTime returns the later of two "HH:MM[:SS]" times. The format is
// left-padded and fixed-field, so lexicographic order equals chronological
// order within a day. A present time always beats an absent (empty) one.
func MaxTime(a, b string) string {
	if a == "" {
		return b
	}
	if b == "" {
		return a
	}
	if a >= b {
		return a
	}
	return b
}

// Normalize trims an "HH:MM:SS" time down to "HH:MM". Empty stays empty.
func Normalize(t string) string {
	if len(t) > 5 && strings.Count(t, ":") == 2 {
		return t[:5]
	}
	return t
}

// ShiftCutoffs holds the effective cutoff per shift, "" when no active
// contract defines one. An absent cutoff is a valid business value, not an
// error: it blocks confirmation.
type ShiftCutoffs struct {
	Lunch  string
	Dinner string
}

func (c ShiftCutoffs) For(shift string) string {
	if shift == models.ShiftDinner {
		return c.Dinner
	}
	return c.Lunch
}

// Resolve reduces the contracts' cutoffs with latest-wins per shift and
// normalizes the result to "HH:MM". Callers pass contracts already filtered
// to the target date; ResolveOn filters as well.
func Resolve(contracts []models.Contract) ShiftCutoffs {
	var out ShiftCutoffs
	for _, c := range contracts {
		out.Lunch = MaxTime(out.Lunch, c.CutoffFor(models.ShiftLunch))
		out.Dinner = MaxTime(out.Dinner, c.CutoffFor(models.ShiftDinner))
	}
	out.Lunch = Normalize(out.Lunch)
	out.Dinner = Normalize(out.Dinner)
	return out
}

// ResolveOn is Resolve restricted to contracts active on the given date.
func ResolveOn(contracts []models.Contract, date string) ShiftCutoffs {
	active := make([]models.Contract, 0, len(contracts))
	for _, c := range contracts {
		if c.ActiveOn(date) {
			active = append(active, c)
		}
	}
	return Resolve(active)
}
