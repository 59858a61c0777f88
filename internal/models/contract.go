package models

import "github.com/uptrace/bun"

// Contract ties a restaurant to a worksite for a date range and carries the
// per-shift order cutoffs. A contract is active on date D when
// start_date <= D and (end_date is null or end_date >= D).
//
// Dates are calendar dates in "2006-01-02" form with no time zone; cutoffs
// are wall-clock times in "15:04" or "15:04:05" form. Both compare
// chronologically under plain string comparison, which the resolver and the
// queries rely on. Empty string means absent.
type Contract struct {
	bun.BaseModel `bun:"table:contracts"`

	ID           string `bun:"id,pk" json:"id"`
	RestaurantID string `bun:"restaurant_id,notnull" json:"restaurant_id"`
	WorksiteID   string `bun:"worksite_id,notnull" json:"worksite_id"`
	LunchCutoff  string `bun:"lunch_cutoff,nullzero" json:"lunch_cutoff,omitempty"`
	DinnerCutoff string `bun:"dinner_cutoff,nullzero" json:"dinner_cutoff,omitempty"`
	StartDate    string `bun:"start_date,notnull" json:"start_date"`
	EndDate      string `bun:"end_date,nullzero" json:"end_date,omitempty"`
}

// ActiveOn reports whether the contract covers the given date.
func (c Contract) ActiveOn(date string) bool {
	if c.StartDate > date {
		return false
	}
	return c.EndDate == "" || c.EndDate >= date
}

// CutoffFor returns the contract's cutoff for a shift, empty when unset.
func (c Contract) CutoffFor(shift string) string {
	if shift == ShiftDinner {
		return c.DinnerCutoff
	}
	return c.LunchCutoff
}
