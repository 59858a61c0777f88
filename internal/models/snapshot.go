package models

import "time"

// WorksiteQuantity is one breakdown row: how many included meals a worksite
// ordered for a shift.
type WorksiteQuantity struct {
	WorksiteID string `json:"worksite_id"`
	Name       string `json:"name"`
	Quantity   int    `json:"quantity"`
}

// ShiftReport is the dashboard view of one shift on one date. Orders counts
// the order rows of the shift; Total sums their included lines. The two can
// diverge when every line of an order is excluded.
type ShiftReport struct {
	Shift       string             `json:"shift"`
	Cutoff      string             `json:"cutoff,omitempty"`
	Orders      int                `json:"orders"`
	Total       int                `json:"total"`
	Breakdown   []WorksiteQuantity `json:"breakdown"`
	Confirmed   bool               `json:"confirmed"`
	Confirmable bool               `json:"confirmable"`
}

// Snapshot is the full dashboard state for a restaurant on a date. Seq
// orders rebuilds of the same restaurant/date so a stale rebuild can never
// overwrite a newer one in the cache.
type Snapshot struct {
	RestaurantID string      `json:"restaurant_id"`
	Date         string      `json:"date"`
	GeneratedAt  time.Time   `json:"generated_at"`
	Seq          uint64      `json:"seq"`
	Lunch        ShiftReport `json:"lunch"`
	Dinner       ShiftReport `json:"dinner"`
}

// Shift returns the report for the named shift.
func (s *Snapshot) Shift(shift string) *ShiftReport {
	if shift == ShiftDinner {
		return &s.Dinner
	}
	return &s.Lunch
}

// OrderEvent is the upstream message consumed from Kafka when the
// worksite-side system creates or changes an order.
type OrderEvent struct {
	OrderID      string `json:"order_id"`
	RestaurantID string `json:"restaurant_id"`
	MealDate     string `json:"meal_date"`
	Shift        string `json:"shift"`
	Action       string `json:"action"`
}

// ShiftConfirmedEvent is published after a successful confirmation commit.
type ShiftConfirmedEvent struct {
	RestaurantID string    `json:"restaurant_id"`
	MealDate     string    `json:"meal_date"`
	Shift        string    `json:"shift"`
	ConfirmedBy  string    `json:"confirmed_by"`
	ConfirmedAt  time.Time `json:"confirmed_at"`
	Orders       int       `json:"orders"`
}
