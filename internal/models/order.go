package models

import (
	"time"

	"github.com/uptrace/bun"
)

const (
	ShiftLunch  = "lunch"
	ShiftDinner = "dinner"
)

// Shifts lists the two daily meal services in display order.
var Shifts = []string{ShiftLunch, ShiftDinner}

func ValidShift(shift string) bool {
	return shift == ShiftLunch || shift == ShiftDinner
}

const (
	OrderStatusPlaced    = "placed"
	OrderStatusConfirmed = "confirmed"
)

// Order rows are created and mutated by the worksite-side system; this
// service only reads them and writes the confirmation transition.
type Order struct {
	bun.BaseModel `bun:"table:orders"`

	ID           string     `bun:"id,pk" json:"id"`
	RestaurantID string     `bun:"restaurant_id,notnull" json:"restaurant_id"`
	WorksiteID   string     `bun:"worksite_id,notnull" json:"worksite_id"`
	Shift        string     `bun:"shift,notnull" json:"shift"`
	MealDate     string     `bun:"meal_date,notnull" json:"meal_date"`
	Status       string     `bun:"status,nullzero" json:"status,omitempty"`
	ConfirmedAt  *time.Time `bun:"confirmed_at,nullzero" json:"confirmed_at,omitempty"`
	UpdatedBy    string     `bun:"updated_by,nullzero" json:"updated_by,omitempty"`
}

func (o Order) Confirmed() bool {
	return o.ConfirmedAt != nil
}

// OrderLine is one requested meal on an order; only lines with included=true
// count toward quantities.
type OrderLine struct {
	bun.BaseModel `bun:"table:order_lines"`

	ID       string `bun:"id,pk" json:"id"`
	OrderID  string `bun:"order_id,notnull" json:"order_id"`
	Included bool   `bun:"included,notnull,default:true" json:"included"`
}
