package models

import "github.com/uptrace/bun"

type Restaurant struct {
	bun.BaseModel `bun:"table:restaurants"`

	ID     string `bun:"id,pk" json:"id"`
	Name   string `bun:"name,notnull" json:"name"`
	City   string `bun:"city,nullzero" json:"city,omitempty"`
	Active bool   `bun:"active,notnull,default:true" json:"active"`
}

type Worksite struct {
	bun.BaseModel `bun:"table:worksites"`

	ID   string `bun:"id,pk" json:"id"`
	Name string `bun:"name,notnull" json:"name"`
	City string `bun:"city,nullzero" json:"city,omitempty"`
}

// DisplayName is the label shown on the dashboard breakdown.
func (w Worksite) DisplayName() string {
	if w.City != "" {
		return w.Name + " (" + w.City + ")"
	}
	return w.Name
}
