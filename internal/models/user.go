package models

import "github.com/uptrace/bun"

type User struct {
	bun.BaseModel `bun:"table:users"`

	ID    string `bun:"id,pk" json:"id"`
	Email string `bun:"email,notnull,unique" json:"email"`
	Name  string `bun:"name,nullzero" json:"name,omitempty"`
}

// UserRestaurant links a portal user to the restaurants they may manage.
type UserRestaurant struct {
	bun.BaseModel `bun:"table:user_restaurants"`

	UserID       string `bun:"user_id,pk" json:"user_id"`
	RestaurantID string `bun:"restaurant_id,pk" json:"restaurant_id"`
}
