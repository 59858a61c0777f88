package db

import (
	"context"
	"time"

	"github.com/uptrace/bun"

	"ms-meals/internal/models"
)

// DB is the bun query layer over the portal schema. All reads are scoped by
// restaurant and date; access checks go through the user_restaurants link
// table.
type DB struct {
	Bun *bun.DB
}

// ---------------- USERS ----------------

func (d *DB) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := d.Bun.NewSelect().
		Model(&user).
		Where("lower(email) = lower(?)", email).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (d *DB) UserByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := d.Bun.NewSelect().
		Model(&user).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// RestaurantsForUser returns the active restaurants the user is linked to,
// sorted by name.
func (d *DB) RestaurantsForUser(ctx context.Context, userID string) ([]models.Restaurant, error) {
	var restaurants []models.Restaurant
	err := d.Bun.NewSelect().
		Model(&restaurants).
		Join("JOIN user_restaurants ur ON ur.restaurant_id = restaurant.id").
		Where("ur.user_id = ?", userID).
		Where("restaurant.active = ?", true).
		Order("restaurant.name ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return restaurants, nil
}

// UserHasRestaurant reports whether the user is linked to the restaurant.
func (d *DB) UserHasRestaurant(ctx context.Context, userID, restaurantID string) (bool, error) {
	return d.Bun.NewSelect().
		Model((*models.UserRestaurant)(nil)).
		Where("user_id = ?", userID).
		Where("restaurant_id = ?", restaurantID).
		Exists(ctx)
}

// ---------------- CONTRACTS ----------------

// ActiveContracts fetches the restaurant's contracts active on the date:
// start_date <= date and (end_date is null or end_date >= date).
func (d *DB) ActiveContracts(ctx context.Context, restaurantID, date string) ([]models.Contract, error) {
	var contracts []models.Contract
	err := d.Bun.NewSelect().
		Model(&contracts).
		Where("restaurant_id = ?", restaurantID).
		Where("start_date <= ?", date).
		Where("(end_date IS NULL OR end_date >= ?)", date).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return contracts, nil
}

// ---------------- ORDERS ----------------

func (d *DB) OrdersByDate(ctx context.Context, restaurantID, date string) ([]models.Order, error) {
	var orders []models.Order
	err := d.Bun.NewSelect().
		Model(&orders).
		Where("restaurant_id = ?", restaurantID).
		Where("meal_date = ?", date).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return orders, nil
}

// IncludedLineCounts returns, per order id, the number of lines with
// included = true. Orders without included lines are absent from the map.
func (d *DB) IncludedLineCounts(ctx context.Context, orderIDs []string) (map[string]int, error) {
	counts := make(map[string]int)
	if len(orderIDs) == 0 {
		return counts, nil
	}

	var lines []models.OrderLine
	err := d.Bun.NewSelect().
		Model(&lines).
		Where("included = ?", true).
		Where("order_id IN (?)", bun.In(orderIDs)).
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	for _, line := range lines {
		counts[line.OrderID]++
	}
	return counts, nil
}

// ---------------- WORKSITES ----------------

func (d *DB) WorksitesByIDs(ctx context.Context, ids []string) ([]models.Worksite, error) {
	if len(ids) == 0 {
		return []models.Worksite{}, nil
	}

	var worksites []models.Worksite
	err := d.Bun.NewSelect().
		Model(&worksites).
		Where("id IN (?)", bun.In(ids)).
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return worksites, nil
}

// ---------------- CONFIRMATION ----------------

// ConfirmOrders stamps the confirmation transition on every unconfirmed
// order of the restaurant/date/shift. The confirmed_at guard makes the
// transition terminal at the row level: a concurrent second confirmation
// matches zero rows instead of overwriting the first confirmer.
// withStatus additionally writes the confirmed status value; callers retry
// without it when the backend enum rejects the value.
func (d *DB) ConfirmOrders(ctx context.Context, restaurantID, date, shift, userID string, confirmedAt time.Time, withStatus bool) (int64, error) {
	q := d.Bun.NewUpdate().
		Model((*models.Order)(nil)).
		Set("confirmed_at = ?", confirmedAt).
		Set("updated_by = ?", userID)
	if withStatus {
		q = q.Set("status = ?", models.OrderStatusConfirmed)
	}

	res, err := q.
		Where("restaurant_id = ?", restaurantID).
		Where("meal_date = ?", date).
		Where("shift = ?", shift).
		Where("confirmed_at IS NULL").
		Exec(ctx)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
