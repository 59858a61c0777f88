package confirmation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun/driver/pgdriver"

	"ms-meals/internal/logger"
	"ms-meals/internal/models"
)

var (
	ErrAlreadyConfirmed = errors.New("shift is already confirmed")
	ErrNotConfirmable   = errors.New("shift cannot be confirmed yet")
	ErrNoOrders         = errors.New("no orders to confirm")
)

type DBLayer interface {
	// ConfirmOrders stamps confirmed_at and updated_by on every order of the
	// restaurant/date/shift, optionally also setting the status column, and
	// returns the number of rows updated.
	ConfirmOrders(ctx context.Context, restaurantID, date, shift, userID string, confirmedAt time.Time, withStatus bool) (int64, error)
}

// Refresher rebuilds the dashboard snapshot from the database.
type Refresher interface {
	Rebuild(ctx context.Context, restaurantID, date string) (*models.Snapshot, error)
}

type KafkaPublisher interface {
	PublishShiftConfirmed(ev models.ShiftConfirmedEvent) error
}

// Service commits shift confirmations. It re-derives the current state
// before writing, so the gate decision is enforced server-side and never
// trusts a client's view of cutoffs or confirmed flags.
type Service struct {
	DB        DBLayer
	Refresher Refresher
	Kafka     KafkaPublisher
	Logger    *logger.Logger
	Now       func() time.Time
}

func NewService(db DBLayer, refresher Refresher, kafka KafkaPublisher, log *logger.Logger) *Service {
	return &Service{DB: db, Refresher: refresher, Kafka: kafka, Logger: log, Now: time.Now}
}

// Confirm marks every order of the shift as confirmed and returns the
// refreshed snapshot. The confirmed rows are the source of truth afterwards;
// nothing is mutated optimistically.
func (s *Service) Confirm(ctx context.Context, restaurantID, date, shift, userID string) (*models.Snapshot, error) {
	if !models.ValidShift(shift) {
		return nil, fmt.Errorf("unknown shift %q", shift)
	}

	snap, err := s.Refresher.Rebuild(ctx, restaurantID, date)
	if err != nil {
		return nil, fmt.Errorf("failed to load current state: %w", err)
	}

	report := snap.Shift(shift)
	if report.Confirmed {
		return nil, ErrAlreadyConfirmed
	}
	// Orders, not Total: a shift whose orders carry only excluded lines has
	// a zero quantity but must still be confirmable.
	if report.Orders == 0 {
		return nil, ErrNoOrders
	}
	if !report.Confirmable {
		return nil, ErrNotConfirmable
	}

	confirmedAt := s.Now()
	updated, err := s.DB.ConfirmOrders(ctx, restaurantID, date, shift, userID, confirmedAt, true)
	if err != nil && IsEnumRejection(err) {
		// Older schemas do not know the confirmed status value. Retry with
		// confirmed_at alone; the timestamp is what the invariants read.
		s.Logger.Warn("CONFIRM", fmt.Sprintf("status enum rejected, retrying without status: %v", err))
		updated, err = s.DB.ConfirmOrders(ctx, restaurantID, date, shift, userID, confirmedAt, false)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to confirm orders: %w", err)
	}
	// The UPDATE only touches unconfirmed rows. Orders existed a moment ago,
	// so zero rows means a concurrent confirmation won the race.
	if updated == 0 {
		return nil, ErrAlreadyConfirmed
	}

	s.Logger.LogConfirmation(restaurantID, date, shift, fmt.Sprintf("confirmed %d orders by %s", updated, userID))

	if s.Kafka != nil {
		ev := models.ShiftConfirmedEvent{
			RestaurantID: restaurantID,
			MealDate:     date,
			Shift:        shift,
			ConfirmedBy:  userID,
			ConfirmedAt:  confirmedAt,
			Orders:       int(updated),
		}
		if err := s.Kafka.PublishShiftConfirmed(ev); err != nil {
			s.Logger.Error("KAFKA", fmt.Sprintf("shift-confirmed publish failed: %v", err))
		}
	}

	fresh, err := s.Refresher.Rebuild(ctx, restaurantID, date)
	if err != nil {
		return nil, fmt.Errorf("confirmation committed but refresh failed: %w", err)
	}
	return fresh, nil
}

// IsEnumRejection reports whether the error is Postgres refusing the status
// value because the enumerated type does not recognize it. Only this exact
// sub-case triggers the compatibility retry; transient failures do not.
func IsEnumRejection(err error) bool {
	if err == nil {
		return false
	}
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) {
		if pgErr.Field('C') == "22P02" && strings.Contains(pgErr.Field('M'), "enum") {
			return true
		}
	}
	return strings.Contains(err.Error(), "invalid input value for enum")
}
