package confirmation_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"ms-meals/internal/confirmation"
	"ms-meals/internal/logger"
	"ms-meals/internal/models"
)

// Mock implementations
type MockDBLayer struct {
	mock.Mock
}

func (m *MockDBLayer) ConfirmOrders(ctx context.Context, restaurantID, date, shift, userID string, confirmedAt time.Time, withStatus bool) (int64, error) {
	args := m.Called(restaurantID, date, shift, userID, withStatus)
	return int64(args.Int(0)), args.Error(1)
}

type MockRefresher struct {
	mock.Mock
}

func (m *MockRefresher) Rebuild(ctx context.Context, restaurantID, date string) (*models.Snapshot, error) {
	args := m.Called(restaurantID, date)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Snapshot), args.Error(1)
}

type MockKafkaPublisher struct {
	mock.Mock
}

func (m *MockKafkaPublisher) PublishShiftConfirmed(ev models.ShiftConfirmedEvent) error {
	args := m.Called(ev)
	return args.Error(0)
}

const (
	testRestaurant = "rest-1"
	testDate       = "2026-08-27"
	testUser       = "user-1"
)

func snapshotWith(lunch models.ShiftReport) *models.Snapshot {
	lunch.Shift = models.ShiftLunch
	return &models.Snapshot{
		RestaurantID: testRestaurant,
		Date:         testDate,
		Lunch:        lunch,
		Dinner:       models.ShiftReport{Shift: models.ShiftDinner},
	}
}

func newService(db *MockDBLayer, refresher *MockRefresher, kafka confirmation.KafkaPublisher) *confirmation.Service {
	return confirmation.NewService(db, refresher, kafka, logger.NewLogger())
}

func TestConfirmHappyPath(t *testing.T) {
	mockDB := new(MockDBLayer)
	mockRefresher := new(MockRefresher)
	mockKafka := new(MockKafkaPublisher)
	svc := newService(mockDB, mockRefresher, mockKafka)

	before := snapshotWith(models.ShiftReport{Orders: 2, Total: 5, Confirmable: true})
	after := snapshotWith(models.ShiftReport{Orders: 2, Total: 5, Confirmed: true})

	mockRefresher.On("Rebuild", testRestaurant, testDate).Return(before, nil).Once()
	mockDB.On("ConfirmOrders", testRestaurant, testDate, models.ShiftLunch, testUser, true).Return(2, nil)
	mockKafka.On("PublishShiftConfirmed", mock.Anything).Return(nil)
	mockRefresher.On("Rebuild", testRestaurant, testDate).Return(after, nil).Once()

	snap, err := svc.Confirm(context.Background(), testRestaurant, testDate, models.ShiftLunch, testUser)

	assert.NoError(t, err)
	assert.True(t, snap.Lunch.Confirmed)
	mockDB.AssertExpectations(t)
	mockKafka.AssertExpectations(t)
	mockRefresher.AssertExpectations(t)
}

func TestConfirmAlreadyConfirmedIsRejected(t *testing.T) {
	mockDB := new(MockDBLayer)
	mockRefresher := new(MockRefresher)
	svc := newService(mockDB, mockRefresher, nil)

	mockRefresher.On("Rebuild", testRestaurant, testDate).
		Return(snapshotWith(models.ShiftReport{Orders: 2, Total: 5, Confirmed: true}), nil)

	_, err := svc.Confirm(context.Background(), testRestaurant, testDate, models.ShiftLunch, testUser)

	assert.ErrorIs(t, err, confirmation.ErrAlreadyConfirmed)
	mockDB.AssertNotCalled(t, "ConfirmOrders", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestConfirmBlockedBeforeCutoff(t *testing.T) {
	mockDB := new(MockDBLayer)
	mockRefresher := new(MockRefresher)
	svc := newService(mockDB, mockRefresher, nil)

	mockRefresher.On("Rebuild", testRestaurant, testDate).
		Return(snapshotWith(models.ShiftReport{Orders: 2, Total: 5, Confirmable: false}), nil)

	_, err := svc.Confirm(context.Background(), testRestaurant, testDate, models.ShiftLunch, testUser)

	assert.ErrorIs(t, err, confirmation.ErrNotConfirmable)
	mockDB.AssertNotCalled(t, "ConfirmOrders", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestConfirmEmptyShiftIsRejected(t *testing.T) {
	mockDB := new(MockDBLayer)
	mockRefresher := new(MockRefresher)
	svc := newService(mockDB, mockRefresher, nil)

	mockRefresher.On("Rebuild", testRestaurant, testDate).
		Return(snapshotWith(models.ShiftReport{Total: 0, Confirmable: false}), nil)

	_, err := svc.Confirm(context.Background(), testRestaurant, testDate, models.ShiftLunch, testUser)

	assert.ErrorIs(t, err, confirmation.ErrNoOrders)
}

func TestConfirmCommitsWhenAllLinesExcluded(t *testing.T) {
	mockDB := new(MockDBLayer)
	mockRefresher := new(MockRefresher)
	mockKafka := new(MockKafkaPublisher)
	svc := newService(mockDB, mockRefresher, mockKafka)

	// Orders exist but every line is excluded: quantity zero, yet the shift
	// must still be confirmable once the cutoff passes.
	before := snapshotWith(models.ShiftReport{Orders: 2, Total: 0, Confirmable: true})
	after := snapshotWith(models.ShiftReport{Orders: 2, Total: 0, Confirmed: true})

	mockRefresher.On("Rebuild", testRestaurant, testDate).Return(before, nil).Once()
	mockDB.On("ConfirmOrders", testRestaurant, testDate, models.ShiftLunch, testUser, true).Return(2, nil)
	mockKafka.On("PublishShiftConfirmed", mock.Anything).Return(nil)
	mockRefresher.On("Rebuild", testRestaurant, testDate).Return(after, nil).Once()

	snap, err := svc.Confirm(context.Background(), testRestaurant, testDate, models.ShiftLunch, testUser)

	assert.NoError(t, err)
	assert.True(t, snap.Lunch.Confirmed)
	mockDB.AssertExpectations(t)
}

func TestConfirmLostRaceIsAlreadyConfirmed(t *testing.T) {
	mockDB := new(MockDBLayer)
	mockRefresher := new(MockRefresher)
	mockKafka := new(MockKafkaPublisher)
	svc := newService(mockDB, mockRefresher, mockKafka)

	// The shift had unconfirmed orders at rebuild time, but another request
	// confirmed them before our UPDATE ran: zero rows touched.
	mockRefresher.On("Rebuild", testRestaurant, testDate).
		Return(snapshotWith(models.ShiftReport{Orders: 2, Total: 5, Confirmable: true}), nil).Once()
	mockDB.On("ConfirmOrders", testRestaurant, testDate, models.ShiftLunch, testUser, true).Return(0, nil)

	_, err := svc.Confirm(context.Background(), testRestaurant, testDate, models.ShiftLunch, testUser)

	assert.ErrorIs(t, err, confirmation.ErrAlreadyConfirmed)
	mockKafka.AssertNotCalled(t, "PublishShiftConfirmed", mock.Anything)
	mockDB.AssertExpectations(t)
}

func TestConfirmRetriesWithoutStatusOnEnumRejection(t *testing.T) {
	mockDB := new(MockDBLayer)
	mockRefresher := new(MockRefresher)
	mockKafka := new(MockKafkaPublisher)
	svc := newService(mockDB, mockRefresher, mockKafka)

	before := snapshotWith(models.ShiftReport{Orders: 3, Total: 3, Confirmable: true})
	after := snapshotWith(models.ShiftReport{Orders: 3, Total: 3, Confirmed: true})
	mockRefresher.On("Rebuild", testRestaurant, testDate).Return(before, nil).Once()
	mockRefresher.On("Rebuild", testRestaurant, testDate).Return(after, nil).Once()

	enumErr := errors.New(`ERROR: invalid input value for enum order_status: "confirmed" (SQLSTATE=22P02)`)
	mockDB.On("ConfirmOrders", testRestaurant, testDate, models.ShiftLunch, testUser, true).Return(0, enumErr).Once()
	mockDB.On("ConfirmOrders", testRestaurant, testDate, models.ShiftLunch, testUser, false).Return(3, nil).Once()
	mockKafka.On("PublishShiftConfirmed", mock.Anything).Return(nil)

	snap, err := svc.Confirm(context.Background(), testRestaurant, testDate, models.ShiftLunch, testUser)

	assert.NoError(t, err)
	assert.True(t, snap.Lunch.Confirmed)
	mockDB.AssertExpectations(t)
}

func TestConfirmDoesNotRetryOtherFailures(t *testing.T) {
	mockDB := new(MockDBLayer)
	mockRefresher := new(MockRefresher)
	svc := newService(mockDB, mockRefresher, nil)

	mockRefresher.On("Rebuild", testRestaurant, testDate).
		Return(snapshotWith(models.ShiftReport{Orders: 3, Total: 3, Confirmable: true}), nil)
	mockDB.On("ConfirmOrders", testRestaurant, testDate, models.ShiftLunch, testUser, true).
		Return(0, errors.New("connection refused")).Once()

	_, err := svc.Confirm(context.Background(), testRestaurant, testDate, models.ShiftLunch, testUser)

	assert.Error(t, err)
	mockDB.AssertExpectations(t)
	mockDB.AssertNotCalled(t, "ConfirmOrders", testRestaurant, testDate, models.ShiftLunch, testUser, false)
}

func TestConfirmUnknownShift(t *testing.T) {
	svc := newService(new(MockDBLayer), new(MockRefresher), nil)

	_, err := svc.Confirm(context.Background(), testRestaurant, testDate, "breakfast", testUser)

	assert.Error(t, err)
}

func TestIsEnumRejection(t *testing.T) {
	assert.True(t, confirmation.IsEnumRejection(
		errors.New(`ERROR: invalid input value for enum order_status: "confirmed" (SQLSTATE=22P02)`)))
	assert.False(t, confirmation.IsEnumRejection(errors.New("connection refused")))
	assert.False(t, confirmation.IsEnumRejection(nil))
}
