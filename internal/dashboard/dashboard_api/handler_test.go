package dashboard_api_test

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"

	"ms-meals/internal/auth"
	"ms-meals/internal/confirmation"
	"ms-meals/internal/dashboard"
	"ms-meals/internal/dashboard/dashboard_api"
	"ms-meals/internal/logger"
	"ms-meals/internal/models"
	"ms-meals/internal/utils"
)

// stubDB serves canned rows to the dashboard service.
type stubDB struct {
	authorized  bool
	contracts   []models.Contract
	orders      []models.Order
	lineCounts  map[string]int
	worksites   []models.Worksite
	restaurants []models.Restaurant
	users       map[string]*models.User
}

func (s *stubDB) ActiveContracts(ctx context.Context, restaurantID, date string) ([]models.Contract, error) {
	return s.contracts, nil
}

func (s *stubDB) OrdersByDate(ctx context.Context, restaurantID, date string) ([]models.Order, error) {
	return s.orders, nil
}

func (s *stubDB) IncludedLineCounts(ctx context.Context, orderIDs []string) (map[string]int, error) {
	return s.lineCounts, nil
}

func (s *stubDB) WorksitesByIDs(ctx context.Context, ids []string) ([]models.Worksite, error) {
	return s.worksites, nil
}

func (s *stubDB) RestaurantsForUser(ctx context.Context, userID string) ([]models.Restaurant, error) {
	return s.restaurants, nil
}

func (s *stubDB) UserHasRestaurant(ctx context.Context, userID, restaurantID string) (bool, error) {
	return s.authorized, nil
}

func (s *stubDB) UserByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (s *stubDB) UserByID(ctx context.Context, id string) (*models.User, error) {
	if u, ok := s.users[id]; ok {
		return u, nil
	}
	return nil, sql.ErrNoRows
}

type stubConfirmDB struct {
	updated int64
	err     error
	calls   int
}

func (s *stubConfirmDB) ConfirmOrders(ctx context.Context, restaurantID, date, shift, userID string, confirmedAt time.Time, withStatus bool) (int64, error) {
	s.calls++
	return s.updated, s.err
}

func newHandler(db *stubDB, confirmDB *stubConfirmDB) *dashboard_api.Handler {
	log := logger.NewLogger()
	dashboardService := dashboard.NewService(db, nil, log)
	confirmationService := confirmation.NewService(confirmDB, dashboardService, nil, log)
	return dashboard_api.NewHandler(dashboardService, confirmationService, db, log)
}

func doRequest(h http.HandlerFunc, method, target, body, userID, restaurantID string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))

	routeCtx := chi.NewRouteContext()
	routeCtx.URLParams.Add("restaurantID", restaurantID)
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, routeCtx)
	ctx = auth.WithUserID(ctx, userID)

	rec := httptest.NewRecorder()
	h(rec, req.WithContext(ctx))
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) utils.APIResponse {
	t.Helper()
	var resp utils.APIResponse
	assert.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	return resp
}

func TestGetSnapshotForbiddenWithoutLink(t *testing.T) {
	h := newHandler(&stubDB{authorized: false}, &stubConfirmDB{})

	rec := doRequest(h.GetSnapshot, http.MethodGet, "/api/v1/restaurants/rest-1/dashboard?date=2026-08-28", "", "user-1", "rest-1")

	assert.Equal(t, http.StatusForbidden, rec.Code)
	resp := decode(t, rec)
	assert.False(t, resp.Success)
}

func TestGetSnapshotRejectsBadDate(t *testing.T) {
	h := newHandler(&stubDB{authorized: true}, &stubConfirmDB{})

	rec := doRequest(h.GetSnapshot, http.MethodGet, "/api/v1/restaurants/rest-1/dashboard?date=28-08-2026", "", "user-1", "rest-1")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetSnapshotReturnsShiftReports(t *testing.T) {
	db := &stubDB{
		authorized: true,
		contracts:  []models.Contract{{LunchCutoff: "11:00:00"}},
		orders: []models.Order{
			{ID: "o1", WorksiteID: "w1", Shift: models.ShiftLunch},
		},
		lineCounts: map[string]int{"o1": 4},
		worksites:  []models.Worksite{{ID: "w1", Name: "Obra A"}},
	}
	h := newHandler(db, &stubConfirmDB{})

	rec := doRequest(h.GetSnapshot, http.MethodGet, "/api/v1/restaurants/rest-1/dashboard?date=2026-08-28", "", "user-1", "rest-1")

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decode(t, rec)
	assert.True(t, resp.Success)

	raw, err := json.Marshal(resp.Data)
	assert.NoError(t, err)
	var snap models.Snapshot
	assert.NoError(t, json.Unmarshal(raw, &snap))
	assert.Equal(t, 4, snap.Lunch.Total)
	assert.Equal(t, "11:00", snap.Lunch.Cutoff)
}

func TestConfirmBlockedShiftReturnsConflict(t *testing.T) {
	// Orders exist but the date is in the future, so the gate blocks.
	future := time.Now().AddDate(0, 0, 7).Format("2006-01-02")
	db := &stubDB{
		authorized: true,
		contracts:  []models.Contract{{LunchCutoff: "11:00:00"}},
		orders: []models.Order{
			{ID: "o1", WorksiteID: "w1", Shift: models.ShiftLunch},
		},
		lineCounts: map[string]int{"o1": 2},
		worksites:  []models.Worksite{{ID: "w1", Name: "Obra A"}},
	}
	confirmDB := &stubConfirmDB{}
	h := newHandler(db, confirmDB)

	body := `{"date":"` + future + `","shift":"lunch"}`
	rec := doRequest(h.Confirm, http.MethodPost, "/api/v1/restaurants/rest-1/confirmations", body, "user-1", "rest-1")

	assert.Equal(t, http.StatusConflict, rec.Code)
	assert.Equal(t, 0, confirmDB.calls, "blocked confirmations never reach the database")
}

func TestConfirmRejectsUnknownShift(t *testing.T) {
	h := newHandler(&stubDB{authorized: true}, &stubConfirmDB{})

	body := `{"date":"2026-08-28","shift":"breakfast"}`
	rec := doRequest(h.Confirm, http.MethodPost, "/api/v1/restaurants/rest-1/confirmations", body, "user-1", "rest-1")

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestListRestaurants(t *testing.T) {
	db := &stubDB{
		authorized: true,
		restaurants: []models.Restaurant{
			{ID: "rest-1", Name: "Cantina Central", Active: true},
		},
	}
	h := newHandler(db, &stubConfirmDB{})

	rec := doRequest(h.ListRestaurants, http.MethodGet, "/api/v1/restaurants", "", "user-1", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	resp := decode(t, rec)
	assert.True(t, resp.Success)
}
