package dashboard_api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"ms-meals/internal/auth"
	"ms-meals/internal/confirmation"
	"ms-meals/internal/dashboard"
	"ms-meals/internal/logger"
	"ms-meals/internal/models"
	"ms-meals/internal/utils"
)

const dateLayout = "2006-01-02"

type Handler struct {
	Dashboard    *dashboard.Service
	Confirmation *confirmation.Service
	Users        auth.UserStore
	Logger       *logger.Logger
}

func NewHandler(dashboardService *dashboard.Service, confirmationService *confirmation.Service, users auth.UserStore, log *logger.Logger) *Handler {
	return &Handler{
		Dashboard:    dashboardService,
		Confirmation: confirmationService,
		Users:        users,
		Logger:       log,
	}
}

// Me returns the signed-in user and the restaurants they may manage.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	user, err := h.Users.UserByID(r.Context(), userID)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("Me: %v", err))
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Could not load profile", err.Error()))
		return
	}

	restaurants, err := h.Dashboard.Restaurants(r.Context(), userID)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("Me: restaurants: %v", err))
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Could not load restaurants", err.Error()))
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Profile loaded", map[string]interface{}{
		"user":        user,
		"restaurants": restaurants,
	}))
}

// ListRestaurants returns the restaurants the signed-in user may manage.
func (h *Handler) ListRestaurants(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())

	restaurants, err := h.Dashboard.Restaurants(r.Context(), userID)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("ListRestaurants: %v", err))
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Could not load restaurants", err.Error()))
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Restaurants loaded", restaurants))
}

// GetSnapshot serves the per-shift totals, breakdown, cutoff and confirm
// flags for one restaurant and date. Date defaults to today.
func (h *Handler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	restaurantID := chi.URLParam(r, "restaurantID")

	date := r.URL.Query().Get("date")
	if date == "" {
		date = time.Now().Format(dateLayout)
	}
	if _, err := time.Parse(dateLayout, date); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Date must be YYYY-MM-DD", err.Error()))
		return
	}

	if !h.authorize(w, r, userID, restaurantID) {
		return
	}

	snap, err := h.Dashboard.Snapshot(r.Context(), restaurantID, date)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("GetSnapshot: %v", err))
		utils.WriteJSON(w, http.StatusBadGateway, utils.ErrorResponse("Could not load the dashboard", err.Error()))
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Dashboard loaded", snap))
}

type confirmRequest struct {
	Date  string `json:"date"`
	Shift string `json:"shift"`
}

// Confirm commits the confirmation for one shift and returns the refreshed
// snapshot.
func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	userID := auth.UserID(r.Context())
	restaurantID := chi.URLParam(r, "restaurantID")

	var req confirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}
	if _, err := time.Parse(dateLayout, req.Date); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Date must be YYYY-MM-DD", err.Error()))
		return
	}
	if !models.ValidShift(req.Shift) {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Shift must be lunch or dinner", "unknown shift"))
		return
	}

	if !h.authorize(w, r, userID, restaurantID) {
		return
	}

	snap, err := h.Confirmation.Confirm(r.Context(), restaurantID, req.Date, req.Shift, userID)
	if err != nil {
		switch {
		case errors.Is(err, confirmation.ErrAlreadyConfirmed):
			utils.WriteJSON(w, http.StatusConflict, utils.ErrorResponse("Shift is already confirmed", err.Error()))
		case errors.Is(err, confirmation.ErrNotConfirmable):
			utils.WriteJSON(w, http.StatusConflict, utils.ErrorResponse("Shift cannot be confirmed yet", err.Error()))
		case errors.Is(err, confirmation.ErrNoOrders):
			utils.WriteJSON(w, http.StatusConflict, utils.ErrorResponse("There are no orders to confirm", err.Error()))
		default:
			h.Logger.Error("API", fmt.Sprintf("Confirm: %v", err))
			utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Could not confirm the shift", err.Error()))
		}
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Shift confirmed", snap))
}

func (h *Handler) authorize(w http.ResponseWriter, r *http.Request, userID, restaurantID string) bool {
	ok, err := h.Dashboard.Authorize(r.Context(), userID, restaurantID)
	if err != nil {
		h.Logger.Error("API", fmt.Sprintf("authorize: %v", err))
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Could not verify access", err.Error()))
		return false
	}
	if !ok {
		utils.WriteJSON(w, http.StatusForbidden, utils.ErrorResponse("No access to this restaurant", "restaurant not linked to user"))
		return false
	}
	return true
}
