package auth_api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"ms-meals/internal/auth"
	"ms-meals/internal/logger"
	"ms-meals/internal/utils"
)

type Handler struct {
	Auth   *auth.Service
	Logger *logger.Logger
}

func NewHandler(authService *auth.Service, log *logger.Logger) *Handler {
	return &Handler{Auth: authService, Logger: log}
}

type loginLinkRequest struct {
	Email      string `json:"email"`
	RedirectTo string `json:"redirect_to,omitempty"`
}

// RequestLoginLink emails a one-time login link. The response is the same
// for known and unknown addresses.
func (h *Handler) RequestLoginLink(w http.ResponseWriter, r *http.Request) {
	var req loginLinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}

	email := strings.TrimSpace(req.Email)
	if email == "" || !strings.Contains(email, "@") {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("A valid email is required", "invalid email"))
		return
	}

	if err := h.Auth.RequestLoginLink(r.Context(), email, req.RedirectTo); err != nil {
		h.Logger.Error("AUTH", fmt.Sprintf("RequestLoginLink: %v", err))
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Could not send login link", err.Error()))
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("If the address is registered, a login link is on its way", nil))
}

type sessionRequest struct {
	Code         string `json:"code,omitempty"`
	AccessToken  string `json:"access_token,omitempty"`
	RefreshToken string `json:"refresh_token,omitempty"`
}

// CreateSession exchanges either a one-time code or a token pair for a
// session.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("Invalid request body", err.Error()))
		return
	}

	var (
		session *auth.Session
		err     error
	)
	switch {
	case req.Code != "":
		session, err = h.Auth.ExchangeCode(r.Context(), req.Code)
	case req.AccessToken != "" && req.RefreshToken != "":
		session, err = h.Auth.ExchangeTokenPair(r.Context(), req.AccessToken, req.RefreshToken)
	default:
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("A code or a token pair is required", "missing credentials"))
		return
	}

	if err != nil {
		if errors.Is(err, auth.ErrInvalidSession) {
			utils.WriteJSON(w, http.StatusUnauthorized, utils.ErrorResponse("Login link is invalid or expired", err.Error()))
			return
		}
		h.Logger.Error("AUTH", fmt.Sprintf("CreateSession: %v", err))
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Could not create session", err.Error()))
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Signed in", session))
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

func (h *Handler) RefreshSession(w http.ResponseWriter, r *http.Request) {
	var req refreshRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.RefreshToken == "" {
		utils.WriteJSON(w, http.StatusBadRequest, utils.ErrorResponse("A refresh token is required", "missing refresh_token"))
		return
	}

	session, err := h.Auth.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidSession) {
			utils.WriteJSON(w, http.StatusUnauthorized, utils.ErrorResponse("Session expired, sign in again", err.Error()))
			return
		}
		h.Logger.Error("AUTH", fmt.Sprintf("RefreshSession: %v", err))
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Could not refresh session", err.Error()))
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Session refreshed", session))
}

// SignOut revokes the presented access token.
func (h *Handler) SignOut(w http.ResponseWriter, r *http.Request) {
	token, err := auth.BearerToken(r)
	if err != nil {
		utils.WriteJSON(w, http.StatusUnauthorized, utils.ErrorResponse("Authentication required", err.Error()))
		return
	}

	if err := h.Auth.SignOut(r.Context(), token); err != nil {
		if errors.Is(err, auth.ErrInvalidSession) {
			utils.WriteJSON(w, http.StatusUnauthorized, utils.ErrorResponse("Session already invalid", err.Error()))
			return
		}
		h.Logger.Error("AUTH", fmt.Sprintf("SignOut: %v", err))
		utils.WriteJSON(w, http.StatusInternalServerError, utils.ErrorResponse("Could not sign out", err.Error()))
		return
	}

	utils.WriteJSON(w, http.StatusOK, utils.SuccessResponse("Signed out", nil))
}
