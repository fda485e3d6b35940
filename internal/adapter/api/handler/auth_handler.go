package handler

import (
	"log/slog"
	"net/http"

	"github.com/storepilot/storepilot/internal/domain"
	"github.com/storepilot/storepilot/internal/usecase"
)

// AuthHandler serves account registration and login.
type AuthHandler struct {
	auth   *usecase.AuthService
	logger *slog.Logger
}

func NewAuthHandler(auth *usecase.AuthService, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, logger: logger}
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Token string       `json:"token"`
	User  *domain.User `json:"user"`
}

func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	user, token, err := h.auth.Register(r.Context(), req.Email, req.Password)
	if err != nil {
		writeMappedError(w, h.logger, err)
		return
	}
	writeResponse(w, http.StatusCreated, authResponse{Token: token, User: user})
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeBody(r, &req); err != nil {
		writeBadRequest(w, "invalid request body")
		return
	}
	user, token, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeMappedError(w, h.logger, err)
		return
	}
	writeResponse(w, http.StatusOK, authResponse{Token: token, User: user})
}
