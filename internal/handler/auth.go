package handler

import (
	"log/slog"
	"net/http"

	"github.com/GoArmGo/ProofGallery/internal/domain"
	"github.com/GoArmGo/ProofGallery/internal/usecase"
)

type credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type authResponse struct {
	Token string       `json:"token"`
	User  *domain.User `json:"user"`
}

// AuthHandler — регистрация и вход
type AuthHandler struct {
	auth   usecase.AuthUseCase
	logger *slog.Logger
}

func NewAuthHandler(auth usecase.AuthUseCase, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{auth: auth, logger: logger}
}

// Signup: POST /api/auth/signup
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := decodeJSON(r, &req); err != nil {
		respondWithDomainError(w, err, h.logger)
		return
	}

	token, user, err := h.auth.Signup(r.Context(), req.Email, req.Password)
	if err != nil {
		respondWithDomainError(w, err, h.logger)
		return
	}
	respondWithJSON(w, http.StatusCreated, authResponse{Token: token, User: user}, h.logger)
}

// Login: POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := decodeJSON(r, &req); err != nil {
		respondWithDomainError(w, err, h.logger)
		return
	}

	token, user, err := h.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		respondWithDomainError(w, err, h.logger)
		return
	}
	respondWithJSON(w, http.StatusOK, authResponse{Token: token, User: user}, h.logger)
}
