package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"ping/application/ports"
	"ping/domain/user"
	"ping/pkg/auth"
	apperrors "ping/pkg/errors"
)

// AuthHandler serves registration, login and identity echo. These are the
// public issuing surface of the token gate.
type AuthHandler struct {
	users    ports.UserStore
	tokens   *auth.TokenService
	validate *validator.Validate
	logger   *zap.Logger
}

// NewAuthHandler creates an auth handler.
func NewAuthHandler(users ports.UserStore, tokens *auth.TokenService, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{
		users:    users,
		tokens:   tokens,
		validate: validator.New(),
		logger:   logger,
	}
}

// RegisterRequest is the registration payload.
type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=64"`
	Password string `json:"password" validate:"required,min=8,max=128"`
	Avatar   string `json:"avatar" validate:"omitempty,url"`
}

// LoginRequest is the login payload.
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// TokenResponse carries a freshly issued bearer token.
type TokenResponse struct {
	Token    string `json:"token"`
	Username string `json:"username"`
}

// Register creates an account and issues its first token.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, apperrors.NewValidation("invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondError(w, apperrors.NewValidation("invalid registration payload"))
		return
	}

	account, err := user.New(req.Username, req.Password, req.Avatar)
	if err != nil {
		respondError(w, apperrors.NewValidation(err.Error()))
		return
	}
	if err := h.users.CreateUser(r.Context(), account); err != nil {
		respondError(w, err)
		return
	}

	token, err := h.tokens.Issue(account.Identity())
	if err != nil {
		h.logger.Error("Failed to issue token", zap.Error(err))
		respondError(w, apperrors.NewInternal("could not issue token"))
		return
	}

	h.logger.Info("User registered", zap.String("username", account.Username))
	respondJSON(w, http.StatusCreated, TokenResponse{Token: token, Username: account.Username})
}

// Login verifies credentials and issues a token. Bad username and bad
// password are indistinguishable to the caller.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, apperrors.NewValidation("invalid request body"))
		return
	}
	if err := h.validate.Struct(req); err != nil {
		respondError(w, apperrors.NewValidation("username and password required"))
		return
	}

	account, err := h.users.UserByUsername(r.Context(), req.Username)
	if err != nil || !account.CheckPassword(req.Password) {
		respondError(w, apperrors.NewUnauthorized("invalid credentials"))
		return
	}

	token, err := h.tokens.Issue(account.Identity())
	if err != nil {
		h.logger.Error("Failed to issue token", zap.Error(err))
		respondError(w, apperrors.NewInternal("could not issue token"))
		return
	}

	h.logger.Info("User logged in", zap.String("username", account.Username))
	respondJSON(w, http.StatusOK, TokenResponse{Token: token, Username: account.Username})
}

// Me echoes the authenticated identity with its stored profile fields.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	identity, err := auth.IdentityFromContext(r.Context())
	if err != nil {
		respondError(w, apperrors.NewUnauthorized("Authentication required"))
		return
	}
	account, err := h.users.UserByUsername(r.Context(), identity.Username)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"username": account.Username,
		"avatar":   account.Avatar,
		"roles":    auth.RoleNames(account.Roles),
	})
}
