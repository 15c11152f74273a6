package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"lumina-backend/internal/middleware"
	"lumina-backend/internal/services"
	"lumina-backend/internal/storage"

	"github.com/rs/zerolog/log"
)

// AuthHandler handles signup, login and session introspection
type AuthHandler struct {
	auth *services.AuthService
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(auth *services.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type sessionResponse struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Token    string `json:"token"`
}

// Signup handles POST /api/auth/signup
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		respondError(w, "username and password are required", http.StatusBadRequest)
		return
	}

	user, token, err := h.auth.Signup(r.Context(), req.Username, req.Password)
	if err != nil {
		if errors.Is(err, storage.ErrUsernameTaken) {
			respondError(w, "username already exists", http.StatusConflict)
			return
		}
		log.Error().Err(err).Str("username", req.Username).Msg("Failed to sign up user")
		respondError(w, "failed to create user", http.StatusInternalServerError)
		return
	}

	log.Info().Int64("user_id", user.ID).Str("username", user.Username).Msg("User created")
	respondJSON(w, http.StatusCreated, sessionResponse{ID: user.ID, Username: user.Username, Token: token})
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" || req.Password == "" {
		respondError(w, "username and password are required", http.StatusBadRequest)
		return
	}

	user, token, err := h.auth.Login(r.Context(), req.Username, req.Password)
	if err != nil {
		log.Error().Err(err).Msg("Failed to log in user")
		respondError(w, "failed to log in", http.StatusInternalServerError)
		return
	}
	if user == nil {
		respondError(w, "invalid credentials", http.StatusUnauthorized)
		return
	}

	respondJSON(w, http.StatusOK, sessionResponse{ID: user.ID, Username: user.Username, Token: token})
}

// Logout handles POST /api/auth/logout. Tokens are stateless; the
// client discards its copy.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusNoContent)
}

// Me handles GET /api/auth/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := middleware.GetUser(r.Context())
	respondJSON(w, http.StatusOK, map[string]any{
		"id":           user.ID,
		"username":     user.Username,
		"profilePic":   fmt.Sprintf("/api/users/%d/profile-picture/full", user.ID),
		"profileThumb": fmt.Sprintf("/api/users/%d/profile-picture/thumb", user.ID),
	})
}
