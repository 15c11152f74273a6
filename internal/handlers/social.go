package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"lumina-backend/internal/middleware"
	"lumina-backend/internal/models"
	"lumina-backend/internal/storage"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

// SocialHandler handles user lookup, profile pictures, friendships and
// messaging
type SocialHandler struct {
	store storage.Store
}

// NewSocialHandler creates a new social handler
func NewSocialHandler(store storage.Store) *SocialHandler {
	return &SocialHandler{store: store}
}

// LookupUser handles GET /api/users/lookup?username=
func (h *SocialHandler) LookupUser(w http.ResponseWriter, r *http.Request) {
	username := strings.TrimSpace(r.URL.Query().Get("username"))
	if username == "" {
		respondError(w, "username required", http.StatusBadRequest)
		return
	}

	target, err := h.store.GetUserByUsername(r.Context(), username)
	if err != nil {
		log.Error().Err(err).Str("username", username).Msg("Failed to look up user")
		respondError(w, "failed to look up user", http.StatusInternalServerError)
		return
	}
	if target == nil {
		respondError(w, "not found", http.StatusNotFound)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"id": target.ID, "username": target.Username})
}

// UploadProfilePicture handles POST /api/users/profile-picture
func (h *SocialHandler) UploadProfilePicture(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := middleware.GetUser(ctx)

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		respondError(w, "invalid multipart form", http.StatusBadRequest)
		return
	}
	file, _, err := r.FormFile("photo")
	if err != nil {
		respondError(w, "photo is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	img, err := storage.DecodeImage(file)
	if err != nil {
		respondError(w, "unable to process the uploaded file", http.StatusBadRequest)
		return
	}

	if _, err := h.store.SaveProfilePicture(ctx, user.ID, img); err != nil {
		log.Error().Err(err).Int64("user_id", user.ID).Msg("Failed to save profile picture")
		respondError(w, "failed to save profile picture", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "updated"})
}

// GetProfilePicture handles GET /api/users/{userID}/profile-picture/{variant}
func (h *SocialHandler) GetProfilePicture(w http.ResponseWriter, r *http.Request) {
	variant := chi.URLParam(r, "variant")
	if !models.ValidVariant(variant) {
		respondError(w, "invalid variant", http.StatusBadRequest)
		return
	}
	userID, err := strconv.ParseInt(chi.URLParam(r, "userID"), 10, 64)
	if err != nil {
		respondError(w, "invalid user id", http.StatusBadRequest)
		return
	}

	data, err := h.store.GetProfilePicture(r.Context(), userID, variant)
	if err != nil {
		log.Error().Err(err).Int64("user_id", userID).Msg("Failed to get profile picture")
		respondError(w, "failed to get profile picture", http.StatusInternalServerError)
		return
	}
	if data == nil {
		respondError(w, "not found", http.StatusNotFound)
		return
	}
	respondJPEG(w, data)
}

// SendFriendRequest handles POST /api/friends/request
func (h *SocialHandler) SendFriendRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := middleware.GetUser(ctx)

	var req struct {
		Username string `json:"username"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	req.Username = strings.TrimSpace(req.Username)
	if req.Username == "" {
		respondError(w, "username required", http.StatusBadRequest)
		return
	}

	target, err := h.store.GetUserByUsername(ctx, req.Username)
	if err != nil {
		log.Error().Err(err).Str("username", req.Username).Msg("Failed to look up user")
		respondError(w, "failed to send friend request", http.StatusInternalServerError)
		return
	}
	if target == nil {
		respondError(w, "user not found", http.StatusNotFound)
		return
	}

	ok, err := h.store.SendFriendRequest(ctx, user.ID, target.ID)
	if err != nil {
		log.Error().Err(err).Int64("user_id", user.ID).Int64("target_id", target.ID).
			Msg("Failed to send friend request")
		respondError(w, "failed to send friend request", http.StatusInternalServerError)
		return
	}
	if !ok {
		respondError(w, "request already exists or invalid", http.StatusBadRequest)
		return
	}
	respondJSON(w, http.StatusCreated, map[string]string{"message": "request sent"})
}

// ListFriendRequests handles GET /api/friends/requests
func (h *SocialHandler) ListFriendRequests(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := middleware.GetUser(ctx)

	requests, err := h.store.ListFriendRequests(ctx, user.ID)
	if err != nil {
		log.Error().Err(err).Int64("user_id", user.ID).Msg("Failed to list friend requests")
		respondError(w, "failed to list friend requests", http.StatusInternalServerError)
		return
	}
	if requests == nil {
		requests = []*models.FriendRequest{}
	}
	respondJSON(w, http.StatusOK, requests)
}

// RespondFriendRequest handles POST /api/friends/respond
func (h *SocialHandler) RespondFriendRequest(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := middleware.GetUser(ctx)

	var req struct {
		RequestID int64  `json:"request_id"`
		Action    string `json:"action"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.RequestID == 0 || (req.Action != "accept" && req.Action != "decline") {
		respondError(w, "invalid payload", http.StatusBadRequest)
		return
	}

	ok, err := h.store.RespondFriendRequest(ctx, req.RequestID, user.ID, req.Action == "accept")
	if err != nil {
		log.Error().Err(err).Int64("request_id", req.RequestID).
			Msg("Failed to respond to friend request")
		respondError(w, "failed to respond to friend request", http.StatusInternalServerError)
		return
	}
	if !ok {
		respondError(w, "not found", http.StatusNotFound)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"message": "updated"})
}

// ListFriends handles GET /api/friends
func (h *SocialHandler) ListFriends(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := middleware.GetUser(ctx)

	friends, err := h.store.ListFriends(ctx, user.ID)
	if err != nil {
		log.Error().Err(err).Int64("user_id", user.ID).Msg("Failed to list friends")
		respondError(w, "failed to list friends", http.StatusInternalServerError)
		return
	}
	if friends == nil {
		friends = []*models.Friend{}
	}
	respondJSON(w, http.StatusOK, friends)
}

// SendMessage handles POST /api/messages
func (h *SocialHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := middleware.GetUser(ctx)

	var req struct {
		ToUserID int64  `json:"to_user_id"`
		Text     string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	req.Text = strings.TrimSpace(req.Text)
	if req.ToUserID == 0 || req.Text == "" {
		respondError(w, "to_user_id and text required", http.StatusBadRequest)
		return
	}

	msg, err := h.store.SendMessage(ctx, user, req.ToUserID, req.Text)
	if err != nil {
		log.Error().Err(err).Int64("user_id", user.ID).Int64("to_user_id", req.ToUserID).
			Msg("Failed to send message")
		respondError(w, "failed to send message", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusCreated, msg)
}

// ListMessages handles GET /api/messages?user_id=
func (h *SocialHandler) ListMessages(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := middleware.GetUser(ctx)

	otherID, err := strconv.ParseInt(r.URL.Query().Get("user_id"), 10, 64)
	if err != nil {
		respondError(w, "user_id required", http.StatusBadRequest)
		return
	}

	msgs, err := h.store.ListMessages(ctx, user.ID, otherID)
	if err != nil {
		log.Error().Err(err).Int64("user_id", user.ID).Int64("other_id", otherID).
			Msg("Failed to list messages")
		respondError(w, "failed to list messages", http.StatusInternalServerError)
		return
	}
	if msgs == nil {
		msgs = []*models.Message{}
	}
	respondJSON(w, http.StatusOK, msgs)
}
