package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"lumina-backend/internal/middleware"
	"lumina-backend/internal/models"
	"lumina-backend/internal/storage"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

const maxUploadBytes = 32 << 20

// PhotoHandler handles photo-related HTTP requests. Handlers talk to
// the storage facade only; the backend choice is invisible here.
type PhotoHandler struct {
	store storage.Store
}

// NewPhotoHandler creates a new photo handler
func NewPhotoHandler(store storage.Store) *PhotoHandler {
	return &PhotoHandler{store: store}
}

type photoResponse struct {
	ID        string `json:"id"`
	UserID    int64  `json:"user_id"`
	Username  string `json:"username"`
	Topic     string `json:"topic"`
	Caption   string `json:"caption"`
	Timestamp int64  `json:"timestamp"`
	Likes     int64  `json:"likes"`
	Thumbnail string `json:"thumbnail"`
	FullRes   string `json:"fullRes"`
}

func serializePhoto(p *models.Photo) photoResponse {
	return photoResponse{
		ID:        p.ID,
		UserID:    p.OwnerID,
		Username:  p.Username,
		Topic:     p.Topic,
		Caption:   p.Caption,
		Timestamp: p.CreatedAt,
		Likes:     p.Likes,
		Thumbnail: fmt.Sprintf("/api/photos/%s/image/thumb", p.ID),
		FullRes:   fmt.Sprintf("/api/photos/%s/image/full", p.ID),
	}
}

// ListPhotos handles GET /api/photos. The scope parameter is resolved
// to a set of owner ids before the facade call: "profile" is the caller
// alone, "home" (the default when scope is absent) is the caller plus
// friends, anything else is all photos. Topic and free-text filters
// apply after retrieval.
func (h *PhotoHandler) ListPhotos(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := middleware.GetUser(ctx)

	var ownerIDs []int64
	switch r.URL.Query().Get("scope") {
	case "profile":
		ownerIDs = []int64{user.ID}
	case "home", "":
		friendIDs, err := h.store.FriendIDs(ctx, user.ID)
		if err != nil {
			log.Error().Err(err).Int64("user_id", user.ID).Msg("Failed to resolve friend ids")
			respondError(w, "failed to list photos", http.StatusInternalServerError)
			return
		}
		ownerIDs = append([]int64{user.ID}, friendIDs...)
	default:
		ownerIDs = nil
	}

	photos, err := h.store.ListPhotos(ctx, ownerIDs)
	if err != nil {
		log.Error().Err(err).Int64("user_id", user.ID).Msg("Failed to list photos")
		respondError(w, "failed to list photos", http.StatusInternalServerError)
		return
	}

	topicFilter := strings.ToLower(r.URL.Query().Get("topic"))
	searchQuery := strings.ToLower(r.URL.Query().Get("q"))

	out := make([]photoResponse, 0, len(photos))
	for _, p := range photos {
		if topicFilter != "" && strings.ToLower(p.Topic) != topicFilter {
			continue
		}
		if searchQuery != "" &&
			!strings.Contains(strings.ToLower(p.Topic), searchQuery) &&
			!strings.Contains(strings.ToLower(p.Username), searchQuery) {
			continue
		}
		out = append(out, serializePhoto(p))
	}
	respondJSON(w, http.StatusOK, out)
}

// UploadPhoto handles POST /api/photos (multipart: photo, topic, caption)
func (h *PhotoHandler) UploadPhoto(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := middleware.GetUser(ctx)

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		respondError(w, "invalid multipart form", http.StatusBadRequest)
		return
	}
	topic := strings.TrimSpace(r.FormValue("topic"))
	caption := strings.TrimSpace(r.FormValue("caption"))

	file, _, err := r.FormFile("photo")
	if topic == "" || err != nil {
		respondError(w, "topic and photo are required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	img, err := storage.DecodeImage(file)
	if err != nil {
		respondError(w, "unable to process the uploaded file", http.StatusBadRequest)
		return
	}

	photo, err := h.store.AddPhoto(ctx, user, topic, caption, img)
	if err != nil {
		log.Error().Err(err).Int64("user_id", user.ID).Msg("Failed to add photo")
		respondError(w, "failed to upload photo", http.StatusInternalServerError)
		return
	}

	log.Info().Str("photo_id", photo.ID).Int64("user_id", user.ID).Msg("Photo uploaded")
	respondJSON(w, http.StatusCreated, map[string]string{"id": photo.ID})
}

// DeletePhoto handles DELETE /api/photos/{photoID}
func (h *PhotoHandler) DeletePhoto(w http.ResponseWriter, r *http.Request) {
	photoID := chi.URLParam(r, "photoID")

	deleted, err := h.store.DeletePhoto(r.Context(), photoID)
	if err != nil {
		log.Error().Err(err).Str("photo_id", photoID).Msg("Failed to delete photo")
		respondError(w, "failed to delete photo", http.StatusInternalServerError)
		return
	}
	if deleted == nil {
		respondError(w, "photo not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// LikePhoto handles POST /api/photos/{photoID}/like
func (h *PhotoHandler) LikePhoto(w http.ResponseWriter, r *http.Request) {
	photoID := chi.URLParam(r, "photoID")

	likes, found, err := h.store.IncrementLike(r.Context(), photoID)
	if err != nil {
		log.Error().Err(err).Str("photo_id", photoID).Msg("Failed to like photo")
		respondError(w, "failed to like photo", http.StatusInternalServerError)
		return
	}
	if !found {
		respondError(w, "photo not found", http.StatusNotFound)
		return
	}
	respondJSON(w, http.StatusOK, map[string]int64{"likes": likes})
}

// ListComments handles GET /api/photos/{photoID}/comments
func (h *PhotoHandler) ListComments(w http.ResponseWriter, r *http.Request) {
	photoID := chi.URLParam(r, "photoID")

	comments, err := h.store.ListComments(r.Context(), photoID)
	if err != nil {
		log.Error().Err(err).Str("photo_id", photoID).Msg("Failed to list comments")
		respondError(w, "failed to list comments", http.StatusInternalServerError)
		return
	}
	if comments == nil {
		comments = []*models.Comment{}
	}
	respondJSON(w, http.StatusOK, comments)
}

// AddComment handles POST /api/photos/{photoID}/comments
func (h *PhotoHandler) AddComment(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := middleware.GetUser(ctx)
	photoID := chi.URLParam(r, "photoID")

	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "invalid request body", http.StatusBadRequest)
		return
	}
	req.Text = strings.TrimSpace(req.Text)
	if req.Text == "" {
		respondError(w, "text required", http.StatusBadRequest)
		return
	}

	photo, err := h.store.GetPhoto(ctx, photoID)
	if err != nil {
		log.Error().Err(err).Str("photo_id", photoID).Msg("Failed to get photo")
		respondError(w, "failed to add comment", http.StatusInternalServerError)
		return
	}
	if photo == nil {
		respondError(w, "photo not found", http.StatusNotFound)
		return
	}

	comment, err := h.store.AddComment(ctx, photoID, user, req.Text)
	if err != nil {
		log.Error().Err(err).Str("photo_id", photoID).Msg("Failed to add comment")
		respondError(w, "failed to add comment", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusCreated, comment)
}

// GetImage handles GET /api/photos/{photoID}/image/{variant}
func (h *PhotoHandler) GetImage(w http.ResponseWriter, r *http.Request) {
	photoID := chi.URLParam(r, "photoID")
	variant := chi.URLParam(r, "variant")
	if !models.ValidVariant(variant) {
		respondError(w, "invalid variant", http.StatusBadRequest)
		return
	}

	data, err := h.store.GetImageBytes(r.Context(), photoID, variant)
	if err != nil {
		log.Error().Err(err).Str("photo_id", photoID).Msg("Failed to get image")
		respondError(w, "failed to get image", http.StatusInternalServerError)
		return
	}
	if data == nil {
		respondError(w, "not found", http.StatusNotFound)
		return
	}
	respondJPEG(w, data)
}
