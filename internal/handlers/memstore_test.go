package handlers

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	"sort"
	"sync"

	"lumina-backend/internal/models"
	"lumina-backend/internal/storage"
)

// memStore is an in-memory Store used to exercise the HTTP layer and
// the facade contract without live backends. Sentinel behavior mirrors
// the real implementations: absent entities are zero values, conflicts
// are booleans, passwords are verified (stored as-is; hashing is the
// real store's concern).
type memStore struct {
	mu       sync.Mutex
	nextUser int64
	nextReq  int64
	clock    int64
	users    map[int64]*models.User
	byName   map[string]int64
	requests []*models.FriendRequest
	photos   map[string]*models.Photo
	comments map[string][]*models.Comment
	messages map[string][]*models.Message
	blobs    map[string][]byte
	photoSeq int64
}

func newMemStore() *memStore {
	return &memStore{
		users:    make(map[int64]*models.User),
		byName:   make(map[string]int64),
		photos:   make(map[string]*models.Photo),
		comments: make(map[string][]*models.Comment),
		messages: make(map[string][]*models.Message),
		blobs:    make(map[string][]byte),
		clock:    1_700_000_000_000,
	}
}

func (m *memStore) tick() int64 {
	m.clock++
	return m.clock
}

func pairKey(a, b int64) string {
	if b < a {
		a, b = b, a
	}
	return fmt.Sprintf("%d#%d", a, b)
}

func encodeJPEG(img image.Image) []byte {
	var buf bytes.Buffer
	jpeg.Encode(&buf, img, nil)
	return buf.Bytes()
}

func (m *memStore) CreateUser(ctx context.Context, username, password string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.byName[username]; exists {
		return nil, storage.ErrUsernameTaken
	}
	m.nextUser++
	user := &models.User{ID: m.nextUser, Username: username, PasswordHash: password}
	m.users[user.ID] = user
	m.byName[username] = user.ID
	return user, nil
}

func (m *memStore) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byName[username]
	if !ok {
		return nil, nil
	}
	user := m.users[id]
	if user.PasswordHash != password {
		return nil, nil
	}
	return user, nil
}

func (m *memStore) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[id], nil
}

func (m *memStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byName[username]
	if !ok {
		return nil, nil
	}
	return m.users[id], nil
}

func (m *memStore) SaveProfilePicture(ctx context.Context, userID int64, img image.Image) (*models.ImageRefs, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[userID]
	if !ok {
		return nil, nil
	}
	refs := &models.ImageRefs{
		Thumb: fmt.Sprintf("profiles/%d_thumb.jpg", userID),
		Full:  fmt.Sprintf("profiles/%d_full.jpg", userID),
	}
	data := encodeJPEG(img)
	m.blobs[refs.Thumb] = data
	m.blobs[refs.Full] = data
	user.ProfileThumbRef = refs.Thumb
	user.ProfilePicRef = refs.Full
	return refs, nil
}

func (m *memStore) GetProfilePicture(ctx context.Context, userID int64, variant string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user, ok := m.users[userID]
	if !ok {
		return nil, nil
	}
	ref := user.ProfilePicRef
	if variant == models.VariantThumb {
		ref = user.ProfileThumbRef
	}
	if ref == "" {
		return nil, nil
	}
	return m.blobs[ref], nil
}

func (m *memStore) ListPhotos(ctx context.Context, ownerIDs []int64) ([]*models.Photo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Photo
	for _, p := range m.photos {
		if ownerIDs != nil {
			found := false
			for _, id := range ownerIDs {
				if p.OwnerID == id {
					found = true
					break
				}
			}
			if !found {
				continue
			}
		}
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt > out[j].CreatedAt
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (m *memStore) AddPhoto(ctx context.Context, owner *models.User, topic, caption string, img image.Image) (*models.Photo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.photoSeq++
	photo := &models.Photo{
		ID:        fmt.Sprintf("photo%04d", m.photoSeq),
		OwnerID:   owner.ID,
		Username:  owner.Username,
		Topic:     topic,
		Caption:   caption,
		CreatedAt: m.tick(),
		ThumbRef:  fmt.Sprintf("photos/p%d_thumb.jpg", m.photoSeq),
		FullRef:   fmt.Sprintf("photos/p%d_full.jpg", m.photoSeq),
	}
	data := encodeJPEG(img)
	m.blobs[photo.ThumbRef] = data
	m.blobs[photo.FullRef] = data
	m.photos[photo.ID] = photo
	return photo, nil
}

func (m *memStore) DeletePhoto(ctx context.Context, photoID string) (*models.Photo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	photo, ok := m.photos[photoID]
	if !ok {
		return nil, nil
	}
	delete(m.photos, photoID)
	delete(m.blobs, photo.ThumbRef)
	delete(m.blobs, photo.FullRef)
	delete(m.comments, photoID)
	return photo, nil
}

func (m *memStore) GetPhoto(ctx context.Context, photoID string) (*models.Photo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.photos[photoID], nil
}

func (m *memStore) IncrementLike(ctx context.Context, photoID string) (int64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	photo, ok := m.photos[photoID]
	if !ok {
		return 0, false, nil
	}
	photo.Likes++
	return photo.Likes, true, nil
}

func (m *memStore) GetImageBytes(ctx context.Context, photoID, variant string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	photo, ok := m.photos[photoID]
	if !ok {
		return nil, nil
	}
	ref := photo.FullRef
	if variant == models.VariantThumb {
		ref = photo.ThumbRef
	}
	return m.blobs[ref], nil
}

func (m *memStore) ListComments(ctx context.Context, photoID string) ([]*models.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	comments := append([]*models.Comment(nil), m.comments[photoID]...)
	sort.Slice(comments, func(i, j int) bool {
		return comments[i].CreatedAt > comments[j].CreatedAt
	})
	return comments, nil
}

func (m *memStore) AddComment(ctx context.Context, photoID string, author *models.User, text string) (*models.Comment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	comment := &models.Comment{
		ID:        fmt.Sprintf("comment%d", len(m.comments[photoID])+1),
		PhotoID:   photoID,
		AuthorID:  author.ID,
		Username:  author.Username,
		Text:      text,
		CreatedAt: m.tick(),
	}
	m.comments[photoID] = append(m.comments[photoID], comment)
	return comment, nil
}

func (m *memStore) SendFriendRequest(ctx context.Context, requesterID, receiverID int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if requesterID == receiverID {
		return false, nil
	}
	for _, r := range m.requests {
		if r.RequesterID == requesterID && r.ReceiverID == receiverID && r.Status == models.RequestPending {
			return false, nil
		}
	}
	m.nextReq++
	m.requests = append(m.requests, &models.FriendRequest{
		ID:                m.nextReq,
		RequesterID:       requesterID,
		RequesterUsername: m.users[requesterID].Username,
		ReceiverID:        receiverID,
		Status:            models.RequestPending,
	})
	return true, nil
}

func (m *memStore) ListFriendRequests(ctx context.Context, userID int64) ([]*models.FriendRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.FriendRequest
	for i := len(m.requests) - 1; i >= 0; i-- {
		r := m.requests[i]
		if r.ReceiverID == userID && r.Status == models.RequestPending {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memStore) RespondFriendRequest(ctx context.Context, requestID, receiverID int64, accept bool) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, r := range m.requests {
		if r.ID == requestID && r.ReceiverID == receiverID && r.Status == models.RequestPending {
			if accept {
				r.Status = models.RequestAccepted
			} else {
				r.Status = models.RequestDeclined
			}
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) ListFriends(ctx context.Context, userID int64) ([]*models.Friend, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Friend
	for _, r := range m.requests {
		if r.Status != models.RequestAccepted {
			continue
		}
		var otherID int64
		switch userID {
		case r.RequesterID:
			otherID = r.ReceiverID
		case r.ReceiverID:
			otherID = r.RequesterID
		default:
			continue
		}
		other := m.users[otherID]
		out = append(out, &models.Friend{
			ID:              other.ID,
			Username:        other.Username,
			ProfileThumbRef: other.ProfileThumbRef,
		})
	}
	return out, nil
}

func (m *memStore) FriendIDs(ctx context.Context, userID int64) ([]int64, error) {
	friends, err := m.ListFriends(ctx, userID)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(friends))
	for _, f := range friends {
		ids = append(ids, f.ID)
	}
	return ids, nil
}

func (m *memStore) SendMessage(ctx context.Context, sender *models.User, toID int64, text string) (*models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := pairKey(sender.ID, toID)
	msg := &models.Message{
		ID:        fmt.Sprintf("msg%d", len(m.messages[key])+1),
		FromID:    sender.ID,
		FromName:  sender.Username,
		ToID:      toID,
		Text:      text,
		CreatedAt: m.tick(),
	}
	m.messages[key] = append(m.messages[key], msg)
	return msg, nil
}

func (m *memStore) ListMessages(ctx context.Context, userID, otherID int64) ([]*models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msgs := append([]*models.Message(nil), m.messages[pairKey(userID, otherID)]...)
	sort.Slice(msgs, func(i, j int) bool { return msgs[i].CreatedAt < msgs[j].CreatedAt })
	if len(msgs) > 100 {
		msgs = msgs[len(msgs)-100:]
	}
	return msgs, nil
}

func (m *memStore) Close(ctx context.Context) error { return nil }
