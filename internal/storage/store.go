package storage

import (
	"context"
	"fmt"
	"image"
	"sort"

	"lumina-backend/internal/config"
	"lumina-backend/internal/models"
	"lumina-backend/internal/repository"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrUsernameTaken is returned by CreateUser when the username exists.
var ErrUsernameTaken = repository.ErrDuplicateUsername

// Store is the single interface the API layer talks to. Users and
// friendships always live in PostgreSQL; photos, comments, messages and
// image blobs live in the selected backend. Both backends satisfy the
// same behavioral contract:
//
//   - absent entities come back as zero values with a nil error, never
//     as an error ("not found" is data, not a failure)
//   - infrastructure failures propagate as errors
//   - like increments are atomic at the backend, safe under concurrent
//     callers
//   - blob variants are written before the metadata that references them
type Store interface {
	CreateUser(ctx context.Context, username, password string) (*models.User, error)
	Authenticate(ctx context.Context, username, password string) (*models.User, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	SaveProfilePicture(ctx context.Context, userID int64, img image.Image) (*models.ImageRefs, error)
	GetProfilePicture(ctx context.Context, userID int64, variant string) ([]byte, error)

	// ListPhotos returns photos ordered by creation time descending.
	// A nil ownerIDs means all photos; otherwise the union of the
	// given owners' photos.
	ListPhotos(ctx context.Context, ownerIDs []int64) ([]*models.Photo, error)
	AddPhoto(ctx context.Context, owner *models.User, topic, caption string, img image.Image) (*models.Photo, error)
	DeletePhoto(ctx context.Context, photoID string) (*models.Photo, error)
	GetPhoto(ctx context.Context, photoID string) (*models.Photo, error)
	// IncrementLike returns the post-increment count and whether the
	// photo exists.
	IncrementLike(ctx context.Context, photoID string) (int64, bool, error)
	GetImageBytes(ctx context.Context, photoID, variant string) ([]byte, error)

	ListComments(ctx context.Context, photoID string) ([]*models.Comment, error)
	AddComment(ctx context.Context, photoID string, author *models.User, text string) (*models.Comment, error)

	// SendFriendRequest returns false (not an error) on self-requests
	// and duplicate pending requests for the same ordered pair.
	SendFriendRequest(ctx context.Context, requesterID, receiverID int64) (bool, error)
	ListFriendRequests(ctx context.Context, userID int64) ([]*models.FriendRequest, error)
	RespondFriendRequest(ctx context.Context, requestID, receiverID int64, accept bool) (bool, error)
	ListFriends(ctx context.Context, userID int64) ([]*models.Friend, error)
	FriendIDs(ctx context.Context, userID int64) ([]int64, error)

	SendMessage(ctx context.Context, sender *models.User, toID int64, text string) (*models.Message, error)
	// ListMessages returns the 100 most recent messages of the
	// conversation in ascending order, regardless of argument order.
	ListMessages(ctx context.Context, userID, otherID int64) ([]*models.Message, error)

	Close(ctx context.Context) error
}

// blobStore is the backend-specific binary storage for image variants.
// put stores data under a suggested name and returns the reference the
// blob is addressable by afterwards (a generated id or the name itself).
// get returns (nil, nil) for unknown references.
type blobStore interface {
	put(ctx context.Context, name string, data []byte) (string, error)
	get(ctx context.Context, ref string) ([]byte, error)
	delete(ctx context.Context, ref string) error
}

// New constructs the backend named by cfg.Storage.Backend. The pgx pool
// is shared by both variants for the relational half of the contract.
func New(ctx context.Context, cfg *config.Config, db *pgxpool.Pool) (Store, error) {
	rel := newRelationalStore(db)
	switch cfg.Storage.Backend {
	case config.BackendMongo:
		return newMongoStore(ctx, cfg, rel)
	case config.BackendDynamo:
		return newDynamoStore(ctx, cfg, rel)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

// messageHistoryLimit caps conversation retrieval to the most recent
// messages; older history is not served.
const messageHistoryLimit = 100

// reverseMessages flips a newest-first fetch into ascending order.
func reverseMessages(msgs []*models.Message) {
	for i, j := 0, len(msgs)-1; i < j; i, j = i+1, j-1 {
		msgs[i], msgs[j] = msgs[j], msgs[i]
	}
}

// uniqueInt64 drops repeated ids, preserving first-seen order. Friend
// lists may name the same user twice when both directions of a request
// were accepted, and owner unions must not query a partition twice.
func uniqueInt64(ids []int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// uniqueStrings drops repeated ids, preserving first-seen order.
func uniqueStrings(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// sortPhotosDesc orders photos by creation time descending, newest
// first, with the id as a tie breaker so merged owner unions come out
// identically on both backends.
func sortPhotosDesc(photos []*models.Photo) {
	sort.SliceStable(photos, func(i, j int) bool {
		if photos[i].CreatedAt != photos[j].CreatedAt {
			return photos[i].CreatedAt > photos[j].CreatedAt
		}
		return photos[i].ID > photos[j].ID
	})
}
