package storage

import (
	"context"
	"fmt"
	"image"

	"lumina-backend/internal/models"
	"lumina-backend/internal/repository"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

const bcryptCost = 12

// dummyHash keeps Authenticate doing a bcrypt comparison even for
// unknown usernames, so the two failure modes are indistinguishable.
var dummyHash = []byte("$2a$12$R9h/cIPz0gi.URNNX3kh2OPST9/PgBkqquzi.Ss7KIUgO2t0jWMUW")

// relationalStore implements the user and friendship half of the Store
// contract on PostgreSQL. Both backends embed it.
type relationalStore struct {
	users   *repository.UserRepository
	friends *repository.FriendRepository
}

func newRelationalStore(db *pgxpool.Pool) *relationalStore {
	return &relationalStore{
		users:   repository.NewUserRepository(db),
		friends: repository.NewFriendRepository(db),
	}
}

// CreateUser stores a bcrypt hash, never the plaintext password.
func (s *relationalStore) CreateUser(ctx context.Context, username, password string) (*models.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	return s.users.Create(ctx, username, string(hash))
}

// Authenticate returns (nil, nil) on unknown user or password mismatch.
func (s *relationalStore) Authenticate(ctx context.Context, username, password string) (*models.User, error) {
	user, err := s.users.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return nil, nil
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, nil
	}
	return user, nil
}

func (s *relationalStore) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	return s.users.GetByID(ctx, id)
}

func (s *relationalStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return s.users.GetByUsername(ctx, username)
}

func (s *relationalStore) SendFriendRequest(ctx context.Context, requesterID, receiverID int64) (bool, error) {
	return s.friends.CreateRequest(ctx, requesterID, receiverID)
}

func (s *relationalStore) ListFriendRequests(ctx context.Context, userID int64) ([]*models.FriendRequest, error) {
	return s.friends.ListPendingFor(ctx, userID)
}

func (s *relationalStore) RespondFriendRequest(ctx context.Context, requestID, receiverID int64, accept bool) (bool, error) {
	return s.friends.Respond(ctx, requestID, receiverID, accept)
}

func (s *relationalStore) ListFriends(ctx context.Context, userID int64) ([]*models.Friend, error) {
	return s.friends.ListFriends(ctx, userID)
}

func (s *relationalStore) FriendIDs(ctx context.Context, userID int64) ([]int64, error) {
	friends, err := s.friends.ListFriends(ctx, userID)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, 0, len(friends))
	for _, f := range friends {
		ids = append(ids, f.ID)
	}
	return ids, nil
}

// saveProfilePicture renders both variants, writes them to the blob
// store, swaps the refs on the user row, then best-effort deletes the
// previous blobs. Replaced refs become unreachable from the user record
// as soon as the update lands; orphans from failed cleanup are tolerated.
func (s *relationalStore) saveProfilePicture(ctx context.Context, blobs blobStore, userID int64, img image.Image) (*models.ImageRefs, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, nil
	}

	thumbBytes, err := renderVariant(img, profileThumbWidth)
	if err != nil {
		return nil, err
	}
	fullBytes, err := renderVariant(img, profileFullWidth)
	if err != nil {
		return nil, err
	}

	thumbRef, err := blobs.put(ctx, profileBlobName(userID, models.VariantThumb), thumbBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to store profile thumbnail: %w", err)
	}
	fullRef, err := blobs.put(ctx, profileBlobName(userID, models.VariantFull), fullBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to store profile picture: %w", err)
	}

	if err := s.users.UpdateProfileRefs(ctx, userID, fullRef, thumbRef); err != nil {
		return nil, err
	}

	for _, old := range []string{user.ProfilePicRef, user.ProfileThumbRef} {
		if old == "" || old == fullRef || old == thumbRef {
			continue
		}
		if err := blobs.delete(ctx, old); err != nil {
			log.Warn().Err(err).Str("ref", old).Msg("Failed to delete replaced profile blob")
		}
	}

	return &models.ImageRefs{Thumb: thumbRef, Full: fullRef}, nil
}

// getProfilePicture returns (nil, nil) when the user or the requested
// variant does not exist.
func (s *relationalStore) getProfilePicture(ctx context.Context, blobs blobStore, userID int64, variant string) ([]byte, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, nil
	}
	ref := user.ProfilePicRef
	if variant == models.VariantThumb {
		ref = user.ProfileThumbRef
	}
	if ref == "" {
		return nil, nil
	}
	return blobs.get(ctx, ref)
}
