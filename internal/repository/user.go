package repository

import (
	"context"
	"errors"
	"fmt"

	"lumina-backend/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrDuplicateUsername is returned by Create when the username is taken.
var ErrDuplicateUsername = errors.New("username already exists")

// UserRepository handles database operations for users
type UserRepository struct {
	db *pgxpool.Pool
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db}
}

// Create inserts a new user and returns it with the assigned id.
// The unique constraint on username is the conflict authority; a
// violation surfaces as ErrDuplicateUsername, never a silent overwrite.
func (r *UserRepository) Create(ctx context.Context, username, passwordHash string) (*models.User, error) {
	query := `
		INSERT INTO users (username, password_hash)
		VALUES ($1, $2)
		RETURNING id, created_at
	`
	user := models.User{Username: username, PasswordHash: passwordHash}
	err := r.db.QueryRow(ctx, query, username, passwordHash).Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrDuplicateUsername
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return &user, nil
}

// GetByID retrieves a user by ID. Returns (nil, nil) when absent.
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	query := `
		SELECT id, username, password_hash, profile_pic_ref, profile_thumb_ref, created_at
		FROM users
		WHERE id = $1
	`
	return r.scanOne(r.db.QueryRow(ctx, query, id))
}

// GetByUsername retrieves a user by username. Returns (nil, nil) when absent.
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `
		SELECT id, username, password_hash, profile_pic_ref, profile_thumb_ref, created_at
		FROM users
		WHERE username = $1
	`
	return r.scanOne(r.db.QueryRow(ctx, query, username))
}

// UpdateProfileRefs swaps both profile picture refs in one statement so
// the old refs become unreachable from the user row at once.
func (r *UserRepository) UpdateProfileRefs(ctx context.Context, userID int64, fullRef, thumbRef string) error {
	query := `UPDATE users SET profile_pic_ref = $1, profile_thumb_ref = $2 WHERE id = $3`
	_, err := r.db.Exec(ctx, query, fullRef, thumbRef, userID)
	if err != nil {
		return fmt.Errorf("failed to update profile refs: %w", err)
	}
	return nil
}

func (r *UserRepository) scanOne(row pgx.Row) (*models.User, error) {
	var (
		user     models.User
		picRef   *string
		thumbRef *string
	)
	err := row.Scan(&user.ID, &user.Username, &user.PasswordHash, &picRef, &thumbRef, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if picRef != nil {
		user.ProfilePicRef = *picRef
	}
	if thumbRef != nil {
		user.ProfileThumbRef = *thumbRef
	}
	return &user, nil
}
