package repository

import (
	"context"
	"fmt"

	"lumina-backend/internal/models"

	"github.com/jackc/pgx/v5/pgxpool"
)

// FriendRepository handles database operations for friend requests
type FriendRepository struct {
	db *pgxpool.Pool
}

// NewFriendRepository creates a new friend repository
func NewFriendRepository(db *pgxpool.Pool) *FriendRepository {
	return &FriendRepository{db: db}
}

// CreateRequest inserts a pending request for the ordered pair
// (requester, receiver). Returns false without inserting when the
// requester targets themselves or an identical pending request exists.
// Requests in the reverse direction, and past accepted/declined
// requests, do not block a new one.
func (r *FriendRepository) CreateRequest(ctx context.Context, requesterID, receiverID int64) (bool, error) {
	if requesterID == receiverID {
		return false, nil
	}

	query := `
		SELECT EXISTS(
			SELECT 1 FROM friend_requests
			WHERE requester_id = $1 AND receiver_id = $2 AND status = 'pending'
		)
	`
	var exists bool
	if err := r.db.QueryRow(ctx, query, requesterID, receiverID).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check pending request: %w", err)
	}
	if exists {
		return false, nil
	}

	insert := `INSERT INTO friend_requests (requester_id, receiver_id) VALUES ($1, $2)`
	if _, err := r.db.Exec(ctx, insert, requesterID, receiverID); err != nil {
		return false, fmt.Errorf("failed to create friend request: %w", err)
	}
	return true, nil
}

// ListPendingFor retrieves pending requests addressed to userID, newest
// first, annotated with the requester's username.
func (r *FriendRepository) ListPendingFor(ctx context.Context, userID int64) ([]*models.FriendRequest, error) {
	query := `
		SELECT fr.id, fr.requester_id, u.username, fr.receiver_id, fr.status, fr.created_at
		FROM friend_requests fr
		JOIN users u ON u.id = fr.requester_id
		WHERE fr.receiver_id = $1 AND fr.status = 'pending'
		ORDER BY fr.created_at DESC, fr.id DESC
	`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list friend requests: %w", err)
	}
	defer rows.Close()

	var requests []*models.FriendRequest
	for rows.Next() {
		var req models.FriendRequest
		err := rows.Scan(&req.ID, &req.RequesterID, &req.RequesterUsername,
			&req.ReceiverID, &req.Status, &req.CreatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan friend request: %w", err)
		}
		requests = append(requests, &req)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating friend requests: %w", err)
	}
	return requests, nil
}

// Respond transitions a pending request to accepted or declined. The
// update matches on receiver and pending status, so a user cannot answer
// requests addressed to someone else and terminal requests stay terminal.
func (r *FriendRepository) Respond(ctx context.Context, requestID, receiverID int64, accept bool) (bool, error) {
	status := models.RequestDeclined
	if accept {
		status = models.RequestAccepted
	}
	query := `
		UPDATE friend_requests
		SET status = $1
		WHERE id = $2 AND receiver_id = $3 AND status = 'pending'
	`
	tag, err := r.db.Exec(ctx, query, status, requestID, receiverID)
	if err != nil {
		return false, fmt.Errorf("failed to respond to friend request: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ListFriends derives the symmetric friend list from accepted requests
// in either direction.
func (r *FriendRepository) ListFriends(ctx context.Context, userID int64) ([]*models.Friend, error) {
	query := `
		SELECT u.id, u.username, COALESCE(u.profile_thumb_ref, '')
		FROM friend_requests fr
		JOIN users u ON u.id = CASE WHEN fr.requester_id = $1 THEN fr.receiver_id ELSE fr.requester_id END
		WHERE fr.status = 'accepted' AND (fr.requester_id = $1 OR fr.receiver_id = $1)
		ORDER BY u.username
	`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list friends: %w", err)
	}
	defer rows.Close()

	var friends []*models.Friend
	for rows.Next() {
		var f models.Friend
		if err := rows.Scan(&f.ID, &f.Username, &f.ProfileThumbRef); err != nil {
			return nil, fmt.Errorf("failed to scan friend: %w", err)
		}
		friends = append(friends, &f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating friends: %w", err)
	}
	return friends, nil
}
