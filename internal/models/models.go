package models

import "time"

// Image variants stored for every uploaded picture.
const (
	VariantThumb = "thumb"
	VariantFull  = "full"
)

// ValidVariant reports whether v names a stored image variant.
func ValidVariant(v string) bool {
	return v == VariantThumb || v == VariantFull
}

// Friend request lifecycle. Requests start pending and end in exactly one
// of the terminal states.
const (
	RequestPending  = "pending"
	RequestAccepted = "accepted"
	RequestDeclined = "declined"
)

// User represents an account row in PostgreSQL. Blob refs are backend
// specific (GridFS ids or S3 keys) and opaque to callers.
type User struct {
	ID              int64     `json:"id"`
	Username        string    `json:"username"`
	PasswordHash    string    `json:"-"`
	ProfilePicRef   string    `json:"-"`
	ProfileThumbRef string    `json:"-"`
	CreatedAt       time.Time `json:"created_at"`
}

// FriendRequest represents a directed friend request row
type FriendRequest struct {
	ID                int64     `json:"id"`
	RequesterID       int64     `json:"requester_id"`
	RequesterUsername string    `json:"requester_username"`
	ReceiverID        int64     `json:"receiver_id"`
	Status            string    `json:"status"`
	CreatedAt         time.Time `json:"created_at"`
}

// Friend is one accepted friendship seen from a user's side
type Friend struct {
	ID              int64  `json:"id"`
	Username        string `json:"username"`
	ProfileThumbRef string `json:"profile_thumb_ref,omitempty"`
}

// Photo is the metadata record referencing both blob variants. CreatedAt
// is epoch milliseconds assigned at write time.
type Photo struct {
	ID        string `json:"id" bson:"id" dynamodbav:"id"`
	OwnerID   int64  `json:"user_id" bson:"user_id" dynamodbav:"user_id"`
	Username  string `json:"username" bson:"username" dynamodbav:"username"`
	Topic     string `json:"topic" bson:"topic" dynamodbav:"topic"`
	Caption   string `json:"caption" bson:"caption" dynamodbav:"caption"`
	CreatedAt int64  `json:"timestamp" bson:"timestamp" dynamodbav:"timestamp"`
	Likes     int64  `json:"likes" bson:"likes" dynamodbav:"likes"`
	ThumbRef  string `json:"-" bson:"thumbnail_ref" dynamodbav:"thumbnail_ref"`
	FullRef   string `json:"-" bson:"full_ref" dynamodbav:"full_ref"`
}

// Comment is an append-only per-photo text record
type Comment struct {
	ID        string `json:"id" bson:"id" dynamodbav:"comment_id"`
	PhotoID   string `json:"photo_id" bson:"photo_id" dynamodbav:"-"`
	AuthorID  int64  `json:"user_id" bson:"user_id" dynamodbav:"user_id"`
	Username  string `json:"username" bson:"username" dynamodbav:"username"`
	Text      string `json:"text" bson:"text" dynamodbav:"text"`
	CreatedAt int64  `json:"timestamp" bson:"timestamp" dynamodbav:"timestamp"`
}

// Message is an append-only record in a two-party conversation
type Message struct {
	ID        string `json:"id" bson:"id" dynamodbav:"message_id"`
	FromID    int64  `json:"from_user_id" bson:"from_user_id" dynamodbav:"from_user_id"`
	FromName  string `json:"from_username" bson:"from_username" dynamodbav:"from_username"`
	ToID      int64  `json:"to_user_id" bson:"to_user_id" dynamodbav:"to_user_id"`
	Text      string `json:"text" bson:"text" dynamodbav:"text"`
	CreatedAt int64  `json:"timestamp" bson:"timestamp" dynamodbav:"timestamp"`
}

// ImageRefs holds the pair of blob references produced by an upload
type ImageRefs struct {
	Thumb string `json:"thumb"`
	Full  string `json:"full"`
}
