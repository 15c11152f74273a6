package storage

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// newID generates an opaque, globally unique id for photos, comments
// and messages.
func newID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func nowMillis() int64 {
	return time.Now().UnixMilli()
}

// conversationKey is the canonical identifier for a two-party thread:
// the lower user id always comes first, so both participants resolve
// the same key.
func conversationKey(a, b int64) string {
	if b < a {
		a, b = b, a
	}
	return fmt.Sprintf("%d#%d", a, b)
}

// timeSortKey orders records chronologically under one partition.
// Epoch milliseconds keep a fixed digit count for the foreseeable
// future, so lexicographic order matches numeric order; the id breaks
// ties between same-millisecond writes.
func timeSortKey(ts int64, id string) string {
	return fmt.Sprintf("%d#%s", ts, id)
}

func photoBlobName(photoID, variant string) string {
	return fmt.Sprintf("photos/%s_%s.jpg", photoID, variant)
}

func profileBlobName(userID int64, variant string) string {
	return fmt.Sprintf("profiles/%d_%s.jpg", userID, variant)
}
