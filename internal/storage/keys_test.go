package storage

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConversationKey_Symmetric(t *testing.T) {
	assert.Equal(t, conversationKey(7, 3), conversationKey(3, 7))
	assert.Equal(t, "3#7", conversationKey(7, 3))
}

func TestConversationKey_Self(t *testing.T) {
	assert.Equal(t, "5#5", conversationKey(5, 5))
}

func TestTimeSortKey_LexicographicOrder(t *testing.T) {
	// Epoch millis have a fixed digit count, so string order must
	// match numeric order for same-partition range scans.
	earlier := timeSortKey(1700000000000, "aaaa")
	later := timeSortKey(1700000000001, "aaaa")
	assert.Less(t, earlier, later)

	sameMilli := timeSortKey(1700000000000, "bbbb")
	assert.Less(t, earlier, sameMilli)
}

func TestNewID_OpaqueAndUnique(t *testing.T) {
	a := newID()
	b := newID()
	assert.Len(t, a, 32)
	assert.NotContains(t, a, "-")
	assert.NotEqual(t, a, b)
}

func TestBlobNames(t *testing.T) {
	assert.Equal(t, "photos/abc_thumb.jpg", photoBlobName("abc", "thumb"))
	assert.Equal(t, "photos/abc_full.jpg", photoBlobName("abc", "full"))
	assert.Equal(t, "profiles/42_thumb.jpg", profileBlobName(42, "thumb"))
}

func TestDynamoKeyLayout(t *testing.T) {
	assert.Equal(t, "PHOTO#abc", photoPK("abc"))
	assert.Equal(t, "PHOTO#abc", photoSK("abc"))
	assert.Equal(t, "USER#9", ownerPK(9))
	assert.Equal(t, "CONV#2#11", convPK(11, 2))
}
