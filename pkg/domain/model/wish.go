package model

import (
	"time"

	"github.com/google/uuid"
)

// MaxWishLength is the maximum number of characters accepted for a wish
const MaxWishLength = 1000

// WishID is a UUID-based identifier for Wish
type WishID string

// NewWishID generates a new UUID v4 WishID
func NewWishID() WishID {
	return WishID(uuid.New().String())
}

func (id WishID) String() string {
	return string(id)
}

// Wish is a short free-text submission. The store owns the row; the training
// pipeline only reads Content and writes TopicID.
type Wish struct {
	ID        WishID
	Content   string
	TopicID   *TopicID // nil when the wish has not been assigned yet
	IsDeleted bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasTopic reports whether the wish currently references a topic
func (w *Wish) HasTopic() bool {
	return w.TopicID != nil && *w.TopicID != ""
}
