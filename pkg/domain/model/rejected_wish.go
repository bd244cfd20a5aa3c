package model

import (
	"time"

	"github.com/google/uuid"
)

type RejectedWishID string

func NewRejectedWishID() RejectedWishID {
	return RejectedWishID(uuid.New().String())
}

// RejectedWish is a submission refused by moderation. It never enters the pipeline.
type RejectedWish struct {
	ID              RejectedWishID
	Content         string
	RejectionReason string
	ModerationModel string
	CreatedAt       time.Time
}

// ModerationResult is the outcome of the pre-ingest moderation gate
type ModerationResult struct {
	Allowed bool
	Reason  string
	Model   string
}
