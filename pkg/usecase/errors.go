package usecase

import "errors"

// Sentinel errors for use case layer
var (
	// ErrInvalidWish is returned for blank or over-long submissions
	ErrInvalidWish = errors.New("invalid wish")

	// ErrWishRejected is returned when moderation refuses a submission or
	// cannot be consulted
	ErrWishRejected = errors.New("wish rejected by moderation")
)
