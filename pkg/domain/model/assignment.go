package model

import (
	"math"
	"time"
)

// Assignment links a wish to a topic with a membership probability.
// A wish has at most one primary assignment.
type Assignment struct {
	WishID        WishID
	TopicID       TopicID
	Probability   float64 // in [0, 1]
	IsPrimary     bool
	ModelUpdateID ModelUpdateID // run that created the assignment

	// CarriedForward is set when a later run classified the wish as noise and
	// kept this assignment. CarriedBy is the latest such run.
	CarriedForward bool
	CarriedBy      ModelUpdateID

	AssignedAt time.Time
}

// ClampProbability limits p to [0, 1]
func ClampProbability(p float64) float64 {
	switch {
	case math.IsNaN(p):
		return 0
	case p < 0:
		return 0
	case p > 1:
		return 1
	default:
		return p
	}
}
