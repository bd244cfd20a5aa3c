package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/secmon-lab/wishwell/pkg/domain/types"
)

// TopicID is a UUID-based identifier for Topic
type TopicID string

// NewTopicID generates a new UUID v4 TopicID
func NewTopicID() TopicID {
	return TopicID(uuid.New().String())
}

func (id TopicID) String() string {
	return string(id)
}

// Ptr returns a pointer to a copy of the id
func (id TopicID) Ptr() *TopicID {
	return &id
}

// TopicTerm is a representative term of a topic with its class-based TF-IDF weight
type TopicTerm struct {
	Term  string  `json:"term"`
	Score float64 `json:"score"`
}

// TopicLabel is a human readable name and description of a topic
type TopicLabel struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Topic is created by exactly one training run and never mutated afterwards
// except for supersession.
type Topic struct {
	ID             TopicID
	Name           string
	Description    string
	LabelSource    types.LabelSource
	Terms          []TopicTerm
	WishCount      int // cluster size at creation time
	ClusterLabel   int
	EmbeddingModel string
	ModelUpdateID  ModelUpdateID
	ModelVersion   int64
	SupersededAt   *time.Time
	SupersededBy   ModelUpdateID
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// IsActive reports whether the topic has not been superseded
func (t *Topic) IsActive() bool {
	return t.SupersededAt == nil
}

// TermStrings returns the representative terms ordered by weight
func (t *Topic) TermStrings() []string {
	terms := make([]string, len(t.Terms))
	for i, term := range t.Terms {
		terms[i] = term.Term
	}
	return terms
}
