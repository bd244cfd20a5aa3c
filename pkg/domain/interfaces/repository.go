package interfaces

import (
	"context"
	"time"

	"github.com/secmon-lab/wishwell/pkg/domain/model"
)

// Repository defines the interface for data persistence
type Repository interface {
	Wish() WishRepository
	Topic() TopicRepository
	Assignment() AssignmentRepository
	ModelUpdate() ModelUpdateRepository
	Projection() ProjectionRepository
	RejectedWish() RejectedWishRepository
	Training() TrainingRepository

	Close() error
}

// WishRepository stores wishes. Delete is a soft delete.
type WishRepository interface {
	Create(ctx context.Context, wish *model.Wish) (*model.Wish, error)
	Get(ctx context.Context, id model.WishID) (*model.Wish, error)
	Delete(ctx context.Context, id model.WishID) error

	// ListActive returns all non-deleted wishes ordered by creation time
	ListActive(ctx context.Context) ([]*model.Wish, error)

	// ListByTopic returns non-deleted wishes currently referencing the topic
	ListByTopic(ctx context.Context, topicID model.TopicID) ([]*model.Wish, error)
}

// TopicRepository gives read access to topics. Topics are written only by
// TrainingRepository.Commit.
type TopicRepository interface {
	Get(ctx context.Context, id model.TopicID) (*model.Topic, error)
	GetMany(ctx context.Context, ids []model.TopicID) (map[model.TopicID]*model.Topic, error)
	ListActive(ctx context.Context) ([]*model.Topic, error)
	ListByModelUpdate(ctx context.Context, id model.ModelUpdateID) ([]*model.Topic, error)
}

// AssignmentRepository gives read access to assignments
type AssignmentRepository interface {
	// GetPrimary returns the primary assignment of the wish or model.ErrNotFound
	GetPrimary(ctx context.Context, wishID model.WishID) (*model.Assignment, error)
	ListByWish(ctx context.Context, wishID model.WishID) ([]*model.Assignment, error)
	ListPrimaryByTopic(ctx context.Context, topicID model.TopicID) ([]*model.Assignment, error)
}

// ModelUpdateRepository manages training run records and the run lease
type ModelUpdateRepository interface {
	// Begin atomically checks that no other run holds the lease, assigns the
	// next version and stores the running record. A running record whose
	// heartbeat is older than staleAfter is marked failed first. Returns
	// model.ErrRunInProgress when the lease is held.
	Begin(ctx context.Context, run *model.ModelUpdate, staleAfter time.Duration) (*model.ModelUpdate, error)

	Heartbeat(ctx context.Context, id model.ModelUpdateID, at time.Time) error

	// Fail marks a running record failed with an error summary and releases the lease
	Fail(ctx context.Context, id model.ModelUpdateID, reason string, at time.Time) error

	Get(ctx context.Context, id model.ModelUpdateID) (*model.ModelUpdate, error)
	GetLatest(ctx context.Context) (*model.ModelUpdate, error)
	GetLatestCompleted(ctx context.Context) (*model.ModelUpdate, error)

	// List returns records ordered by version descending
	List(ctx context.Context, limit int) ([]*model.ModelUpdate, error)
}

// ProjectionRepository reads 2D points retained per run
type ProjectionRepository interface {
	ListByModelUpdate(ctx context.Context, id model.ModelUpdateID) ([]*model.ProjectionPoint, error)
}

// RejectedWishRepository stores submissions refused by moderation
type RejectedWishRepository interface {
	Create(ctx context.Context, rejected *model.RejectedWish) (*model.RejectedWish, error)
	List(ctx context.Context, limit int) ([]*model.RejectedWish, error)
}

// TrainingRepository applies the result of a training run
type TrainingRepository interface {
	// Commit writes topics, primary assignments, wish topic references,
	// carried-forward marks, supersession, projection points and the
	// completed run record in one transaction. The run must still be running.
	Commit(ctx context.Context, commit *model.TrainingCommit) error
}
