package memory

import (
	"sync"

	"github.com/secmon-lab/wishwell/pkg/domain/interfaces"
	"github.com/secmon-lab/wishwell/pkg/domain/model"
)

// Repository is an alias for Memory to match the pattern
type Repository = Memory

// Memory keeps every table behind one lock so that a training commit is
// applied atomically with respect to readers.
type Memory struct {
	mu sync.RWMutex

	wishes      map[model.WishID]*model.Wish
	topics      map[model.TopicID]*model.Topic
	assignments map[assignmentKey]*model.Assignment
	runs        map[model.ModelUpdateID]*model.ModelUpdate
	projections map[model.ModelUpdateID][]*model.ProjectionPoint
	rejected    []*model.RejectedWish

	lease lease
}

// lease is the system wide training run lock
type lease struct {
	runID       model.ModelUpdateID
	lastVersion int64
}

type assignmentKey struct {
	wishID  model.WishID
	topicID model.TopicID
}

var _ interfaces.Repository = &Memory{}

func New() *Memory {
	return &Memory{
		wishes:      make(map[model.WishID]*model.Wish),
		topics:      make(map[model.TopicID]*model.Topic),
		assignments: make(map[assignmentKey]*model.Assignment),
		runs:        make(map[model.ModelUpdateID]*model.ModelUpdate),
		projections: make(map[model.ModelUpdateID][]*model.ProjectionPoint),
	}
}

func (m *Memory) Wish() interfaces.WishRepository {
	return &wishRepository{m: m}
}

func (m *Memory) Topic() interfaces.TopicRepository {
	return &topicRepository{m: m}
}

func (m *Memory) Assignment() interfaces.AssignmentRepository {
	return &assignmentRepository{m: m}
}

func (m *Memory) ModelUpdate() interfaces.ModelUpdateRepository {
	return &modelUpdateRepository{m: m}
}

func (m *Memory) Projection() interfaces.ProjectionRepository {
	return &projectionRepository{m: m}
}

func (m *Memory) RejectedWish() interfaces.RejectedWishRepository {
	return &rejectedWishRepository{m: m}
}

func (m *Memory) Training() interfaces.TrainingRepository {
	return &trainingRepository{m: m}
}

func (m *Memory) Close() error {
	return nil
}
