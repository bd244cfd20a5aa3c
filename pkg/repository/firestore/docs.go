package firestore

import (
	"time"

	"github.com/secmon-lab/wishwell/pkg/domain/model"
	"github.com/secmon-lab/wishwell/pkg/domain/types"
)

// wishDoc stores an unassigned wish with an empty TopicID so that it can be
// matched by equality queries.
type wishDoc struct {
	ID        string    `firestore:"ID"`
	Content   string    `firestore:"Content"`
	TopicID   string    `firestore:"TopicID"`
	IsDeleted bool      `firestore:"IsDeleted"`
	CreatedAt time.Time `firestore:"CreatedAt"`
	UpdatedAt time.Time `firestore:"UpdatedAt"`
}

func toWishDoc(w *model.Wish) *wishDoc {
	d := &wishDoc{
		ID:        w.ID.String(),
		Content:   w.Content,
		IsDeleted: w.IsDeleted,
		CreatedAt: w.CreatedAt,
		UpdatedAt: w.UpdatedAt,
	}
	if w.TopicID != nil {
		d.TopicID = w.TopicID.String()
	}
	return d
}

func fromWishDoc(d *wishDoc) *model.Wish {
	w := &model.Wish{
		ID:        model.WishID(d.ID),
		Content:   d.Content,
		IsDeleted: d.IsDeleted,
		CreatedAt: d.CreatedAt,
		UpdatedAt: d.UpdatedAt,
	}
	if d.TopicID != "" {
		w.TopicID = model.TopicID(d.TopicID).Ptr()
	}
	return w
}

type topicTermDoc struct {
	Term  string  `firestore:"Term"`
	Score float64 `firestore:"Score"`
}

// topicDoc keeps an Active flag next to SupersededAt because Firestore
// cannot filter on a missing timestamp.
type topicDoc struct {
	ID             string         `firestore:"ID"`
	Name           string         `firestore:"Name"`
	Description    string         `firestore:"Description"`
	LabelSource    string         `firestore:"LabelSource"`
	Terms          []topicTermDoc `firestore:"Terms"`
	WishCount      int            `firestore:"WishCount"`
	ClusterLabel   int            `firestore:"ClusterLabel"`
	EmbeddingModel string         `firestore:"EmbeddingModel"`
	ModelUpdateID  string         `firestore:"ModelUpdateID"`
	ModelVersion   int64          `firestore:"ModelVersion"`
	Active         bool           `firestore:"Active"`
	SupersededAt   *time.Time     `firestore:"SupersededAt"`
	SupersededBy   string         `firestore:"SupersededBy"`
	CreatedAt      time.Time      `firestore:"CreatedAt"`
	UpdatedAt      time.Time      `firestore:"UpdatedAt"`
}

func toTopicDoc(t *model.Topic) *topicDoc {
	d := &topicDoc{
		ID:             t.ID.String(),
		Name:           t.Name,
		Description:    t.Description,
		LabelSource:    t.LabelSource.String(),
		Terms:          make([]topicTermDoc, len(t.Terms)),
		WishCount:      t.WishCount,
		ClusterLabel:   t.ClusterLabel,
		EmbeddingModel: t.EmbeddingModel,
		ModelUpdateID:  t.ModelUpdateID.String(),
		ModelVersion:   t.ModelVersion,
		Active:         t.IsActive(),
		SupersededAt:   t.SupersededAt,
		SupersededBy:   t.SupersededBy.String(),
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      t.UpdatedAt,
	}
	for i, term := range t.Terms {
		d.Terms[i] = topicTermDoc{Term: term.Term, Score: term.Score}
	}
	return d
}

func fromTopicDoc(d *topicDoc) *model.Topic {
	t := &model.Topic{
		ID:             model.TopicID(d.ID),
		Name:           d.Name,
		Description:    d.Description,
		LabelSource:    types.LabelSource(d.LabelSource),
		Terms:          make([]model.TopicTerm, len(d.Terms)),
		WishCount:      d.WishCount,
		ClusterLabel:   d.ClusterLabel,
		EmbeddingModel: d.EmbeddingModel,
		ModelUpdateID:  model.ModelUpdateID(d.ModelUpdateID),
		ModelVersion:   d.ModelVersion,
		SupersededAt:   d.SupersededAt,
		SupersededBy:   model.ModelUpdateID(d.SupersededBy),
		CreatedAt:      d.CreatedAt,
		UpdatedAt:      d.UpdatedAt,
	}
	for i, term := range d.Terms {
		t.Terms[i] = model.TopicTerm{Term: term.Term, Score: term.Score}
	}
	return t
}

type assignmentDoc struct {
	WishID         string    `firestore:"WishID"`
	TopicID        string    `firestore:"TopicID"`
	Probability    float64   `firestore:"Probability"`
	IsPrimary      bool      `firestore:"IsPrimary"`
	ModelUpdateID  string    `firestore:"ModelUpdateID"`
	CarriedForward bool      `firestore:"CarriedForward"`
	CarriedBy      string    `firestore:"CarriedBy"`
	AssignedAt     time.Time `firestore:"AssignedAt"`
}

// assignmentDocID is unique per wish and topic; topics are never reused
// across runs.
func assignmentDocID(wishID model.WishID, topicID model.TopicID) string {
	return wishID.String() + "_" + topicID.String()
}

func toAssignmentDoc(a *model.Assignment) *assignmentDoc {
	return &assignmentDoc{
		WishID:         a.WishID.String(),
		TopicID:        a.TopicID.String(),
		Probability:    a.Probability,
		IsPrimary:      a.IsPrimary,
		ModelUpdateID:  a.ModelUpdateID.String(),
		CarriedForward: a.CarriedForward,
		CarriedBy:      a.CarriedBy.String(),
		AssignedAt:     a.AssignedAt,
	}
}

func fromAssignmentDoc(d *assignmentDoc) *model.Assignment {
	return &model.Assignment{
		WishID:         model.WishID(d.WishID),
		TopicID:        model.TopicID(d.TopicID),
		Probability:    d.Probability,
		IsPrimary:      d.IsPrimary,
		ModelUpdateID:  model.ModelUpdateID(d.ModelUpdateID),
		CarriedForward: d.CarriedForward,
		CarriedBy:      model.ModelUpdateID(d.CarriedBy),
		AssignedAt:     d.AssignedAt,
	}
}

type modelUpdateDoc struct {
	ID              string               `firestore:"ID"`
	Version         int64                `firestore:"Version"`
	Status          string               `firestore:"Status"`
	Trigger         string               `firestore:"Trigger"`
	WishesCount     int                  `firestore:"WishesCount"`
	TopicsCreated   int                  `firestore:"TopicsCreated"`
	NoiseCount      int                  `firestore:"NoiseCount"`
	DegenerateCount int                  `firestore:"DegenerateCount"`
	SupersededCount int                  `firestore:"SupersededCount"`
	Configuration   model.TrainingConfig `firestore:"Configuration"`
	Error           string               `firestore:"Error"`
	StartedAt       time.Time            `firestore:"StartedAt"`
	HeartbeatAt     time.Time            `firestore:"HeartbeatAt"`
	CompletedAt     *time.Time           `firestore:"CompletedAt"`
}

func toModelUpdateDoc(u *model.ModelUpdate) *modelUpdateDoc {
	return &modelUpdateDoc{
		ID:              u.ID.String(),
		Version:         u.Version,
		Status:          u.Status.String(),
		Trigger:         u.Trigger.String(),
		WishesCount:     u.WishesCount,
		TopicsCreated:   u.TopicsCreated,
		NoiseCount:      u.NoiseCount,
		DegenerateCount: u.DegenerateCount,
		SupersededCount: u.SupersededCount,
		Configuration:   u.Configuration,
		Error:           u.Error,
		StartedAt:       u.StartedAt,
		HeartbeatAt:     u.HeartbeatAt,
		CompletedAt:     u.CompletedAt,
	}
}

func fromModelUpdateDoc(d *modelUpdateDoc) *model.ModelUpdate {
	return &model.ModelUpdate{
		ID:              model.ModelUpdateID(d.ID),
		Version:         d.Version,
		Status:          types.RunStatus(d.Status),
		Trigger:         types.TriggerKind(d.Trigger),
		WishesCount:     d.WishesCount,
		TopicsCreated:   d.TopicsCreated,
		NoiseCount:      d.NoiseCount,
		DegenerateCount: d.DegenerateCount,
		SupersededCount: d.SupersededCount,
		Configuration:   d.Configuration,
		Error:           d.Error,
		StartedAt:       d.StartedAt,
		HeartbeatAt:     d.HeartbeatAt,
		CompletedAt:     d.CompletedAt,
	}
}

type leaseDoc struct {
	RunID       string `firestore:"RunID"`
	LastVersion int64  `firestore:"LastVersion"`
}

type projectionPointDoc struct {
	WishID       string  `firestore:"WishID"`
	X            float64 `firestore:"X"`
	Y            float64 `firestore:"Y"`
	ClusterLabel int     `firestore:"ClusterLabel"`
	TopicID      string  `firestore:"TopicID"`
}

// projectionChunkDoc holds a slice of a run's point cloud. Points are split
// across documents to stay under the document size limit.
type projectionChunkDoc struct {
	ModelUpdateID string               `firestore:"ModelUpdateID"`
	Chunk         int                  `firestore:"Chunk"`
	Points        []projectionPointDoc `firestore:"Points"`
}

type rejectedWishDoc struct {
	ID              string    `firestore:"ID"`
	Content         string    `firestore:"Content"`
	RejectionReason string    `firestore:"RejectionReason"`
	ModerationModel string    `firestore:"ModerationModel"`
	CreatedAt       time.Time `firestore:"CreatedAt"`
}
