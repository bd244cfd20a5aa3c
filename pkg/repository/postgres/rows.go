package postgres

import (
	"encoding/json"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/wishwell/pkg/domain/model"
	"github.com/secmon-lab/wishwell/pkg/domain/types"
	"gorm.io/datatypes"
)

const trainingLease = "training"

type wishRow struct {
	ID        string    `gorm:"column:id;type:text;primaryKey"`
	Content   string    `gorm:"column:content;type:text;not null"`
	TopicID   *string   `gorm:"column:topic_id;type:text;index"`
	IsDeleted bool      `gorm:"column:is_deleted;not null;default:false;index"`
	CreatedAt time.Time `gorm:"column:created_at;not null;index"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null"`
}

func (wishRow) TableName() string { return "wishes" }

func toWishRow(w *model.Wish) *wishRow {
	row := &wishRow{
		ID:        w.ID.String(),
		Content:   w.Content,
		IsDeleted: w.IsDeleted,
		CreatedAt: w.CreatedAt,
		UpdatedAt: w.UpdatedAt,
	}
	if w.TopicID != nil {
		id := w.TopicID.String()
		row.TopicID = &id
	}
	return row
}

func (r *wishRow) toModel() *model.Wish {
	w := &model.Wish{
		ID:        model.WishID(r.ID),
		Content:   r.Content,
		IsDeleted: r.IsDeleted,
		CreatedAt: r.CreatedAt,
		UpdatedAt: r.UpdatedAt,
	}
	if r.TopicID != nil && *r.TopicID != "" {
		w.TopicID = model.TopicID(*r.TopicID).Ptr()
	}
	return w
}

type topicRow struct {
	ID             string         `gorm:"column:id;type:text;primaryKey"`
	Name           string         `gorm:"column:name;type:text;not null"`
	Description    string         `gorm:"column:description;type:text"`
	LabelSource    string         `gorm:"column:label_source;type:text"`
	Terms          datatypes.JSON `gorm:"column:terms;type:jsonb"`
	WishCount      int            `gorm:"column:wish_count;not null"`
	ClusterLabel   int            `gorm:"column:cluster_label;not null"`
	EmbeddingModel string         `gorm:"column:embedding_model;type:text"`
	ModelUpdateID  string         `gorm:"column:model_update_id;type:text;not null;index"`
	ModelVersion   int64          `gorm:"column:model_version;not null"`
	SupersededAt   *time.Time     `gorm:"column:superseded_at;index"`
	SupersededBy   string         `gorm:"column:superseded_by;type:text"`
	CreatedAt      time.Time      `gorm:"column:created_at;not null"`
	UpdatedAt      time.Time      `gorm:"column:updated_at;not null"`
}

func (topicRow) TableName() string { return "topics" }

func toTopicRow(t *model.Topic) (*topicRow, error) {
	terms, err := json.Marshal(t.Terms)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to marshal topic terms", goerr.V("topic_id", t.ID))
	}
	return &topicRow{
		ID:             t.ID.String(),
		Name:           t.Name,
		Description:    t.Description,
		LabelSource:    t.LabelSource.String(),
		Terms:          datatypes.JSON(terms),
		WishCount:      t.WishCount,
		ClusterLabel:   t.ClusterLabel,
		EmbeddingModel: t.EmbeddingModel,
		ModelUpdateID:  t.ModelUpdateID.String(),
		ModelVersion:   t.ModelVersion,
		SupersededAt:   t.SupersededAt,
		SupersededBy:   t.SupersededBy.String(),
		CreatedAt:      t.CreatedAt,
		UpdatedAt:      t.UpdatedAt,
	}, nil
}

func (r *topicRow) toModel() (*model.Topic, error) {
	var terms []model.TopicTerm
	if len(r.Terms) > 0 {
		if err := json.Unmarshal(r.Terms, &terms); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal topic terms", goerr.V("topic_id", r.ID))
		}
	}
	return &model.Topic{
		ID:             model.TopicID(r.ID),
		Name:           r.Name,
		Description:    r.Description,
		LabelSource:    types.LabelSource(r.LabelSource),
		Terms:          terms,
		WishCount:      r.WishCount,
		ClusterLabel:   r.ClusterLabel,
		EmbeddingModel: r.EmbeddingModel,
		ModelUpdateID:  model.ModelUpdateID(r.ModelUpdateID),
		ModelVersion:   r.ModelVersion,
		SupersededAt:   r.SupersededAt,
		SupersededBy:   model.ModelUpdateID(r.SupersededBy),
		CreatedAt:      r.CreatedAt,
		UpdatedAt:      r.UpdatedAt,
	}, nil
}

// assignmentRow carries a partial unique index so that the database itself
// refuses a second primary assignment for a wish.
type assignmentRow struct {
	WishID         string    `gorm:"column:wish_id;type:text;primaryKey;uniqueIndex:idx_assignments_primary_wish,where:is_primary"`
	TopicID        string    `gorm:"column:topic_id;type:text;primaryKey;index"`
	Probability    float64   `gorm:"column:probability;not null"`
	IsPrimary      bool      `gorm:"column:is_primary;not null;default:false"`
	ModelUpdateID  string    `gorm:"column:model_update_id;type:text;not null"`
	CarriedForward bool      `gorm:"column:carried_forward;not null;default:false"`
	CarriedBy      string    `gorm:"column:carried_by;type:text"`
	AssignedAt     time.Time `gorm:"column:assigned_at;not null"`
}

func (assignmentRow) TableName() string { return "assignments" }

func toAssignmentRow(a *model.Assignment) *assignmentRow {
	return &assignmentRow{
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

func (r *assignmentRow) toModel() *model.Assignment {
	return &model.Assignment{
		WishID:         model.WishID(r.WishID),
		TopicID:        model.TopicID(r.TopicID),
		Probability:    r.Probability,
		IsPrimary:      r.IsPrimary,
		ModelUpdateID:  model.ModelUpdateID(r.ModelUpdateID),
		CarriedForward: r.CarriedForward,
		CarriedBy:      model.ModelUpdateID(r.CarriedBy),
		AssignedAt:     r.AssignedAt,
	}
}

type modelUpdateRow struct {
	ID              string         `gorm:"column:id;type:text;primaryKey"`
	Version         int64          `gorm:"column:version;not null;uniqueIndex"`
	Status          string         `gorm:"column:status;type:text;not null;index"`
	Trigger         string         `gorm:"column:trigger;type:text"`
	WishesCount     int            `gorm:"column:wishes_count"`
	TopicsCreated   int            `gorm:"column:topics_created"`
	NoiseCount      int            `gorm:"column:noise_count"`
	DegenerateCount int            `gorm:"column:degenerate_count"`
	SupersededCount int            `gorm:"column:superseded_count"`
	Configuration   datatypes.JSON `gorm:"column:configuration;type:jsonb"`
	Error           string         `gorm:"column:error;type:text"`
	StartedAt       time.Time      `gorm:"column:started_at;not null"`
	HeartbeatAt     time.Time      `gorm:"column:heartbeat_at;not null"`
	CompletedAt     *time.Time     `gorm:"column:completed_at"`
}

func (modelUpdateRow) TableName() string { return "model_updates" }

func toModelUpdateRow(u *model.ModelUpdate) (*modelUpdateRow, error) {
	cfg, err := json.Marshal(u.Configuration)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to marshal training configuration", goerr.V("id", u.ID))
	}
	return &modelUpdateRow{
		ID:              u.ID.String(),
		Version:         u.Version,
		Status:          u.Status.String(),
		Trigger:         u.Trigger.String(),
		WishesCount:     u.WishesCount,
		TopicsCreated:   u.TopicsCreated,
		NoiseCount:      u.NoiseCount,
		DegenerateCount: u.DegenerateCount,
		SupersededCount: u.SupersededCount,
		Configuration:   datatypes.JSON(cfg),
		Error:           u.Error,
		StartedAt:       u.StartedAt,
		HeartbeatAt:     u.HeartbeatAt,
		CompletedAt:     u.CompletedAt,
	}, nil
}

func (r *modelUpdateRow) toModel() (*model.ModelUpdate, error) {
	var cfg model.TrainingConfig
	if len(r.Configuration) > 0 {
		if err := json.Unmarshal(r.Configuration, &cfg); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal training configuration", goerr.V("id", r.ID))
		}
	}
	return &model.ModelUpdate{
		ID:              model.ModelUpdateID(r.ID),
		Version:         r.Version,
		Status:          types.RunStatus(r.Status),
		Trigger:         types.TriggerKind(r.Trigger),
		WishesCount:     r.WishesCount,
		TopicsCreated:   r.TopicsCreated,
		NoiseCount:      r.NoiseCount,
		DegenerateCount: r.DegenerateCount,
		SupersededCount: r.SupersededCount,
		Configuration:   cfg,
		Error:           r.Error,
		StartedAt:       r.StartedAt,
		HeartbeatAt:     r.HeartbeatAt,
		CompletedAt:     r.CompletedAt,
	}, nil
}

type leaseRow struct {
	Name        string `gorm:"column:name;type:text;primaryKey"`
	RunID       string `gorm:"column:run_id;type:text;not null;default:''"`
	LastVersion int64  `gorm:"column:last_version;not null;default:0"`
}

func (leaseRow) TableName() string { return "training_leases" }

type projectionRow struct {
	ModelUpdateID string  `gorm:"column:model_update_id;type:text;primaryKey"`
	Seq           int     `gorm:"column:seq;primaryKey"`
	WishID        string  `gorm:"column:wish_id;type:text;not null"`
	X             float64 `gorm:"column:x;not null"`
	Y             float64 `gorm:"column:y;not null"`
	ClusterLabel  int     `gorm:"column:cluster_label;not null"`
	TopicID       *string `gorm:"column:topic_id;type:text"`
}

func (projectionRow) TableName() string { return "projection_points" }

func toProjectionRow(seq int, p *model.ProjectionPoint) *projectionRow {
	row := &projectionRow{
		ModelUpdateID: p.ModelUpdateID.String(),
		Seq:           seq,
		WishID:        p.WishID.String(),
		X:             p.X,
		Y:             p.Y,
		ClusterLabel:  p.ClusterLabel,
	}
	if p.TopicID != nil {
		id := p.TopicID.String()
		row.TopicID = &id
	}
	return row
}

func (r *projectionRow) toModel() *model.ProjectionPoint {
	p := &model.ProjectionPoint{
		ModelUpdateID: model.ModelUpdateID(r.ModelUpdateID),
		WishID:        model.WishID(r.WishID),
		X:             r.X,
		Y:             r.Y,
		ClusterLabel:  r.ClusterLabel,
	}
	if r.TopicID != nil && *r.TopicID != "" {
		p.TopicID = model.TopicID(*r.TopicID).Ptr()
	}
	return p
}

type rejectedWishRow struct {
	ID              string    `gorm:"column:id;type:text;primaryKey"`
	Content         string    `gorm:"column:content;type:text;not null"`
	RejectionReason string    `gorm:"column:rejection_reason;type:text"`
	ModerationModel string    `gorm:"column:moderation_model;type:text"`
	CreatedAt       time.Time `gorm:"column:created_at;not null;index"`
}

func (rejectedWishRow) TableName() string { return "rejected_wishes" }

// tables lists every row type for migration
func tables() []any {
	return []any{
		&wishRow{},
		&topicRow{},
		&assignmentRow{},
		&modelUpdateRow{},
		&leaseRow{},
		&projectionRow{},
		&rejectedWishRow{},
	}
}
