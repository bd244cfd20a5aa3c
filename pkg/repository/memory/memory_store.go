package memory

import (
	"slices"

	"github.com/secmon-lab/wishwell/pkg/domain/model"
)

// Stored values are copied on the way in and out so that callers can never
// mutate repository state without going through the repository.

func copyTopicID(id *model.TopicID) *model.TopicID {
	if id == nil {
		return nil
	}
	return id.Ptr()
}

func copyPtr[T any](v *T) *T {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func copyWish(w *model.Wish) *model.Wish {
	c := *w
	c.TopicID = copyTopicID(w.TopicID)
	return &c
}

func copyTopic(t *model.Topic) *model.Topic {
	c := *t
	c.Terms = slices.Clone(t.Terms)
	c.SupersededAt = copyPtr(t.SupersededAt)
	return &c
}

func copyAssignment(a *model.Assignment) *model.Assignment {
	c := *a
	return &c
}

func copyModelUpdate(u *model.ModelUpdate) *model.ModelUpdate {
	c := *u
	c.CompletedAt = copyPtr(u.CompletedAt)
	c.Configuration.Seed = copyPtr(u.Configuration.Seed)
	return &c
}

func copyProjectionPoint(p *model.ProjectionPoint) *model.ProjectionPoint {
	c := *p
	c.TopicID = copyTopicID(p.TopicID)
	return &c
}

func copyRejectedWish(r *model.RejectedWish) *model.RejectedWish {
	c := *r
	return &c
}
