package firestore

import (
	"context"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/wishwell/pkg/domain/interfaces"
)

// Collection names without prefix
const (
	CollectionWishes         = "wishes"
	CollectionTopics         = "topics"
	CollectionAssignments    = "assignments"
	CollectionModelUpdates   = "model_updates"
	CollectionProjections    = "projections"
	CollectionRejectedWishes = "rejected_wishes"
	CollectionLeases         = "leases"
)

const trainingLeaseDoc = "training"

type Firestore struct {
	client           *firestore.Client
	collectionPrefix string
}

var _ interfaces.Repository = &Firestore{}

type Option func(*Firestore)

func WithCollectionPrefix(prefix string) Option {
	return func(f *Firestore) {
		f.collectionPrefix = prefix
	}
}

func New(ctx context.Context, projectID, databaseID string, opts ...Option) (*Firestore, error) {
	var client *firestore.Client
	var err error
	if databaseID == "" {
		client, err = firestore.NewClient(ctx, projectID)
	} else {
		client, err = firestore.NewClientWithDatabase(ctx, projectID, databaseID)
	}
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create firestore client",
			goerr.V("projectID", projectID),
			goerr.V("databaseID", databaseID))
	}

	f := &Firestore{client: client}
	for _, opt := range opts {
		opt(f)
	}

	return f, nil
}

// CollectionName returns name with the configured prefix applied
func (f *Firestore) CollectionName(name string) string {
	if f.collectionPrefix != "" {
		return f.collectionPrefix + "_" + name
	}
	return name
}

func (f *Firestore) collection(name string) *firestore.CollectionRef {
	return f.client.Collection(f.CollectionName(name))
}

func (f *Firestore) leaseRef() *firestore.DocumentRef {
	return f.collection(CollectionLeases).Doc(trainingLeaseDoc)
}

func (f *Firestore) Wish() interfaces.WishRepository {
	return &wishRepository{f: f}
}

func (f *Firestore) Topic() interfaces.TopicRepository {
	return &topicRepository{f: f}
}

func (f *Firestore) Assignment() interfaces.AssignmentRepository {
	return &assignmentRepository{f: f}
}

func (f *Firestore) ModelUpdate() interfaces.ModelUpdateRepository {
	return &modelUpdateRepository{f: f}
}

func (f *Firestore) Projection() interfaces.ProjectionRepository {
	return &projectionRepository{f: f}
}

func (f *Firestore) RejectedWish() interfaces.RejectedWishRepository {
	return &rejectedWishRepository{f: f}
}

func (f *Firestore) Training() interfaces.TrainingRepository {
	return &trainingRepository{f: f}
}

func (f *Firestore) Close() error {
	if f.client != nil {
		return f.client.Close()
	}
	return nil
}
