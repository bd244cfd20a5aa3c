package firestore

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/wishwell/pkg/domain/model"
	"github.com/secmon-lab/wishwell/pkg/domain/types"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

const abandonedRunError = "run abandoned: heartbeat expired"

type modelUpdateRepository struct {
	f *Firestore
}

func (r *modelUpdateRepository) runRef(id model.ModelUpdateID) *firestore.DocumentRef {
	return r.f.collection(CollectionModelUpdates).Doc(id.String())
}

// getLease reads the lease inside tx. A missing lease document is an empty lease.
func getLease(tx *firestore.Transaction, ref *firestore.DocumentRef) (*leaseDoc, error) {
	doc, err := tx.Get(ref)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return &leaseDoc{}, nil
		}
		return nil, goerr.Wrap(err, "failed to get training lease")
	}
	var lease leaseDoc
	if err := doc.DataTo(&lease); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal training lease")
	}
	return &lease, nil
}

// getRun reads a run record inside tx
func getRun(tx *firestore.Transaction, ref *firestore.DocumentRef) (*model.ModelUpdate, error) {
	doc, err := tx.Get(ref)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(model.ErrNotFound, "model update not found", goerr.V("id", ref.ID))
		}
		return nil, goerr.Wrap(err, "failed to get model update", goerr.V("id", ref.ID))
	}
	var d modelUpdateDoc
	if err := doc.DataTo(&d); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal model update", goerr.V("id", ref.ID))
	}
	return fromModelUpdateDoc(&d), nil
}

func (r *modelUpdateRepository) Begin(ctx context.Context, run *model.ModelUpdate, staleAfter time.Duration) (*model.ModelUpdate, error) {
	created := *run
	if created.ID == "" {
		created.ID = model.NewModelUpdateID()
	}

	leaseRef := r.f.leaseRef()
	err := r.f.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		lease, err := getLease(tx, leaseRef)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		var abandoned *model.ModelUpdate
		if lease.RunID != "" {
			holder, err := getRun(tx, r.runRef(model.ModelUpdateID(lease.RunID)))
			if err != nil && !errors.Is(err, model.ErrNotFound) {
				return err
			}
			if holder != nil && holder.Status == types.RunStatusRunning {
				if !holder.IsStale(now, staleAfter) {
					return goerr.Wrap(model.ErrRunInProgress, "training run lease is held",
						goerr.V("holder", holder.ID),
						goerr.V("version", holder.Version))
				}
				abandoned = holder
			}
		}

		if abandoned != nil {
			if err := tx.Update(r.runRef(abandoned.ID), []firestore.Update{
				{Path: "Status", Value: types.RunStatusFailed.String()},
				{Path: "Error", Value: abandonedRunError},
				{Path: "CompletedAt", Value: now},
			}); err != nil {
				return goerr.Wrap(err, "failed to mark abandoned run failed", goerr.V("id", abandoned.ID))
			}
		}

		created.Version = lease.LastVersion + 1
		created.Status = types.RunStatusRunning
		if created.StartedAt.IsZero() {
			created.StartedAt = now
		}
		created.HeartbeatAt = created.StartedAt
		created.CompletedAt = nil

		if err := tx.Create(r.runRef(created.ID), toModelUpdateDoc(&created)); err != nil {
			return goerr.Wrap(err, "failed to create model update", goerr.V("id", created.ID))
		}
		return tx.Set(leaseRef, &leaseDoc{RunID: created.ID.String(), LastVersion: created.Version})
	})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to begin training run")
	}

	return &created, nil
}

func (r *modelUpdateRepository) Heartbeat(ctx context.Context, id model.ModelUpdateID, at time.Time) error {
	ref := r.runRef(id)
	return r.f.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		run, err := getRun(tx, ref)
		if err != nil {
			return err
		}
		if run.Status != types.RunStatusRunning {
			return goerr.Wrap(model.ErrRunNotRunning, "model update is not running", goerr.V("id", id), goerr.V("status", run.Status))
		}
		return tx.Update(ref, []firestore.Update{{Path: "HeartbeatAt", Value: at}})
	})
}

func (r *modelUpdateRepository) Fail(ctx context.Context, id model.ModelUpdateID, reason string, at time.Time) error {
	ref := r.runRef(id)
	leaseRef := r.f.leaseRef()
	return r.f.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		run, err := getRun(tx, ref)
		if err != nil {
			return err
		}
		lease, err := getLease(tx, leaseRef)
		if err != nil {
			return err
		}
		if run.Status != types.RunStatusRunning {
			return goerr.Wrap(model.ErrRunNotRunning, "model update is not running", goerr.V("id", id), goerr.V("status", run.Status))
		}

		if err := tx.Update(ref, []firestore.Update{
			{Path: "Status", Value: types.RunStatusFailed.String()},
			{Path: "Error", Value: reason},
			{Path: "CompletedAt", Value: at},
		}); err != nil {
			return goerr.Wrap(err, "failed to mark run failed", goerr.V("id", id))
		}
		if lease.RunID == id.String() {
			return tx.Set(leaseRef, &leaseDoc{LastVersion: lease.LastVersion})
		}
		return nil
	})
}

func (r *modelUpdateRepository) Get(ctx context.Context, id model.ModelUpdateID) (*model.ModelUpdate, error) {
	doc, err := r.runRef(id).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, goerr.Wrap(model.ErrNotFound, "model update not found", goerr.V("id", id))
		}
		return nil, goerr.Wrap(err, "failed to get model update", goerr.V("id", id))
	}
	var d modelUpdateDoc
	if err := doc.DataTo(&d); err != nil {
		return nil, goerr.Wrap(err, "failed to unmarshal model update", goerr.V("id", id))
	}
	return fromModelUpdateDoc(&d), nil
}

func (r *modelUpdateRepository) GetLatest(ctx context.Context) (*model.ModelUpdate, error) {
	runs, err := r.query(ctx, r.f.collection(CollectionModelUpdates).
		OrderBy("Version", firestore.Desc).
		Limit(1))
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, goerr.Wrap(model.ErrNotFound, "no model update")
	}
	return runs[0], nil
}

func (r *modelUpdateRepository) GetLatestCompleted(ctx context.Context) (*model.ModelUpdate, error) {
	runs, err := r.query(ctx, r.f.collection(CollectionModelUpdates).
		Where("Status", "==", types.RunStatusCompleted.String()).
		OrderBy("Version", firestore.Desc).
		Limit(1))
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, goerr.Wrap(model.ErrNotFound, "no completed model update")
	}
	return runs[0], nil
}

func (r *modelUpdateRepository) List(ctx context.Context, limit int) ([]*model.ModelUpdate, error) {
	query := r.f.collection(CollectionModelUpdates).OrderBy("Version", firestore.Desc)
	if limit > 0 {
		query = query.Limit(limit)
	}
	return r.query(ctx, query)
}

func (r *modelUpdateRepository) query(ctx context.Context, query firestore.Query) ([]*model.ModelUpdate, error) {
	iter := query.Documents(ctx)
	defer iter.Stop()

	runs := make([]*model.ModelUpdate, 0)
	for {
		doc, err := iter.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to iterate model updates")
		}
		var d modelUpdateDoc
		if err := doc.DataTo(&d); err != nil {
			return nil, goerr.Wrap(err, "failed to unmarshal model update", goerr.V("docID", doc.Ref.ID))
		}
		runs = append(runs, fromModelUpdateDoc(&d))
	}
	return runs, nil
}
