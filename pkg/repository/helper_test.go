package repository_test

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/secmon-lab/wishwell/pkg/domain/interfaces"
	"github.com/secmon-lab/wishwell/pkg/domain/model"
	"github.com/secmon-lab/wishwell/pkg/domain/types"
	"github.com/secmon-lab/wishwell/pkg/repository/firestore"
	"github.com/secmon-lab/wishwell/pkg/repository/memory"
	"github.com/secmon-lab/wishwell/pkg/repository/postgres"
	pgdriver "gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

type repoFactory func(t *testing.T) interfaces.Repository

func newMemoryRepository(t *testing.T) interfaces.Repository {
	return memory.New()
}

func newFirestoreRepository(t *testing.T) interfaces.Repository {
	t.Helper()

	projectID := os.Getenv("TEST_FIRESTORE_PROJECT_ID")
	if projectID == "" {
		t.Skip("TEST_FIRESTORE_PROJECT_ID not set")
	}

	databaseID := os.Getenv("TEST_FIRESTORE_DATABASE_ID")
	if databaseID == "" {
		t.Skip("TEST_FIRESTORE_DATABASE_ID not set")
	}

	ctx := context.Background()
	prefix := fmt.Sprintf("test_%d", time.Now().UnixNano())
	repo, err := firestore.New(ctx, projectID, databaseID, firestore.WithCollectionPrefix(prefix))
	gt.NoError(t, err).Required()
	t.Cleanup(func() {
		if err := repo.Close(); err != nil {
			t.Errorf("failed to close firestore repository: %v", err)
		}
	})
	return repo
}

// newPostgresRepository isolates every call in its own schema
func newPostgresRepository(t *testing.T) interfaces.Repository {
	t.Helper()

	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}

	ctx := context.Background()
	schema := fmt.Sprintf("test_%d", time.Now().UnixNano())

	admin, err := gorm.Open(pgdriver.Open(dsn), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	gt.NoError(t, err).Required()
	gt.NoError(t, admin.Exec("CREATE SCHEMA " + schema).Error).Required()
	t.Cleanup(func() {
		if err := admin.Exec("DROP SCHEMA " + schema + " CASCADE").Error; err != nil {
			t.Errorf("failed to drop schema: %v", err)
		}
		if sqlDB, err := admin.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})

	repo, err := postgres.New(ctx, withSearchPath(dsn, schema))
	gt.NoError(t, err).Required()
	gt.NoError(t, repo.Migrate(ctx)).Required()
	t.Cleanup(func() {
		if err := repo.Close(); err != nil {
			t.Errorf("failed to close postgres repository: %v", err)
		}
	})
	return repo
}

func withSearchPath(dsn, schema string) string {
	if strings.Contains(dsn, "://") {
		if strings.Contains(dsn, "?") {
			return dsn + "&search_path=" + schema
		}
		return dsn + "?search_path=" + schema
	}
	return dsn + " search_path=" + schema
}

// runRepositoryTests registers a contract suite against every backend
func runRepositoryTests(t *testing.T, suite func(t *testing.T, newRepo repoFactory)) {
	t.Run("Memory", func(t *testing.T) { suite(t, newMemoryRepository) })
	t.Run("Firestore", func(t *testing.T) { suite(t, newFirestoreRepository) })
	t.Run("Postgres", func(t *testing.T) { suite(t, newPostgresRepository) })
}

func createWish(t *testing.T, repo interfaces.Repository, content string) *model.Wish {
	t.Helper()
	w, err := repo.Wish().Create(context.Background(), &model.Wish{Content: content})
	gt.NoError(t, err).Required()
	return w
}

func beginRun(t *testing.T, repo interfaces.Repository) *model.ModelUpdate {
	t.Helper()
	run, err := repo.ModelUpdate().Begin(context.Background(), &model.ModelUpdate{
		Trigger:       types.TriggerManual,
		Configuration: model.DefaultTrainingConfig(),
	}, time.Hour)
	gt.NoError(t, err).Required()
	return run
}

func newTopic(run *model.ModelUpdate, clusterLabel int, name string) *model.Topic {
	now := time.Now().UTC()
	return &model.Topic{
		ID:            model.NewTopicID(),
		Name:          name,
		Description:   "about " + name,
		LabelSource:   types.LabelSourceFallback,
		Terms:         []model.TopicTerm{{Term: name, Score: 0.5}, {Term: "wish", Score: 0.1}},
		WishCount:     2,
		ClusterLabel:  clusterLabel,
		ModelUpdateID: run.ID,
		ModelVersion:  run.Version,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func primary(run *model.ModelUpdate, wish *model.Wish, topic *model.Topic, p float64) *model.Assignment {
	return &model.Assignment{
		WishID:        wish.ID,
		TopicID:       topic.ID,
		Probability:   p,
		IsPrimary:     true,
		ModelUpdateID: run.ID,
		AssignedAt:    time.Now().UTC(),
	}
}
