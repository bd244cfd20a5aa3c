package postgres

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/wishwell/pkg/domain/interfaces"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

// batchSize bounds the number of rows or bind parameters per statement
const batchSize = 500

type Postgres struct {
	db *gorm.DB
}

var _ interfaces.Repository = &Postgres{}

type Option func(*gorm.Config)

// WithLogLevel overrides the gorm logger level. Default is silent.
func WithLogLevel(level gormLogger.LogLevel) Option {
	return func(c *gorm.Config) {
		c.Logger = gormLogger.Default.LogMode(level)
	}
}

func New(ctx context.Context, dsn string, opts ...Option) (*Postgres, error) {
	cfg := &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormLogger.Default.LogMode(gormLogger.Silent),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	db, err := gorm.Open(postgres.Open(dsn), cfg)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to connect to postgres")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get sql.DB from gorm")
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, goerr.Wrap(err, "failed to ping postgres")
	}

	return &Postgres{db: db}, nil
}

// Migrate creates or updates all tables and indexes
func (p *Postgres) Migrate(ctx context.Context) error {
	if err := p.db.WithContext(ctx).AutoMigrate(tables()...); err != nil {
		return goerr.Wrap(err, "failed to migrate postgres schema")
	}
	return nil
}

func (p *Postgres) Wish() interfaces.WishRepository {
	return &wishRepository{db: p.db}
}

func (p *Postgres) Topic() interfaces.TopicRepository {
	return &topicRepository{db: p.db}
}

func (p *Postgres) Assignment() interfaces.AssignmentRepository {
	return &assignmentRepository{db: p.db}
}

func (p *Postgres) ModelUpdate() interfaces.ModelUpdateRepository {
	return &modelUpdateRepository{db: p.db}
}

func (p *Postgres) Projection() interfaces.ProjectionRepository {
	return &projectionRepository{db: p.db}
}

func (p *Postgres) RejectedWish() interfaces.RejectedWishRepository {
	return &rejectedWishRepository{db: p.db}
}

func (p *Postgres) Training() interfaces.TrainingRepository {
	return &trainingRepository{db: p.db}
}

func (p *Postgres) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return goerr.Wrap(err, "failed to get sql.DB from gorm")
	}
	if err := sqlDB.Close(); err != nil {
		return goerr.Wrap(err, "failed to close postgres connection")
	}
	return nil
}

func chunks[T any](items []T, size int) [][]T {
	var out [][]T
	for start := 0; start < len(items); start += size {
		end := min(start+size, len(items))
		out = append(out, items[start:end])
	}
	return out
}
