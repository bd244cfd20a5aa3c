package cli

import (
	"context"

	"github.com/m-mizutani/fireconf"
	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/wishwell/pkg/cli/config"
	"github.com/secmon-lab/wishwell/pkg/repository/firestore"
	"github.com/secmon-lab/wishwell/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

func cmdMigrate() *cli.Command {
	var repoCfg config.Repository
	var dryRun bool

	flags := []cli.Flag{
		&cli.BoolFlag{
			Name:        "dry-run",
			Usage:       "Preview changes without applying (firestore only)",
			Destination: &dryRun,
		},
	}
	flags = append(flags, repoCfg.Flags()...)

	return &cli.Command{
		Name:    "migrate",
		Aliases: []string{"m"},
		Usage:   "Migrate Firestore indexes or the PostgreSQL schema",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			switch repoCfg.Backend() {
			case config.BackendFirestore:
				return migrateFirestore(ctx, repoCfg.ProjectID(), repoCfg.DatabaseID(), repoCfg.CollectionPrefix(), dryRun)

			case config.BackendPostgres:
				db, err := repoCfg.Postgres(ctx)
				if err != nil {
					return err
				}
				defer func() {
					if err := db.Close(); err != nil {
						logging.Default().Error("failed to close postgres", "error", err.Error())
					}
				}()

				logging.Default().Info("Applying PostgreSQL schema migration")
				if err := db.Migrate(ctx); err != nil {
					return goerr.Wrap(err, "failed to migrate postgres schema")
				}
				logging.Default().Info("Migrations applied successfully")
				return nil

			default:
				return goerr.Wrap(config.ErrInvalidConfig, "backend has nothing to migrate", goerr.V("backend", repoCfg.Backend()))
			}
		},
	}
}

func migrateFirestore(ctx context.Context, projectID, databaseID, prefix string, dryRun bool) error {
	logger := logging.Default()
	if projectID == "" {
		return goerr.Wrap(config.ErrMissingOption, "firestore-project-id is required")
	}

	logger.Info("Migrate configuration",
		"projectID", projectID,
		"databaseID", databaseID,
		"prefix", prefix,
		"dryRun", dryRun)

	// Get index configuration
	indexConfig := getIndexConfig(prefix)

	// Create fireconf client
	client, err := fireconf.NewClient(ctx, projectID, databaseID)
	if err != nil {
		return goerr.Wrap(err, "failed to create fireconf client")
	}
	defer func() {
		if err := client.Close(); err != nil {
			logger.Error("failed to close fireconf client", "error", err.Error())
		}
	}()

	if dryRun {
		logger.Info("Dry run mode - previewing changes")
		plan, err := client.GetMigrationPlan(ctx, indexConfig)
		if err != nil {
			return goerr.Wrap(err, "failed to create migration plan")
		}

		if len(plan.Steps) == 0 {
			logger.Info("No changes required")
			return nil
		}

		for _, step := range plan.Steps {
			logger.Info("Migration step",
				"collection", step.Collection,
				"operation", step.Operation,
				"description", step.Description,
				"destructive", step.Destructive)
		}
		return nil
	}

	logger.Info("Applying migrations")
	if err := client.Migrate(ctx, indexConfig); err != nil {
		return goerr.Wrap(err, "failed to apply migrations")
	}
	logger.Info("Migrations applied successfully")
	return nil
}

func prefixed(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "_" + name
}

// getIndexConfig returns the composite indexes used by the Firestore repository
func getIndexConfig(prefix string) *fireconf.Config {
	return &fireconf.Config{
		Collections: []fireconf.Collection{
			{
				Name: prefixed(prefix, firestore.CollectionModelUpdates),
				Indexes: []fireconf.Index{
					// GetLatestCompleted: Status ==, Version DESC
					{
						Fields: []fireconf.IndexField{
							{Path: "Status", Order: fireconf.OrderAscending},
							{Path: "Version", Order: fireconf.OrderDescending},
						},
					},
				},
			},
			{
				Name: prefixed(prefix, firestore.CollectionAssignments),
				Indexes: []fireconf.Index{
					// GetPrimary: WishID ==, IsPrimary ==
					{
						Fields: []fireconf.IndexField{
							{Path: "WishID", Order: fireconf.OrderAscending},
							{Path: "IsPrimary", Order: fireconf.OrderAscending},
						},
					},
					// ListPrimaryByTopic: TopicID ==, IsPrimary ==
					{
						Fields: []fireconf.IndexField{
							{Path: "TopicID", Order: fireconf.OrderAscending},
							{Path: "IsPrimary", Order: fireconf.OrderAscending},
						},
					},
				},
			},
			{
				Name: prefixed(prefix, firestore.CollectionWishes),
				Indexes: []fireconf.Index{
					// ListByTopic: TopicID ==, IsDeleted ==
					{
						Fields: []fireconf.IndexField{
							{Path: "TopicID", Order: fireconf.OrderAscending},
							{Path: "IsDeleted", Order: fireconf.OrderAscending},
						},
					},
				},
			},
		},
	}
}
