package config

import (
	"context"
	"log/slog"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/wishwell/pkg/service/archive"
	"github.com/urfave/cli/v3"
)

// Storage configures the Cloud Storage export of projection snapshots
type Storage struct {
	bucket string
	prefix string
}

func (x *Storage) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "archive-bucket",
			Usage:       "Cloud Storage bucket for projection snapshots of completed runs",
			Category:    "Storage",
			Sources:     cli.EnvVars("WISHWELL_ARCHIVE_BUCKET"),
			Destination: &x.bucket,
		},
		&cli.StringFlag{
			Name:        "archive-prefix",
			Usage:       "Object key prefix of projection snapshots",
			Category:    "Storage",
			Value:       "projections",
			Sources:     cli.EnvVars("WISHWELL_ARCHIVE_PREFIX"),
			Destination: &x.prefix,
		},
	}
}

func (x Storage) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("bucket", x.bucket),
		slog.String("prefix", x.prefix),
	)
}

// Configure returns the archiver, or nil when no bucket is configured. The
// caller closes the returned archiver.
func (x *Storage) Configure(ctx context.Context) (*archive.Archiver, error) {
	if x.bucket == "" {
		return nil, nil
	}
	a, err := archive.New(ctx, x.bucket, archive.WithPrefix(x.prefix))
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create projection archiver", goerr.V("bucket", x.bucket))
	}
	return a, nil
}
