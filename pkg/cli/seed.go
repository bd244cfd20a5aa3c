package cli

import (
	"bufio"
	"context"
	_ "embed"
	"errors"
	"io"
	"os"
	"strings"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/wishwell/pkg/usecase"
	"github.com/secmon-lab/wishwell/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

//go:embed seed_wishes.txt
var sampleWishes string

func cmdSeed() *cli.Command {
	var pipelineCfg pipelineConfig
	var path string

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "file",
			Aliases:     []string{"f"},
			Usage:       "Text file with one wish per line (built-in samples if empty)",
			Destination: &path,
		},
	}
	flags = append(flags, pipelineCfg.Flags()...)

	return &cli.Command{
		Name:  "seed",
		Usage: "Submit sample wishes through the moderation gate",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			var src io.Reader = strings.NewReader(sampleWishes)
			if path != "" {
				// #nosec G304 - path is expected to be provided by CLI argument
				f, err := os.Open(path)
				if err != nil {
					return goerr.Wrap(err, "failed to open seed file", goerr.V("path", path))
				}
				defer func() { _ = f.Close() }()
				src = f
			}

			p, err := pipelineCfg.build(ctx, c)
			if err != nil {
				return err
			}
			defer p.Close()

			result, err := seedWishes(ctx, p.uc.Wish, src)
			if err != nil {
				return err
			}
			logging.Default().Info("Seeding finished",
				"created", result.created,
				"rejected", result.rejected,
				"invalid", result.invalid,
			)
			return nil
		},
	}
}

type seedResult struct {
	created  int
	rejected int
	invalid  int
}

// seedWishes submits every non-blank line of src. Moderation refusals and
// invalid lines are counted, not fatal.
func seedWishes(ctx context.Context, wishes *usecase.WishUseCase, src io.Reader) (*seedResult, error) {
	result := &seedResult{}
	scanner := bufio.NewScanner(src)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		_, err := wishes.Submit(ctx, line)
		switch {
		case err == nil:
			result.created++
		case errors.Is(err, usecase.ErrWishRejected):
			result.rejected++
		case errors.Is(err, usecase.ErrInvalidWish):
			logging.From(ctx).Warn("Skipping invalid wish", "error", err.Error())
			result.invalid++
		default:
			return result, goerr.Wrap(err, "failed to submit wish")
		}
	}
	if err := scanner.Err(); err != nil {
		return result, goerr.Wrap(err, "failed to read seed wishes")
	}
	return result, nil
}
