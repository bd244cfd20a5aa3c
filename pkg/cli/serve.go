package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/secmon-lab/wishwell/pkg/cli/config"
	httpctrl "github.com/secmon-lab/wishwell/pkg/controller/http"
	"github.com/secmon-lab/wishwell/pkg/service/worker"
	"github.com/secmon-lab/wishwell/pkg/usecase"
	"github.com/secmon-lab/wishwell/pkg/utils/logging"
	"github.com/urfave/cli/v3"
)

const shutdownTimeout = 30 * time.Second

func cmdServe() *cli.Command {
	var addr string
	var staticDir string
	var pipelineCfg pipelineConfig
	var schedulerCfg config.Scheduler

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "HTTP server address",
			Value:       ":8080",
			Sources:     cli.EnvVars("WISHWELL_ADDR"),
			Destination: &addr,
		},
		&cli.StringFlag{
			Name:        "static-dir",
			Usage:       "Directory of a frontend build served for paths outside /api",
			Sources:     cli.EnvVars("WISHWELL_STATIC_DIR"),
			Destination: &staticDir,
		},
	}

	// Add shared config flags
	flags = append(flags, pipelineCfg.Flags()...)
	flags = append(flags, schedulerCfg.Flags()...)

	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Start HTTP server and the training scheduler",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
			defer stop()

			p, err := pipelineCfg.build(ctx, c, usecase.WithSchedulerEnabled(schedulerCfg.Enabled()))
			if err != nil {
				return err
			}
			closeOnExit := true
			defer func() {
				if closeOnExit {
					p.Close()
				}
			}()

			var trainingWorker *worker.TrainingWorker
			if w := schedulerCfg.Configure(p.uc.Training); w != nil {
				if err := w.Start(ctx); err != nil {
					return goerr.Wrap(err, "failed to start training worker")
				}
				trainingWorker = w
			} else {
				logging.Default().Info("Training scheduler disabled")
			}

			var httpOpts []httpctrl.Options
			if staticDir != "" {
				httpOpts = append(httpOpts, httpctrl.WithStaticFS(os.DirFS(staticDir)))
			}

			server := &http.Server{
				Addr:              addr,
				Handler:           httpctrl.New(p.uc, httpOpts...),
				ReadHeaderTimeout: 30 * time.Second,
			}

			// Start server in goroutine
			errCh := make(chan error, 1)
			go func() {
				logging.Default().Info("Starting HTTP server", "addr", addr, "scheduler", schedulerCfg)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- goerr.Wrap(err, "failed to start server")
				}
			}()

			// Wait for shutdown signal or server error
			var serveErr error
			select {
			case serveErr = <-errCh:
			case <-ctx.Done():
				logging.Default().Info("Received shutdown signal")
			}

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()

			if err := server.Shutdown(shutdownCtx); err != nil {
				logging.Default().Error("failed to shutdown server gracefully", "error", err)
			}
			if err := stopTraining(shutdownCtx, p.uc.Training, trainingWorker); err != nil {
				// a run still holds the repository and embedding model
				closeOnExit = false
				return err
			}
			if serveErr != nil {
				return serveErr
			}

			logging.Default().Info("Server shutdown completed")
			return nil
		},
	}
}

// stopTraining cancels a background run and waits for it, so the
// repository and embedding model are not closed under a running stage.
// The cancelled run is recorded as failed.
func stopTraining(ctx context.Context, training *usecase.TrainingUseCase, trainingWorker *worker.TrainingWorker) error {
	if err := training.Shutdown(ctx); err != nil {
		return goerr.Wrap(err, "failed to stop training")
	}
	if trainingWorker != nil {
		if err := trainingWorker.Stop(ctx); err != nil {
			return goerr.Wrap(err, "failed to stop training worker")
		}
	}
	return nil
}
