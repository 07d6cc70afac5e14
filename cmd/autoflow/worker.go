package main

import (
	"context"

	"github.com/google/uuid"
	cli "github.com/urfave/cli/v3"

	"github.com/dukex/autoflow/pkg/worker"
)

func workerCommand() *cli.Command {
	return &cli.Command{
		Name:    "worker",
		Aliases: []string{"w"},
		Usage:   "Run workflows requested through workflow.triggered events",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "worker-id",
				Aliases: []string{"id"},
				Usage:   "Custom worker ID (auto-generated if not provided)",
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			rt, err := bootstrap(ctx, command, bootstrapOptions{service: "autoflow-worker", busFallback: "gochannel"})
			if err != nil {
				return err
			}
			defer rt.Close(ctx)

			workerID := command.String("worker-id")
			if workerID == "" {
				workerID = "worker-" + uuid.NewString()[:8]
			}

			w := worker.New(workerID, rt.coordinator, rt.bus, rt.logger)

			err = w.Start(ctx)
			if err != nil {
				return err
			}

			<-ctx.Done()
			rt.logger.Info("Shutting down worker", "worker_id", workerID)

			return nil
		},
	}
}
