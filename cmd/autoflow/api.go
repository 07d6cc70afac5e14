package main

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	"github.com/gofiber/fiber/v3/middleware/healthcheck"
	"github.com/gofiber/fiber/v3/middleware/logger"
	cli "github.com/urfave/cli/v3"

	"github.com/dukex/autoflow/pkg/eventbus"
	"github.com/dukex/autoflow/pkg/persistence"
	"github.com/dukex/autoflow/pkg/registry"
	"github.com/dukex/autoflow/pkg/web"
)

const shutdownTimeout = 10 * time.Second

type API struct {
	logger      *slog.Logger
	runner      web.Runner
	persistence persistence.Persistence
	registry    *registry.Registry
	eventBus    eventbus.EventPublisher
	validate    *validator.Validate
}

func NewAPI(
	logger *slog.Logger,
	runner web.Runner,
	persistence persistence.Persistence,
	registry *registry.Registry,
	eventBus eventbus.EventPublisher,
) *API {
	return &API{
		logger:      logger,
		runner:      runner,
		persistence: persistence,
		registry:    registry,
		eventBus:    eventBus,
		validate:    validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) App() *fiber.App {
	handlers := web.NewAPIHandlers(a.runner, a.persistence, a.registry, a.validate, a.eventBus)

	app := fiber.New()
	app.Use(cors.New())
	app.Use(logger.New(logger.Config{
		DisableColors: true,
	}))

	app.Get(healthcheck.DefaultLivenessEndpoint, healthcheck.NewHealthChecker())
	app.Get(healthcheck.DefaultReadinessEndpoint, healthcheck.NewHealthChecker())

	app.Get("/", func(c fiber.Ctx) error {
		return c.SendString("Autoflow API")
	})

	handlers.Routes(app)

	return app
}

// Start listens on port until ctx is done, then shuts the server down gracefully.
func (a *API) Start(ctx context.Context, port int) error {
	app := a.App()
	errCh := make(chan error, 1)

	go func() {
		errCh <- app.Listen(":" + strconv.Itoa(port))
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		a.logger.Info("Shutting down API")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		err := app.ShutdownWithContext(shutdownCtx)
		if err != nil && !errors.Is(err, context.Canceled) {
			return err
		}

		return nil
	}
}

func apiCommand() *cli.Command {
	return &cli.Command{
		Name:    "api",
		Aliases: []string{"a"},
		Usage:   "Serve the HTTP API",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Usage:   "Port to run the API server on",
				Value:   defaultPort,
				Sources: cli.EnvVars("PORT"),
			},
		},
		Action: func(ctx context.Context, command *cli.Command) error {
			rt, err := bootstrap(ctx, command, bootstrapOptions{service: "autoflow-api"})
			if err != nil {
				return err
			}
			defer rt.Close(ctx)

			rt.logger.InfoContext(ctx, "Initializing Autoflow API", "port", command.Int("port"))

			var publisher eventbus.EventPublisher
			if rt.bus != nil {
				publisher = rt.bus
			}

			api := NewAPI(rt.logger, rt.coordinator, rt.persistence, rt.registry, publisher)

			return api.Start(ctx, int(command.Int("port")))
		},
	}
}
