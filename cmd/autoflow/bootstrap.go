package main

import (
	"context"
	"fmt"
	"log/slog"

	cli "github.com/urfave/cli/v3"
	"go.opentelemetry.io/otel/trace"

	"github.com/dukex/autoflow/pkg/cmd"
	"github.com/dukex/autoflow/pkg/config"
	"github.com/dukex/autoflow/pkg/engine"
	"github.com/dukex/autoflow/pkg/eventbus"
	"github.com/dukex/autoflow/pkg/log"
	"github.com/dukex/autoflow/pkg/otelhelper"
	"github.com/dukex/autoflow/pkg/persistence"
	"github.com/dukex/autoflow/pkg/registry"
)

// runtime is everything a command needs to execute workflows.
type runtime struct {
	logger        *slog.Logger
	config        *config.File
	persistence   persistence.Persistence
	registry      *registry.Registry
	bus           eventbus.EventBus
	collaborators *cmd.Collaborators
	coordinator   *engine.Coordinator

	closers []func(ctx context.Context)
}

type bootstrapOptions struct {
	service string
	// busFallback is used when no event bus is configured. Empty means run without one.
	busFallback string
}

func bootstrap(ctx context.Context, command *cli.Command, opts bootstrapOptions) (*runtime, error) {
	log.Setup(command.String("log-level"), command.String("log-format"))

	rt := &runtime{logger: log.WithModule(opts.service)}
	ready := false

	defer func() {
		if !ready {
			rt.Close(ctx)
		}
	}()

	var err error

	rt.config, err = config.Load(command.String("config"))
	if err != nil {
		return nil, err
	}

	rt.persistence, err = cmd.NewPersistence(ctx, rt.logger, command.String("database-url"))
	if err != nil {
		return nil, fmt.Errorf("failed to open persistence: %w", err)
	}

	rt.onClose(func(ctx context.Context) {
		if err := rt.persistence.Close(ctx); err != nil {
			rt.logger.ErrorContext(ctx, "Failed to close persistence", "error", err)
		}
	})

	provider := command.String("event-bus")
	if provider == "" {
		provider = opts.busFallback
	}

	var publisher eventbus.EventPublisher

	if provider != "" {
		rt.bus, err = cmd.NewEventBus(provider, command.String("kafka-brokers"), opts.service, rt.logger)
		if err != nil {
			return nil, err
		}

		publisher = rt.bus

		rt.onClose(func(ctx context.Context) {
			if err := rt.bus.Close(); err != nil {
				rt.logger.ErrorContext(ctx, "Failed to close event bus", "error", err)
			}
		})
	}

	rt.collaborators, err = cmd.NewCollaborators(ctx, rt.config, command.String("records-url"), publisher, rt.logger)
	if err != nil {
		return nil, err
	}

	rt.onClose(func(context.Context) { rt.collaborators.Close() })

	rt.registry, err = cmd.NewRegistry(rt.logger, command.String("plugins-path"), rt.collaborators.Deps)
	if err != nil {
		return nil, err
	}

	engineOpts := []engine.Option{
		engine.WithConfig(rt.config.Engine),
		engine.WithObservers(rt.collaborators.Observers...),
	}

	if command.Bool("tracing") {
		var tracer trace.Tracer

		var shutdown otelhelper.ShutdownFunc

		tracer, shutdown, err = otelhelper.NewTracer(ctx, opts.service)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize tracer: %w", err)
		}

		rt.onClose(func(ctx context.Context) {
			if err := shutdown(ctx); err != nil {
				rt.logger.ErrorContext(ctx, "Failed to shutdown tracer provider", "error", err)
			}
		})

		engineOpts = append(engineOpts, engine.WithTracer(tracer))
	}

	rt.coordinator = engine.New(rt.persistence, rt.persistence, rt.registry, rt.logger, engineOpts...)
	ready = true

	return rt, nil
}

func (rt *runtime) onClose(fn func(ctx context.Context)) {
	rt.closers = append(rt.closers, fn)
}

// Close runs the close hooks in reverse order. It ignores ctx cancellation so shutdown
// still flushes after a signal.
func (rt *runtime) Close(ctx context.Context) {
	ctx = context.WithoutCancel(ctx)

	for i := len(rt.closers) - 1; i >= 0; i-- {
		rt.closers[i](ctx)
	}

	rt.closers = nil
}
