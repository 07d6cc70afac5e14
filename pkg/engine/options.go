package engine

import (
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/dukex/autoflow/pkg/conditions"
	"github.com/dukex/autoflow/pkg/models"
)

// DefaultActionTimeout bounds every action unless the coordinator is configured otherwise.
const DefaultActionTimeout = 30 * time.Second

// Config holds the engine limits.
type Config struct {
	// ActionTimeout is the deadline given to each action.
	ActionTimeout time.Duration `yaml:"action_timeout" validate:"min=0"`
	// MaxConcurrentRuns limits simultaneous runs of one workflow. Zero means unlimited.
	// A workflow's own max_concurrent_runs takes precedence.
	MaxConcurrentRuns int `yaml:"max_concurrent_runs" validate:"min=0"`
}

type Option func(*Coordinator)

func WithConfig(cfg Config) Option {
	return func(c *Coordinator) {
		if cfg.ActionTimeout > 0 {
			c.cfg.ActionTimeout = cfg.ActionTimeout
		}

		c.cfg.MaxConcurrentRuns = cfg.MaxConcurrentRuns
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(c *Coordinator) {
		c.tracer = tracer
	}
}

func WithObservers(observers ...Observer) Option {
	return func(c *Coordinator) {
		c.observers = append(c.observers, observers...)
	}
}

func WithEvaluator(evaluator *conditions.Evaluator) Option {
	return func(c *Coordinator) {
		c.evaluator = evaluator
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		c.now = now
	}
}

type runOptions struct {
	actor   models.Actor
	scopeID string
}

// RunOption customises a single run.
type RunOption func(*runOptions)

// WithActor names the principal the run executes for.
func WithActor(actor models.Actor) RunOption {
	return func(o *runOptions) {
		o.actor = actor
	}
}

// WithScope restricts the lookup to definitions owned by scopeID.
func WithScope(scopeID string) RunOption {
	return func(o *runOptions) {
		o.scopeID = scopeID
	}
}
