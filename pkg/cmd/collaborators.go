package cmd

import (
	"context"
	"log/slog"

	"github.com/dukex/autoflow/pkg/actions"
	"github.com/dukex/autoflow/pkg/config"
	"github.com/dukex/autoflow/pkg/engine"
	"github.com/dukex/autoflow/pkg/eventbus"
	"github.com/dukex/autoflow/pkg/integrations/ai"
	"github.com/dukex/autoflow/pkg/integrations/email"
	"github.com/dukex/autoflow/pkg/integrations/mqtt"
	"github.com/dukex/autoflow/pkg/integrations/notify"
	"github.com/dukex/autoflow/pkg/metrics/influx"
	"github.com/dukex/autoflow/pkg/records"
)

// Collaborators holds everything built from the config file and flags that outlives one run.
type Collaborators struct {
	Deps      actions.Dependencies
	Observers []engine.Observer

	closers []func()
}

// Close releases connections in reverse opening order.
func (c *Collaborators) Close() {
	for i := len(c.closers) - 1; i >= 0; i-- {
		c.closers[i]()
	}
}

// NewCollaborators connects the configured integrations. bus may be nil; when set, run
// lifecycle events and notifications are published on it.
func NewCollaborators(ctx context.Context, cfg *config.File, recordsURL string, bus eventbus.EventPublisher, logger *slog.Logger) (*Collaborators, error) {
	c := &Collaborators{}

	targets, err := records.NewTargets(cfg.Targets)
	if err != nil {
		return nil, err
	}

	store, closeStore, err := NewRecordStore(ctx, logger, recordsURL, cfg.Targets)
	if err != nil {
		return nil, err
	}

	c.closers = append(c.closers, func() {
		if err := closeStore(); err != nil {
			logger.Warn("Failed to close record store", "error", err)
		}
	})

	c.Deps.Records = store
	c.Deps.Targets = targets

	if cfg.SMTP != nil {
		c.Deps.Email = email.NewSMTPSender(*cfg.SMTP)
	}

	var notifiers notify.Fanout

	if cfg.MQTT != nil {
		n, err := mqtt.Connect(*cfg.MQTT, logger.With("module", "mqtt"))
		if err != nil {
			c.Close()

			return nil, err
		}

		c.closers = append(c.closers, n.Close)
		notifiers = append(notifiers, n)
	}

	if bus != nil {
		notifiers = append(notifiers, eventbus.NewNotifier(bus))
		c.Observers = append(c.Observers, eventbus.NewExecutionPublisher(bus, logger.With("module", "execution_events")))
	}

	if len(notifiers) > 0 {
		c.Deps.Notifier = notifiers
	}

	if cfg.AI != nil {
		analyzer := ai.NewHTTPAnalyzer(*cfg.AI)
		c.Deps.Analyzer = analyzer
		c.Deps.DefaultModel = analyzer.DefaultModel()
	}

	if cfg.Influx != nil {
		obs, err := influx.Connect(ctx, *cfg.Influx, logger.With("module", "influx"))
		if err != nil {
			c.Close()

			return nil, err
		}

		c.closers = append(c.closers, obs.Close)
		c.Observers = append(c.Observers, obs)
	}

	return c, nil
}
