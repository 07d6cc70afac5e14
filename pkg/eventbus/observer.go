package eventbus

import (
	"context"
	"log/slog"

	"github.com/dukex/autoflow/pkg/engine"
	"github.com/dukex/autoflow/pkg/events"
	"github.com/dukex/autoflow/pkg/integrations/notify"
	"github.com/dukex/autoflow/pkg/models"
)

// ExecutionPublisher is an engine.Observer that publishes the lifecycle events of every run.
// Events are keyed by execution id.
type ExecutionPublisher struct {
	publisher EventPublisher
	logger    *slog.Logger
}

func NewExecutionPublisher(publisher EventPublisher, logger *slog.Logger) *ExecutionPublisher {
	return &ExecutionPublisher{publisher: publisher, logger: logger.With("module", "execution_publisher")}
}

func (p *ExecutionPublisher) ExecutionStarted(ctx context.Context, run engine.RunInfo) {
	event := events.NewWorkflowExecutionStarted(run.WorkflowID, run.ExecutionID, run.ScopeID, run.TriggerData)

	p.publish(ctx, run.ExecutionID, event)
}

func (p *ExecutionPublisher) ExecutionFinished(ctx context.Context, run engine.RunInfo, result *models.ExecutionResult) {
	p.publish(ctx, run.ExecutionID, events.NewExecutionFinished(result))
}

func (p *ExecutionPublisher) publish(ctx context.Context, key string, event Event) {
	err := p.publisher.Publish(ctx, key, event)
	if err != nil {
		p.logger.ErrorContext(ctx, "Failed to publish execution event", "event_type", event.GetType(), "execution_id", key, "error", err)
	}
}

// Notifier delivers notifications by publishing them on the bus.
type Notifier struct {
	publisher EventPublisher
}

func NewNotifier(publisher EventPublisher) *Notifier {
	return &Notifier{publisher: publisher}
}

func (n *Notifier) Notify(ctx context.Context, notification notify.Notification) error {
	return n.publisher.Publish(ctx, notification.ExecutionID, events.NewNotificationPublished(notification))
}
