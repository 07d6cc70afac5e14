// Package events defines the messages exchanged over the event bus: run requests and the
// lifecycle of every recorded execution.
package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/dukex/autoflow/pkg/integrations/notify"
	"github.com/dukex/autoflow/pkg/models"
)

type EventType string

// Event is implemented by every message published on the bus.
type Event interface {
	GetType() EventType
}

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

// Each event type is published on the topic of the same name.
const (
	WorkflowTriggeredEvent          EventType = "workflow.triggered"
	WorkflowExecutionStartedEvent   EventType = "workflow.execution.started"
	WorkflowExecutionCompletedEvent EventType = "workflow.execution.completed"
	WorkflowExecutionFailedEvent    EventType = "workflow.execution.failed"
	NotificationEvent               EventType = "notification.published"
)

type BaseEvent struct {
	ID         string         `json:"id"`
	Type       EventType      `json:"type"`
	Timestamp  time.Time      `json:"timestamp"`
	WorkflowID string         `json:"workflow_id"`
	Metadata   map[string]any `json:"metadata,omitempty"`
}

func newBase(eventType EventType, workflowID string) BaseEvent {
	return BaseEvent{
		ID:         uuid.NewString(),
		Type:       eventType,
		Timestamp:  time.Now().UTC(),
		WorkflowID: workflowID,
	}
}

// WorkflowTriggered asks a worker to run a workflow. Conditions are evaluated unless
// SkipConditions is set.
type WorkflowTriggered struct {
	BaseEvent

	ScopeID        string         `json:"scope_id,omitempty"`
	Actor          models.Actor   `json:"actor"`
	TriggerData    map[string]any `json:"trigger_data,omitempty"`
	SkipConditions bool           `json:"skip_conditions,omitempty"`
}

func NewWorkflowTriggered(workflowID string, data map[string]any, actor models.Actor) *WorkflowTriggered {
	return &WorkflowTriggered{
		BaseEvent:   newBase(WorkflowTriggeredEvent, workflowID),
		Actor:       actor,
		TriggerData: data,
	}
}

func (w WorkflowTriggered) GetType() EventType {
	return WorkflowTriggeredEvent
}

type WorkflowExecutionStarted struct {
	BaseEvent

	ExecutionID string         `json:"execution_id"`
	ScopeID     string         `json:"scope_id,omitempty"`
	TriggerData map[string]any `json:"trigger_data,omitempty"`
}

func NewWorkflowExecutionStarted(workflowID, executionID, scopeID string, data map[string]any) *WorkflowExecutionStarted {
	return &WorkflowExecutionStarted{
		BaseEvent:   newBase(WorkflowExecutionStartedEvent, workflowID),
		ExecutionID: executionID,
		ScopeID:     scopeID,
		TriggerData: data,
	}
}

func (w WorkflowExecutionStarted) GetType() EventType {
	return WorkflowExecutionStartedEvent
}

type WorkflowExecutionCompleted struct {
	BaseEvent

	ExecutionID     string                 `json:"execution_id"`
	Outcomes        []models.ActionOutcome `json:"outcomes"`
	ExecutionTimeMs int64                  `json:"execution_time_ms"`
}

func (w WorkflowExecutionCompleted) GetType() EventType {
	return WorkflowExecutionCompletedEvent
}

type WorkflowExecutionFailed struct {
	BaseEvent

	ExecutionID     string                 `json:"execution_id"`
	Error           string                 `json:"error"`
	Outcomes        []models.ActionOutcome `json:"outcomes"`
	ExecutionTimeMs int64                  `json:"execution_time_ms"`
}

func (w WorkflowExecutionFailed) GetType() EventType {
	return WorkflowExecutionFailedEvent
}

// NewExecutionFinished returns the completed or failed event matching result.
func NewExecutionFinished(result *models.ExecutionResult) Event {
	if result.Succeeded() {
		return &WorkflowExecutionCompleted{
			BaseEvent:       newBase(WorkflowExecutionCompletedEvent, result.WorkflowID),
			ExecutionID:     result.ExecutionID,
			Outcomes:        result.Outcomes,
			ExecutionTimeMs: result.ExecutionTimeMs,
		}
	}

	return &WorkflowExecutionFailed{
		BaseEvent:       newBase(WorkflowExecutionFailedEvent, result.WorkflowID),
		ExecutionID:     result.ExecutionID,
		Error:           result.ErrorMessage,
		Outcomes:        result.Outcomes,
		ExecutionTimeMs: result.ExecutionTimeMs,
	}
}

// NotificationPublished carries a send_notification message to bus subscribers.
type NotificationPublished struct {
	BaseEvent

	Notification notify.Notification `json:"notification"`
}

func NewNotificationPublished(n notify.Notification) *NotificationPublished {
	return &NotificationPublished{
		BaseEvent:    newBase(NotificationEvent, n.WorkflowID),
		Notification: n,
	}
}

func (n NotificationPublished) GetType() EventType {
	return NotificationEvent
}

// New returns an empty event for decoding messages of eventType.
func New(eventType EventType) (Event, bool) {
	switch eventType {
	case WorkflowTriggeredEvent:
		return &WorkflowTriggered{}, true
	case WorkflowExecutionStartedEvent:
		return &WorkflowExecutionStarted{}, true
	case WorkflowExecutionCompletedEvent:
		return &WorkflowExecutionCompleted{}, true
	case WorkflowExecutionFailedEvent:
		return &WorkflowExecutionFailed{}, true
	case NotificationEvent:
		return &NotificationPublished{}, true
	default:
		return nil, false
	}
}
