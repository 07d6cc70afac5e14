// Package eventbus carries events between autoflow processes over watermill.
package eventbus

import (
	"context"

	"github.com/dukex/autoflow/pkg/events"
)

type Event = events.Event

type EventPublisher interface {
	Publish(ctx context.Context, key string, event Event) error
}

type EventSubscriber interface {
	Handle(eventType events.EventType, handler EventHandler) error
	Subscribe(ctx context.Context) error
}

// EventHandler receives the decoded event, a pointer to one of the types in package events.
type EventHandler func(ctx context.Context, event any) error

type EventBus interface {
	EventPublisher
	EventSubscriber
	Close() error
	GenerateID() string
}
