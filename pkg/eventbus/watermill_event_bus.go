package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/dukex/autoflow/pkg/events"
)

// WatermillEventBus publishes every event on the topic named after its type. Messages are
// acknowledged once handled, whether or not the handler succeeded: the bus never redelivers
// a run request.
type WatermillEventBus struct {
	publisher  message.Publisher
	subscriber message.Subscriber
	logger     *slog.Logger

	mu            sync.RWMutex
	subscriptions map[events.EventType]EventHandler
}

func NewWatermillEventBus(pub message.Publisher, sub message.Subscriber, logger *slog.Logger) *WatermillEventBus {
	return &WatermillEventBus{
		publisher:     pub,
		subscriber:    sub,
		logger:        logger.With("module", "eventbus"),
		subscriptions: make(map[events.EventType]EventHandler),
	}
}

func (eb *WatermillEventBus) GenerateID() string {
	return watermill.NewULID()
}

func (eb *WatermillEventBus) Publish(ctx context.Context, key string, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal %s event: %w", event.GetType(), err)
	}

	msg := message.NewMessage("msg-"+eb.GenerateID(), payload)
	msg.Metadata.Set(events.EventMetadataKey, key)
	msg.Metadata.Set(events.EventTypeMetadataKey, string(event.GetType()))
	msg.SetContext(ctx)

	err = eb.publisher.Publish(string(event.GetType()), msg)
	if err != nil {
		return fmt.Errorf("failed to publish %s event: %w", event.GetType(), err)
	}

	return nil
}

// Handle registers handler for eventType. Handlers must be registered before Subscribe.
func (eb *WatermillEventBus) Handle(eventType events.EventType, handler EventHandler) error {
	if _, ok := events.New(eventType); !ok {
		return fmt.Errorf("unknown event type %q", eventType)
	}

	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.subscriptions[eventType] = handler

	return nil
}

// Subscribe starts one consumer per handled event type. Consumers stop when ctx is done or
// the bus is closed.
func (eb *WatermillEventBus) Subscribe(ctx context.Context) error {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	for eventType, handler := range eb.subscriptions {
		messages, err := eb.subscriber.Subscribe(ctx, string(eventType))
		if err != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", eventType, err)
		}

		go eb.consume(ctx, eventType, handler, messages)
	}

	return nil
}

func (eb *WatermillEventBus) consume(ctx context.Context, eventType events.EventType, handler EventHandler, messages <-chan *message.Message) {
	for msg := range messages {
		event, _ := events.New(eventType)

		err := json.Unmarshal(msg.Payload, event)
		if err != nil {
			eb.logger.ErrorContext(ctx, "Dropping undecodable event", "event_type", eventType, "message_id", msg.UUID, "error", err)
			msg.Ack()

			continue
		}

		err = handler(ctx, event)
		if err != nil {
			eb.logger.ErrorContext(ctx, "Event handler failed", "event_type", eventType, "message_id", msg.UUID, "error", err)
		}

		msg.Ack()
	}
}

func (eb *WatermillEventBus) Close() error {
	err := eb.publisher.Close()
	if err != nil {
		return err
	}

	return eb.subscriber.Close()
}
