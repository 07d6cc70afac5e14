package cmd

import (
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"

	"github.com/dukex/autoflow/pkg/channels/gochannel"
	"github.com/dukex/autoflow/pkg/channels/kafka"
	"github.com/dukex/autoflow/pkg/eventbus"
)

// NewEventBus builds the bus for provider. "gochannel" only reaches subscribers in the same
// process.
func NewEventBus(provider string, brokers string, serviceName string, logger *slog.Logger) (eventbus.EventBus, error) {
	wlogger := watermill.NewSlogLogger(logger.With("module", "watermill"))

	switch provider {
	case "kafka":
		pub, sub, err := kafka.CreateChannel(wlogger, kafka.ParseBrokers(brokers), serviceName)
		if err != nil {
			return nil, fmt.Errorf("failed to create Kafka pub/sub: %w", err)
		}

		return eventbus.NewWatermillEventBus(pub, sub, logger.With("module", "eventbus")), nil
	case "gochannel", "":
		pub, sub, err := gochannel.CreateChannel(wlogger)
		if err != nil {
			return nil, fmt.Errorf("failed to create in-process pub/sub: %w", err)
		}

		return eventbus.NewWatermillEventBus(pub, sub, logger.With("module", "eventbus")), nil
	default:
		return nil, fmt.Errorf("unsupported event bus provider: %s", provider)
	}
}
