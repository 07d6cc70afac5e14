// Package mqtt publishes workflow notifications to an MQTT broker.
package mqtt

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/dukex/autoflow/pkg/integrations/notify"
)

const (
	defaultConnectTimeout = 10 * time.Second
	defaultPublishTimeout = 5 * time.Second
	defaultKeepAlive      = 60 * time.Second
	disconnectQuiesce     = 250 // milliseconds
)

var ErrConnectionFailed = errors.New("mqtt connection failed")

type Config struct {
	Broker      string `yaml:"broker" validate:"required"` // e.g. tcp://localhost:1883
	ClientID    string `yaml:"client_id"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	TopicPrefix string `yaml:"topic_prefix"`
	QoS         byte   `yaml:"qos" validate:"max=2"`
}

// Notifier publishes each notification as JSON on <prefix>/<channel>.
type Notifier struct {
	client pahomqtt.Client
	cfg    Config
	logger *slog.Logger
}

func buildClientOptions(cfg Config, logger *slog.Logger) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectTimeout(defaultConnectTimeout)
	opts.SetKeepAlive(defaultKeepAlive)

	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		logger.Warn("MQTT connection lost", "broker", cfg.Broker, "error", err)
	})

	return opts
}

// Connect dials the broker and waits for the initial connection.
func Connect(cfg Config, logger *slog.Logger) (*Notifier, error) {
	if cfg.ClientID == "" {
		cfg.ClientID = "autoflow"
	}

	if cfg.TopicPrefix == "" {
		cfg.TopicPrefix = "autoflow/notifications"
	}

	if cfg.QoS > 2 {
		return nil, fmt.Errorf("invalid qos %d", cfg.QoS)
	}

	client := pahomqtt.NewClient(buildClientOptions(cfg, logger))

	token := client.Connect()
	if !token.WaitTimeout(defaultConnectTimeout) {
		return nil, fmt.Errorf("%w: timeout after %v", ErrConnectionFailed, defaultConnectTimeout)
	}

	if err := token.Error(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	logger.Info("Connected to MQTT broker", "broker", cfg.Broker)

	return &Notifier{client: client, cfg: cfg, logger: logger}, nil
}

// Topic returns the topic a notification for channel is published on.
func Topic(prefix, channel string) string {
	channel = strings.NewReplacer("/", "_", "+", "_", "#", "_").Replace(channel)
	if channel == "" {
		channel = notify.DefaultChannel
	}

	return strings.TrimSuffix(prefix, "/") + "/" + channel
}

func (n *Notifier) Notify(ctx context.Context, notification notify.Notification) error {
	payload, err := json.Marshal(notification)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	timeout := defaultPublishTimeout
	if deadline, ok := ctx.Deadline(); ok {
		timeout = min(timeout, time.Until(deadline))
	}

	topic := Topic(n.cfg.TopicPrefix, notification.Channel)

	token := n.client.Publish(topic, n.cfg.QoS, false, payload)
	if !token.WaitTimeout(timeout) {
		return fmt.Errorf("mqtt publish to %s: timeout after %v", topic, timeout)
	}

	if err := token.Error(); err != nil {
		return fmt.Errorf("mqtt publish to %s: %w", topic, err)
	}

	n.logger.DebugContext(ctx, "Published notification", "topic", topic)

	return nil
}

func (n *Notifier) Close() {
	n.client.Disconnect(disconnectQuiesce)
}
