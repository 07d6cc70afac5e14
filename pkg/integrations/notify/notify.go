// Package notify delivers workflow notifications to channels.
package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"
)

// DefaultChannel is used when a notification names no channel.
const DefaultChannel = "general"

type Notification struct {
	Channel     string    `json:"channel"`
	Title       string    `json:"title,omitempty"`
	Message     string    `json:"message"`
	Recipient   string    `json:"recipient,omitempty"`
	ScopeID     string    `json:"scope_id,omitempty"`
	WorkflowID  string    `json:"workflow_id"`
	ExecutionID string    `json:"execution_id"`
	SentAt      time.Time `json:"sent_at"`
}

type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

// LogNotifier writes notifications to the log.
type LogNotifier struct {
	Logger *slog.Logger
}

func (l LogNotifier) Notify(ctx context.Context, n Notification) error {
	l.Logger.InfoContext(ctx, "Notification", "channel", n.Channel, "title", n.Title, "recipient", n.Recipient, "message", n.Message)

	return nil
}

// Fanout delivers to every notifier and joins their errors.
type Fanout []Notifier

func (f Fanout) Notify(ctx context.Context, n Notification) error {
	var errs []error

	for _, notifier := range f {
		if err := notifier.Notify(ctx, n); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// Recorder keeps every notification in memory.
type Recorder struct {
	mu   sync.Mutex
	sent []Notification
}

func (r *Recorder) Notify(_ context.Context, n Notification) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sent = append(r.sent, n)

	return nil
}

func (r *Recorder) Sent() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()

	return append([]Notification(nil), r.sent...)
}
