// Package email delivers workflow emails.
package email

import (
	"context"
	"errors"
	"log/slog"
	"strings"
)

var ErrNoRecipients = errors.New("email has no recipients")

type Message struct {
	From    string
	To      []string
	Cc      []string
	Subject string
	Body    string
	// HTMLBody, when set, is sent as an alternative to Body.
	HTMLBody string
}

// Recipients returns every envelope recipient.
func (m Message) Recipients() []string {
	return append(append([]string{}, m.To...), m.Cc...)
}

// Sender delivers a message or reports why it could not.
type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// LogSender writes messages to the log instead of delivering them.
type LogSender struct {
	Logger *slog.Logger
}

func (s LogSender) Send(ctx context.Context, msg Message) error {
	if len(msg.Recipients()) == 0 {
		return ErrNoRecipients
	}

	s.Logger.InfoContext(ctx, "Email delivery skipped, no SMTP server configured",
		"to", strings.Join(msg.To, ","),
		"cc", strings.Join(msg.Cc, ","),
		"subject", msg.Subject,
	)

	return nil
}
