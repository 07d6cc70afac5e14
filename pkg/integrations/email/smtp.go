package email

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/wneessen/go-mail"
)

type SMTPConfig struct {
	Host     string `yaml:"host" validate:"required"`
	Port     int    `yaml:"port" validate:"min=0,max=65535"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from" validate:"required,email"`
	FromName string `yaml:"from_name"`
}

// SMTPSender delivers messages through an SMTP relay, upgrading to TLS when the server offers STARTTLS.
type SMTPSender struct {
	cfg     SMTPConfig
	timeout time.Duration
}

func NewSMTPSender(cfg SMTPConfig) *SMTPSender {
	if cfg.Port == 0 {
		cfg.Port = 587
	}

	return &SMTPSender{cfg: cfg, timeout: 10 * time.Second}
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	if len(msg.Recipients()) == 0 {
		return ErrNoRecipients
	}

	m, err := s.compose(msg)
	if err != nil {
		return err
	}

	opts := []mail.Option{
		mail.WithPort(s.cfg.Port),
		mail.WithTLSPolicy(mail.TLSOpportunistic),
		mail.WithTimeout(s.timeout),
	}

	if s.cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(s.cfg.Username),
			mail.WithPassword(s.cfg.Password),
		)
	}

	client, err := mail.NewClient(s.cfg.Host, opts...)
	if err != nil {
		return fmt.Errorf("smtp client: %w", err)
	}

	addr := net.JoinHostPort(s.cfg.Host, strconv.Itoa(s.cfg.Port))

	err = client.DialAndSendWithContext(ctx, m)
	if err != nil {
		return fmt.Errorf("smtp send via %s: %w", addr, err)
	}

	return nil
}

// compose builds the MIME message. Header values are RFC 2047 encoded by go-mail; a message
// with an HTML body is sent as multipart/alternative with the text body first.
func (s *SMTPSender) compose(msg Message) (*mail.Msg, error) {
	m := mail.NewMsg()

	var err error

	switch {
	case msg.From != "":
		err = m.From(msg.From)
	case s.cfg.FromName != "":
		err = m.FromFormat(s.cfg.FromName, s.cfg.From)
	default:
		err = m.From(s.cfg.From)
	}

	if err != nil {
		return nil, fmt.Errorf("invalid sender: %w", err)
	}

	err = m.To(msg.To...)
	if err != nil {
		return nil, fmt.Errorf("invalid recipient: %w", err)
	}

	if len(msg.Cc) > 0 {
		err = m.Cc(msg.Cc...)
		if err != nil {
			return nil, fmt.Errorf("invalid cc recipient: %w", err)
		}
	}

	m.Subject(strings.NewReplacer("\r", "", "\n", "").Replace(msg.Subject))
	m.SetDate()
	m.SetBodyString(mail.TypeTextPlain, msg.Body)

	if msg.HTMLBody != "" {
		m.AddAlternativeString(mail.TypeTextHTML, msg.HTMLBody)
	}

	return m, nil
}
