package notify

import (
	"context"
	"errors"
	"fmt"
	"net/smtp"
)

// SMTPConfig holds the relay settings for outbound notification mail.
type SMTPConfig struct {
	Host     string
	Port     int
	From     string
	Username string
	Password string
}

// SMTPNotifier sends one personalized message per recipient through a plain
// SMTP relay.
type SMTPNotifier struct {
	cfg  SMTPConfig
	send func(addr string, a smtp.Auth, from string, to []string, msg []byte) error
}

// NewSMTP builds an SMTPNotifier. Port defaults to 587 and From to a no-reply
// address when unset.
func NewSMTP(cfg SMTPConfig) *SMTPNotifier {
	if cfg.Port == 0 {
		cfg.Port = 587
	}
	if cfg.From == "" {
		cfg.From = "no-reply@example.org"
	}
	return &SMTPNotifier{cfg: cfg, send: smtp.SendMail}
}

// Notify delivers the notification to every recipient, continuing past
// individual delivery failures and joining them into one error.
func (s *SMTPNotifier) Notify(ctx context.Context, n Notification) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	var auth smtp.Auth
	if s.cfg.Username != "" {
		auth = smtp.PlainAuth("", s.cfg.Username, s.cfg.Password, s.cfg.Host)
	}

	var errs []error
	for _, recipient := range n.Recipients {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		body, err := RenderBody(recipient, n)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		msg := fmt.Sprintf(
			"From: %s\r\nTo: %s\r\nSubject: %s\r\nMIME-Version: 1.0\r\nContent-Type: text/html; charset=UTF-8\r\n\r\n%s",
			s.cfg.From, recipient, Subject(n.ParcelLabel), body,
		)
		if err := s.send(addr, auth, s.cfg.From, []string{recipient}, []byte(msg)); err != nil {
			errs = append(errs, fmt.Errorf("send to %s: %w", recipient, err))
		}
	}
	return errors.Join(errs...)
}
