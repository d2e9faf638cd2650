package email

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
)

var ErrNoRecipients = errors.New("email: no recipients")

// Message is a rendered email ready for delivery.
type Message struct {
	To      []string
	Subject string
	HTML    string
}

// Validate rejects messages that no transport could deliver.
func (m Message) Validate() error {
	for _, to := range m.To {
		if strings.TrimSpace(to) != "" {
			return nil
		}
	}
	return ErrNoRecipients
}

type Provider interface {
	Send(ctx context.Context, msg Message) error
}

// NoOpProvider drops messages when SMTP delivery is disabled.
type NoOpProvider struct {
	log *zap.Logger
}

func (p *NoOpProvider) Send(ctx context.Context, msg Message) error {
	if err := msg.Validate(); err != nil {
		return err
	}
	if p.log != nil {
		p.log.Debug("email delivery disabled, dropping message",
			zap.Int("recipients", len(msg.To)),
			zap.String("subject", msg.Subject),
		)
	}
	return nil
}
