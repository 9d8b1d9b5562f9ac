package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"
)

// NATSPublisher publishes to <subject>.<type suffix>, e.g.
// academy.session.login.
type NATSPublisher struct {
	conn    *nats.Conn
	subject string
	logger  *slog.Logger
}

func NewNATSPublisher(url, subject string, logger *slog.Logger) (*NATSPublisher, error) {
	nc, err := nats.Connect(url, nats.Name("academy-client"))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to nats: %w", err)
	}

	logger.Info("NATS publisher initialized", "url", url, "subject", subject)

	return &NATSPublisher{
		conn:    nc,
		subject: subject,
		logger:  logger,
	}, nil
}

// Subject returns the subject msg is published on.
func (p *NATSPublisher) Subject(msg Message) string {
	return p.subject + "." + typeSuffix(msg.Type)
}

func (p *NATSPublisher) Publish(ctx context.Context, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}
	subject := p.Subject(msg)
	if err := p.conn.Publish(subject, data); err != nil {
		return fmt.Errorf("failed to publish to nats: %w", err)
	}
	p.logger.DebugContext(ctx, "event sent to NATS", "subject", subject, "id", msg.ID)
	return nil
}

func (p *NATSPublisher) Close() error {
	if err := p.conn.Drain(); err != nil {
		p.conn.Close()
		return err
	}
	return nil
}
