package events

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/alagappainfotech/student-registration-app/internal/config"
	"github.com/alagappainfotech/student-registration-app/internal/session"

	"github.com/google/uuid"
)

const (
	TypeLogin     = "session.login"
	TypeRefreshed = "session.refreshed"
	TypeLogout    = "session.logout"
	TypeVoided    = "session.voided"
)

// Message is the JSON payload published for every session transition.
type Message struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	Role       string    `json:"role,omitempty"`
	UserID     string    `json:"user_id,omitempty"`
	Reason     string    `json:"reason,omitempty"`
	Epoch      uint64    `json:"epoch"`
	OccurredAt time.Time `json:"occurred_at"`
}

// FromSession maps a store event to its published form. A clear caused by
// the user logging out is a logout; every other clear voided the session.
func FromSession(ev session.Event) Message {
	msg := Message{
		ID:         uuid.NewString(),
		Role:       string(ev.Role),
		UserID:     ev.UserID,
		Reason:     ev.Reason,
		Epoch:      ev.Epoch,
		OccurredAt: ev.At.UTC(),
	}
	switch ev.Kind {
	case session.EventLogin:
		msg.Type = TypeLogin
	case session.EventRefreshed:
		msg.Type = TypeRefreshed
	case session.EventCleared:
		if ev.Reason == session.ReasonLogout {
			msg.Type = TypeLogout
		} else {
			msg.Type = TypeVoided
		}
	}
	return msg
}

type Publisher interface {
	Publish(ctx context.Context, msg Message) error
	Close() error
}

// New builds the publisher selected by cfg.Backend.
func New(cfg config.EventsConfig, logger *slog.Logger) (Publisher, error) {
	switch cfg.Backend {
	case "", "none":
		return Noop{}, nil
	case "nats":
		return NewNATSPublisher(cfg.NATS.URL, cfg.NATS.Subject, logger)
	case "kafka":
		return NewKafkaPublisher(cfg.Kafka.Brokers, cfg.Kafka.Topic, logger)
	}
	return nil, fmt.Errorf("unknown events backend %q", cfg.Backend)
}

// Noop drops every message.
type Noop struct{}

func (Noop) Publish(context.Context, Message) error { return nil }

func (Noop) Close() error { return nil }
