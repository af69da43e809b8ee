// Package events publishes domain events to Kafka. Publishing is
// best-effort: a broker outage is logged and never fails the request
// that produced the event.
package events

import (
	"context"
	"fmt"
	"time"

	"log/slog"

	"github.com/google/uuid"
)

const (
	TypeUserRegistered  = "user.registered"
	TypePropertyCreated = "property.created"
	TypePropertyDeleted = "property.deleted"
	TypeInquiryCreated  = "inquiry.created"
)

type Envelope struct {
	EventID      string    `json:"event_id"`
	EventType    string    `json:"event_type"`
	EventVersion int       `json:"event_version"`
	Timestamp    time.Time `json:"timestamp"`
	Payload      any       `json:"payload"`
}

func NewEnvelope(eventType string, payload any) (Envelope, error) {
	if eventType == "" {
		return Envelope{}, fmt.Errorf("event_type is required")
	}
	return Envelope{
		EventID:      uuid.NewString(),
		EventType:    eventType,
		EventVersion: 1,
		Timestamp:    time.Now().UTC(),
		Payload:      payload,
	}, nil
}

type Publisher interface {
	PublishJSON(ctx context.Context, topic, key string, value any) error
	Close() error
}

// Emitter wraps an optional Publisher. A nil publisher means events are
// disabled; Emit becomes a no-op.
type Emitter struct {
	publisher   Publisher
	topicPrefix string
	logger      *slog.Logger
}

func NewEmitter(publisher Publisher, topicPrefix string, logger *slog.Logger) *Emitter {
	return &Emitter{publisher: publisher, topicPrefix: topicPrefix, logger: logger}
}

func (e *Emitter) Emit(ctx context.Context, eventType, key string, payload any) {
	if e == nil || e.publisher == nil {
		return
	}

	env, err := NewEnvelope(eventType, payload)
	if err != nil {
		e.logger.Error("build event failed", "event_type", eventType, "error", err)
		return
	}

	topic := e.topicPrefix + "." + eventType
	if err := e.publisher.PublishJSON(ctx, topic, key, env); err != nil {
		e.logger.Error("publish event failed", "topic", topic, "error", err)
	}
}

func (e *Emitter) Close() error {
	if e == nil || e.publisher == nil {
		return nil
	}
	return e.publisher.Close()
}
