package events

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"log/slog"
)

type capturePublisher struct {
	topic string
	key   string
	value any
	err   error
}

func (p *capturePublisher) PublishJSON(_ context.Context, topic, key string, value any) error {
	p.topic, p.key, p.value = topic, key, value
	return p.err
}

func (p *capturePublisher) Close() error { return nil }

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(bytes.NewBuffer(nil), nil))
}

func TestEmitBuildsEnvelopeAndTopic(t *testing.T) {
	pub := &capturePublisher{}
	emitter := NewEmitter(pub, "griha", testLogger())

	emitter.Emit(context.Background(), TypePropertyCreated, "key-1", map[string]string{"city": "Bengaluru"})

	if pub.topic != "griha.property.created" {
		t.Fatalf("expected topic griha.property.created, got %q", pub.topic)
	}
	if pub.key != "key-1" {
		t.Fatalf("expected key key-1, got %q", pub.key)
	}

	env, ok := pub.value.(Envelope)
	if !ok {
		t.Fatalf("expected Envelope, got %T", pub.value)
	}
	if env.EventType != TypePropertyCreated || env.EventVersion != 1 {
		t.Fatalf("unexpected envelope %+v", env)
	}
	if env.EventID == "" || env.Timestamp.IsZero() {
		t.Fatalf("expected event id and timestamp, got %+v", env)
	}
}

func TestEmitIsBestEffort(t *testing.T) {
	pub := &capturePublisher{err: errors.New("broker down")}
	emitter := NewEmitter(pub, "griha", testLogger())

	// Must not panic or propagate the publish failure.
	emitter.Emit(context.Background(), TypeInquiryCreated, "key", nil)
}

func TestEmitDisabledWithoutPublisher(t *testing.T) {
	emitter := NewEmitter(nil, "griha", testLogger())
	emitter.Emit(context.Background(), TypeUserRegistered, "key", nil)

	var nilEmitter *Emitter
	nilEmitter.Emit(context.Background(), TypeUserRegistered, "key", nil)
	if err := nilEmitter.Close(); err != nil {
		t.Fatalf("expected nil close, got %v", err)
	}
}
