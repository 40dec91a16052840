// Package events publishes release lifecycle events to NATS.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/felloworks/wheelwright/internal/config"
	"github.com/felloworks/wheelwright/internal/eventstore"
	"github.com/felloworks/wheelwright/internal/logfields"
)

// Publisher forwards release events to a JetStream-enabled NATS server.
// Publishing is best effort; the event store remains the source of truth.
type Publisher struct {
	conn   *nats.Conn
	js     jetstream.JetStream
	prefix string
}

// envelope is the wire form of a published event.
type envelope struct {
	ReleaseID string          `json:"release_id"`
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// NewPublisher connects to NATS and makes sure the release event stream
// exists.
func NewPublisher(cfg config.EventsConfig) (*Publisher, error) {
	if cfg.NATSURL == "" {
		return nil, fmt.Errorf("event publishing is disabled")
	}

	conn, err := nats.Connect(cfg.NATSURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	prefix := cfg.SubjectPrefix
	if prefix == "" {
		prefix = "wheelwright.releases"
	}

	p := &Publisher{conn: conn, js: js, prefix: prefix}
	if err := p.ensureStream(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ensure event stream: %w", err)
	}

	slog.Info("NATS publisher initialized",
		slog.String("url", cfg.NATSURL),
		slog.String("subject_prefix", prefix))

	return p, nil
}

// ensureStream creates or gets the stream holding release events.
func (p *Publisher) ensureStream() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	name := p.streamName()
	if _, err := p.js.Stream(ctx, name); err == nil {
		return nil
	}

	_, err := p.js.CreateStream(ctx, jetstream.StreamConfig{
		Name:        name,
		Description: "Release lifecycle events",
		Subjects:    []string{p.prefix + ".>"},
		MaxAge:      30 * 24 * time.Hour,
	})
	if err != nil {
		return fmt.Errorf("failed to create stream: %w", err)
	}

	slog.Info("Created event stream", slog.String("stream", name))
	return nil
}

// streamName derives the JetStream stream name from the subject prefix.
func (p *Publisher) streamName() string {
	return strings.ToUpper(strings.ReplaceAll(p.prefix, ".", "_"))
}

// subjectFor returns the subject an event type is published on.
func (p *Publisher) subjectFor(eventType string) string {
	return p.prefix + "." + eventType
}

// Publish sends one event to its subject.
func (p *Publisher) Publish(event eventstore.Event) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	data, err := json.Marshal(envelope{
		ReleaseID: event.ReleaseID(),
		Type:      event.Type(),
		Timestamp: event.Timestamp(),
		Payload:   json.RawMessage(event.Payload()),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	subject := p.subjectFor(event.Type())
	if _, err := p.js.Publish(ctx, subject, data); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	slog.Debug("Published release event",
		logfields.ReleaseID(event.ReleaseID()),
		slog.String("subject", subject))

	return nil
}

// Close closes the NATS connection.
func (p *Publisher) Close() error {
	if p.conn != nil {
		p.conn.Close()
	}
	return nil
}

// Compile-time check that Publisher can feed the event store observer.
var _ eventstore.Sink = (*Publisher)(nil)
