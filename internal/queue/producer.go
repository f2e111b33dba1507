// Package queue mirrors lifecycle events to NATS JetStream for external
// consumers. The mirror is optional; the service runs fine without a broker.
package queue

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const EventsStreamName = "STREAMHUB_EVENTS"

type Producer struct {
	nc      *nats.Conn
	js      jetstream.JetStream
	subject string
}

func NewProducer(natsURL, subject string) (*Producer, error) {
	nc, err := nats.Connect(natsURL,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("create jetstream context: %w", err)
	}

	return &Producer{nc: nc, js: js, subject: subject}, nil
}

// EnsureStream creates the events stream if it doesn't exist.
func (p *Producer) EnsureStream(ctx context.Context) error {
	opCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := p.js.CreateOrUpdateStream(opCtx, jetstream.StreamConfig{
		Name:        EventsStreamName,
		Subjects:    []string{p.subject},
		Retention:   jetstream.InterestPolicy,
		MaxAge:      24 * time.Hour,
		MaxMsgs:     1000000,
		Storage:     jetstream.FileStorage,
		Description: "Stream lifecycle events",
	})
	if err != nil {
		return fmt.Errorf("create stream %s: %w", EventsStreamName, err)
	}
	return nil
}

// PublishEvent publishes one lifecycle event to the events subject.
func (p *Producer) PublishEvent(ctx context.Context, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if _, err := p.js.Publish(ctx, p.subject, payload); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}
	return nil
}

func (p *Producer) Ping() error {
	if !p.nc.IsConnected() {
		return fmt.Errorf("nats not connected")
	}
	return nil
}

func (p *Producer) Close() {
	p.nc.Close()
}
