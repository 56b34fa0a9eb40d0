package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/KristerJLawlor/wildfire-tracker/internal/core/domain"
)

const (
	// StreamDataset holds dataset change announcements.
	StreamDataset = "WILDFIRE_DATASET"
	// SubjectDatasetUpdated is published after each successful ingest.
	SubjectDatasetUpdated = "wildfire.dataset.updated"
)

// Connect opens a NATS connection that keeps retrying in the background.
func Connect(url string) (*nats.Conn, error) {
	conn, err := nats.Connect(url,
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	return conn, nil
}

// EnsureStream creates or updates the dataset stream.
func EnsureStream(js nats.JetStreamContext) error {
	cfg := nats.StreamConfig{
		Name:      StreamDataset,
		Subjects:  []string{"wildfire.dataset.>"},
		Retention: nats.InterestPolicy,
		MaxAge:    24 * time.Hour,
		MaxMsgs:   1000,
		Storage:   nats.FileStorage,
	}
	if _, err := js.AddStream(&cfg); err != nil {
		// Stream may already exist, try update
		if _, err := js.UpdateStream(&cfg); err != nil {
			return fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
		}
	}
	return nil
}

// Publisher implements ports.DatasetPublisher using NATS JetStream.
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// NewPublisher connects to NATS and enables JetStream.
func NewPublisher(url string) (*Publisher, error) {
	conn, err := Connect(url)
	if err != nil {
		return nil, err
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	if err := EnsureStream(js); err != nil {
		conn.Close()
		return nil, err
	}

	return &Publisher{conn: conn, js: js}, nil
}

// PublishDatasetUpdated announces a stored dataset change.
func (p *Publisher) PublishDatasetUpdated(ctx context.Context, update domain.DatasetUpdate) error {
	data, err := json.Marshal(update)
	if err != nil {
		return err
	}
	_, err = p.js.Publish(SubjectDatasetUpdated, data, nats.Context(ctx))
	return err
}

// Conn exposes the underlying connection for health checks.
func (p *Publisher) Conn() *nats.Conn { return p.conn }

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}
