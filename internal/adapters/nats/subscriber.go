package natsadapter

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/KristerJLawlor/wildfire-tracker/internal/core/domain"
	"github.com/KristerJLawlor/wildfire-tracker/internal/pkg/logging"
)

// Subscriber implements ports.DatasetSubscriber using NATS JetStream.
type Subscriber struct {
	conn    *nats.Conn
	js      nats.JetStreamContext
	durable string
	subs    []*nats.Subscription
}

// NewSubscriber creates a subscriber. Each API replica needs its own durable
// name so that every replica sees every update.
func NewSubscriber(url, durable string) (*Subscriber, error) {
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
	return &Subscriber{conn: conn, js: js, durable: durable}, nil
}

// SubscribeDatasetUpdates invokes handler for each announcement. Messages
// that fail to decode or handle are redelivered up to three times.
func (s *Subscriber) SubscribeDatasetUpdates(ctx context.Context, handler func(ctx context.Context, update domain.DatasetUpdate) error) error {
	sub, err := s.js.Subscribe(SubjectDatasetUpdated, func(msg *nats.Msg) {
		var update domain.DatasetUpdate
		if err := json.Unmarshal(msg.Data, &update); err != nil {
			logging.FromContext(ctx).Warn("bad dataset update", "error", err)
			_ = msg.Term()
			return
		}
		if err := handler(ctx, update); err != nil {
			_ = msg.Nak()
			return
		}
		_ = msg.Ack()
	},
		nats.Durable(s.durable),
		nats.ManualAck(),
		nats.MaxDeliver(3),
		nats.DeliverNew(),
	)
	if err != nil {
		return err
	}
	s.subs = append(s.subs, sub)
	return nil
}

// Conn exposes the underlying connection for health checks.
func (s *Subscriber) Conn() *nats.Conn { return s.conn }

// Close unsubscribes and drains.
func (s *Subscriber) Close() {
	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
	_ = s.conn.Drain()
}
