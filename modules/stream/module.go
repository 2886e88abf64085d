// Package stream forwards task lifecycle events to a NATS JetStream stream
// so services outside the monolith can follow the marketplace.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/khalidAdell/quick-task/events"
	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

const (
	// StreamName is the JetStream stream lifecycle events are stored in.
	StreamName = "QUICKTASK"
	// SubjectAll matches every forwarded subject.
	SubjectAll = "quicktask.>"

	SubjectTaskCreated     = "quicktask.task.created"
	SubjectBidPlaced       = "quicktask.task.bid_placed"
	SubjectTaskAssigned    = "quicktask.task.assigned"
	SubjectTaskCompleted   = "quicktask.task.completed"
	SubjectPaymentReleased = "quicktask.task.payment_released"
	SubjectTaskDeleted     = "quicktask.task.deleted"
)

// Publisher is the part of jetstream.JetStream the module publishes through.
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// StreamModule consumes lifecycle events from the mono event bus and
// republishes them on JetStream.
type StreamModule struct {
	url       string
	nc        *nats.Conn
	js        Publisher
	published atomic.Int64
	failed    atomic.Int64
}

var _ mono.Module = (*StreamModule)(nil)
var _ mono.EventConsumerModule = (*StreamModule)(nil)
var _ mono.HealthCheckableModule = (*StreamModule)(nil)

// NewModule creates a StreamModule publishing to the NATS server at url.
func NewModule(url string) *StreamModule {
	return &StreamModule{url: url}
}

func (m *StreamModule) Name() string {
	return "stream"
}

func (m *StreamModule) Start(ctx context.Context) error {
	nc, err := nats.Connect(m.url,
		nats.Name("quick-task-stream"),
		nats.MaxReconnects(10),
		nats.ReconnectWait(time.Second),
	)
	if err != nil {
		return fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return fmt.Errorf("failed to create JetStream context: %w", err)
	}

	if _, err := js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Description: "Task lifecycle events",
		Subjects:    []string{SubjectAll},
		Retention:   jetstream.LimitsPolicy,
		MaxAge:      7 * 24 * time.Hour,
		Storage:     jetstream.FileStorage,
		Duplicates:  2 * time.Minute,
		Replicas:    1,
	}); err != nil {
		nc.Close()
		return fmt.Errorf("failed to create stream: %w", err)
	}

	m.nc = nc
	m.js = js
	log.Printf("[stream] Module started (NATS: %s, stream: %s)", m.url, StreamName)
	return nil
}

func (m *StreamModule) Stop(_ context.Context) error {
	if m.nc != nil {
		if err := m.nc.Drain(); err != nil {
			m.nc.Close()
		}
	}
	log.Printf("[stream] Module stopped (%d events forwarded, %d failed)", m.published.Load(), m.failed.Load())
	return nil
}

func (m *StreamModule) Health(_ context.Context) mono.HealthStatus {
	connected := m.nc != nil && m.nc.IsConnected()
	msg := "operational"
	if !connected {
		msg = "not connected to NATS"
	}
	return mono.HealthStatus{
		Healthy: connected,
		Message: msg,
		Details: map[string]any{
			"stream":    StreamName,
			"forwarded": m.published.Load(),
			"failed":    m.failed.Load(),
		},
	}
}

func (m *StreamModule) RegisterEventConsumers(registry mono.EventRegistry) error {
	if err := helper.RegisterTypedEventConsumer(registry, events.TaskCreatedV1,
		func(ctx context.Context, e events.TaskCreatedEvent, _ *mono.Msg) error {
			return m.forward(ctx, SubjectTaskCreated, e.TaskID+":created", e)
		}, m); err != nil {
		return fmt.Errorf("failed to register TaskCreated consumer: %w", err)
	}

	if err := helper.RegisterTypedEventConsumer(registry, events.BidPlacedV1,
		func(ctx context.Context, e events.BidPlacedEvent, _ *mono.Msg) error {
			return m.forward(ctx, SubjectBidPlaced, e.TaskID+":bid:"+e.BidID, e)
		}, m); err != nil {
		return fmt.Errorf("failed to register BidPlaced consumer: %w", err)
	}

	if err := helper.RegisterTypedEventConsumer(registry, events.TaskAssignedV1,
		func(ctx context.Context, e events.TaskAssignedEvent, _ *mono.Msg) error {
			return m.forward(ctx, SubjectTaskAssigned, e.TaskID+":assigned", e)
		}, m); err != nil {
		return fmt.Errorf("failed to register TaskAssigned consumer: %w", err)
	}

	if err := helper.RegisterTypedEventConsumer(registry, events.TaskCompletedV1,
		func(ctx context.Context, e events.TaskCompletedEvent, _ *mono.Msg) error {
			return m.forward(ctx, SubjectTaskCompleted, e.TaskID+":completed", e)
		}, m); err != nil {
		return fmt.Errorf("failed to register TaskCompleted consumer: %w", err)
	}

	if err := helper.RegisterTypedEventConsumer(registry, events.PaymentReleasedV1,
		func(ctx context.Context, e events.PaymentReleasedEvent, _ *mono.Msg) error {
			return m.forward(ctx, SubjectPaymentReleased, e.TaskID+":paid", e)
		}, m); err != nil {
		return fmt.Errorf("failed to register PaymentReleased consumer: %w", err)
	}

	if err := helper.RegisterTypedEventConsumer(registry, events.TaskDeletedV1,
		func(ctx context.Context, e events.TaskDeletedEvent, _ *mono.Msg) error {
			return m.forward(ctx, SubjectTaskDeleted, e.TaskID+":deleted", e)
		}, m); err != nil {
		return fmt.Errorf("failed to register TaskDeleted consumer: %w", err)
	}

	log.Println("[stream] Registered event consumers: TaskCreated, BidPlaced, TaskAssigned, TaskCompleted, PaymentReleased, TaskDeleted")
	return nil
}

// forward publishes payload on subject. msgID lets JetStream drop
// redelivered duplicates inside the stream's duplicate window.
// Failures are logged and swallowed so the event bus does not redeliver.
func (m *StreamModule) forward(ctx context.Context, subject, msgID string, payload any) error {
	if m.js == nil {
		return nil
	}
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("[stream] Warning: failed to marshal %s event: %v", subject, err)
		m.failed.Add(1)
		return nil
	}

	ack, err := m.js.Publish(ctx, subject, data, jetstream.WithMsgID(msgID))
	if err != nil {
		log.Printf("[stream] Warning: failed to publish %s (%s): %v", subject, msgID, err)
		m.failed.Add(1)
		return nil
	}
	m.published.Add(1)
	if ack.Duplicate {
		log.Printf("[stream] Duplicate %s (%s) ignored by stream", subject, msgID)
	}
	return nil
}
