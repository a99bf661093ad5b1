package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/MozzammelRidoy/car-doctor-server/pkg/logger"
	"github.com/nats-io/nats.go"
)

type Publisher interface {
	Publish(ctx context.Context, subject string, data interface{}) error
	Close() error
}

type Subscriber interface {
	Subscribe(subject string, handler func(msg *Message)) error
	QueueSubscribe(subject, queue string, handler func(msg *Message)) error
	Close() error
}

type EventBus interface {
	Publisher
	Subscriber
}

type Message struct {
	Subject   string
	Data      []byte
	Timestamp time.Time
}

type NATSEventBus struct {
	conn *nats.Conn
}

func NewNATSEventBus(url string) (*NATSEventBus, error) {
	conn, err := nats.Connect(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	return &NATSEventBus{conn: conn}, nil
}

func (n *NATSEventBus) Publish(ctx context.Context, subject string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}

	logger.DebugContext(ctx, "Publishing event", "subject", subject, "data", string(payload))

	return n.conn.Publish(subject, payload)
}

func (n *NATSEventBus) Subscribe(subject string, handler func(msg *Message)) error {
	_, err := n.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(&Message{
			Subject:   msg.Subject,
			Data:      msg.Data,
			Timestamp: time.Now(),
		})
	})
	return err
}

func (n *NATSEventBus) QueueSubscribe(subject, queue string, handler func(msg *Message)) error {
	_, err := n.conn.QueueSubscribe(subject, queue, func(msg *nats.Msg) {
		handler(&Message{
			Subject:   msg.Subject,
			Data:      msg.Data,
			Timestamp: time.Now(),
		})
	})
	return err
}

func (n *NATSEventBus) Close() error {
	n.conn.Close()
	return nil
}

// NopBus satisfies EventBus when no broker is reachable; every call is a no-op.
type NopBus struct{}

func (NopBus) Publish(context.Context, string, interface{}) error      { return nil }
func (NopBus) Subscribe(string, func(msg *Message)) error              { return nil }
func (NopBus) QueueSubscribe(string, string, func(msg *Message)) error { return nil }
func (NopBus) Close() error                                            { return nil }

// Subjects for booking lifecycle events.
const (
	BookingCreated       = "booking.created"
	BookingStatusChanged = "booking.status_changed"
	BookingDeleted       = "booking.deleted"

	NotifySend = "notify.send"
)

type BookingCreatedEvent struct {
	BookingID     int64     `json:"booking_id"`
	CustomerEmail string    `json:"customer_email"`
	CustomerName  string    `json:"customer_name"`
	ServiceID     int64     `json:"service_id"`
	ServiceTitle  string    `json:"service_title"`
	CreatedAt     time.Time `json:"created_at"`
}

type BookingStatusChangedEvent struct {
	BookingID     int64     `json:"booking_id"`
	CustomerEmail string    `json:"customer_email"`
	Status        string    `json:"status"`
	ChangedAt     time.Time `json:"changed_at"`
}

type BookingDeletedEvent struct {
	BookingID int64     `json:"booking_id"`
	DeletedAt time.Time `json:"deleted_at"`
}
