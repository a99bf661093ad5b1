// Package notify consumes booking lifecycle events and turns them into email.
// Send failures are logged and dropped; notifications never affect the request
// path that produced the event.
package notify

import (
	"encoding/json"

	"github.com/MozzammelRidoy/car-doctor-server/internal/platform/mailer"
	"github.com/MozzammelRidoy/car-doctor-server/pkg/events"
	"github.com/MozzammelRidoy/car-doctor-server/pkg/logger"
)

type Notifier struct {
	mailer mailer.Service
}

func New(m mailer.Service) *Notifier {
	return &Notifier{mailer: m}
}

// Start subscribes to booking.created on a work queue so only one instance
// sends each confirmation.
func (n *Notifier) Start(bus events.Subscriber) error {
	return bus.QueueSubscribe(events.BookingCreated, "notify", n.handleBookingCreated)
}

func (n *Notifier) handleBookingCreated(msg *events.Message) {
	var ev events.BookingCreatedEvent
	if err := json.Unmarshal(msg.Data, &ev); err != nil {
		logger.Error("notify: bad booking.created payload", "error", err)
		return
	}

	if err := n.mailer.SendBookingConfirmation(ev.CustomerEmail, ev.CustomerName, ev.ServiceTitle, ev.BookingID); err != nil {
		logger.Error("notify: confirmation mail failed",
			"booking_id", ev.BookingID,
			"error", err,
		)
		return
	}

	logger.Info("notify: confirmation mail sent", "booking_id", ev.BookingID)
}
