package mailer

import (
	"github.com/MozzammelRidoy/car-doctor-server/pkg/logger"
)

// DevMailer prints mail to the logs instead of sending it.
type DevMailer struct{}

func NewDevMailer() *DevMailer {
	return &DevMailer{}
}

func (d *DevMailer) Send(toEmail, toName, subject, text, html string) (string, error) {
	logger.Info("[DEV MAIL]",
		"to", toEmail,
		"name", toName,
		"subject", subject,
		"text", text,
	)
	return "dev-mail", nil
}

func (d *DevMailer) SendBookingConfirmation(toEmail, toName, serviceTitle string, bookingID int64) error {
	logger.Info("[DEV MAIL] Booking Confirmation",
		"to", toEmail,
		"name", toName,
		"service", serviceTitle,
		"booking_id", bookingID,
	)
	return nil
}
