package mailer

type Service interface {
	Send(toEmail, toName, subject, text, html string) (string, error)
	SendBookingConfirmation(toEmail, toName, serviceTitle string, bookingID int64) error
}
