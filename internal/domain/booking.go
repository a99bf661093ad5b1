package domain

import (
	"encoding/json"
	"strings"
	"time"
)

type BookingStatus string

// Common lifecycle values. The status field stays an open string: the update
// operation accepts any non-empty value until product defines a fixed enum.
const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCompleted BookingStatus = "completed"
	BookingCanceled  BookingStatus = "canceled"
)

type Booking struct {
	ID            int64          `json:"id"`
	CustomerEmail string         `json:"email"`
	CustomerName  string         `json:"name,omitempty"`
	ServiceID     int64          `json:"service_id"`
	ServiceTitle  string         `json:"service_title,omitempty"`
	Price         float64        `json:"price,omitempty"`
	ServiceDate   string         `json:"date,omitempty"`
	Status        BookingStatus  `json:"status"`
	Details       map[string]any `json:"-"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// MarshalJSON flattens the opaque details back onto the booking object, so
// client-supplied extra fields round-trip the way they did when bookings were
// raw documents. Typed fields win on key collision.
func (b Booking) MarshalJSON() ([]byte, error) {
	type alias Booking
	raw, err := json.Marshal(alias(b))
	if err != nil {
		return nil, err
	}
	if len(b.Details) == 0 {
		return raw, nil
	}

	out := make(map[string]any, len(b.Details)+8)
	for k, v := range b.Details {
		out[k] = v
	}
	var typed map[string]any
	if err := json.Unmarshal(raw, &typed); err != nil {
		return nil, err
	}
	for k, v := range typed {
		out[k] = v
	}
	return json.Marshal(out)
}

// BookingCreateReq is the validated create payload. Known fields are typed;
// everything else the client sends is kept opaquely in Details.
type BookingCreateReq struct {
	CustomerEmail string
	CustomerName  string
	ServiceID     int64
	ServiceTitle  string
	Price         float64
	ServiceDate   string
	Details       map[string]any
}

func (r *BookingCreateReq) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	take := func(key string, dst any) error {
		v, ok := raw[key]
		if !ok {
			return nil
		}
		delete(raw, key)
		return json.Unmarshal(v, dst)
	}

	if err := take("email", &r.CustomerEmail); err != nil {
		return err
	}
	if err := take("name", &r.CustomerName); err != nil {
		return err
	}
	if err := take("service_id", &r.ServiceID); err != nil {
		return err
	}
	if err := take("service_title", &r.ServiceTitle); err != nil {
		return err
	}
	if err := take("price", &r.Price); err != nil {
		return err
	}
	if err := take("date", &r.ServiceDate); err != nil {
		return err
	}

	if len(raw) > 0 {
		r.Details = make(map[string]any, len(raw))
		for k, v := range raw {
			var val any
			if err := json.Unmarshal(v, &val); err != nil {
				return err
			}
			r.Details[k] = val
		}
	}
	return nil
}

func (r *BookingCreateReq) Validate() error {
	if !IsValidEmail(r.CustomerEmail) {
		return ErrInvalidEmail
	}
	if r.ServiceID <= 0 {
		return ErrInvalidServiceID
	}
	return nil
}

func IsValidEmail(email string) bool {
	at := strings.Index(email, "@")
	return at > 0 && at < len(email)-1 && !strings.ContainsAny(email, " \t")
}

// BookingStatusPatch carries the only mutable field; other payload fields are
// ignored on update.
type BookingStatusPatch struct {
	Status string `json:"status"`
}
