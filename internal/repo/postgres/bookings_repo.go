package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/MozzammelRidoy/car-doctor-server/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type BookingsRepository interface {
	Create(ctx context.Context, req *domain.BookingCreateReq) (int64, error)
	ListByEmail(ctx context.Context, email string) ([]domain.Booking, error)
	ListAll(ctx context.Context) ([]domain.Booking, error)
	UpdateStatus(ctx context.Context, id int64, status string) (*domain.Booking, error)
	Delete(ctx context.Context, id int64) (int64, error)
}

type bookingsRepository struct {
	pool *pgxpool.Pool
}

func NewBookingsRepository(pool *pgxpool.Pool) BookingsRepository {
	return &bookingsRepository{pool: pool}
}

const bookingCols = `id, customer_email, customer_name, service_id, service_title,
price, service_date, status, details, created_at, updated_at`

func scanBooking(row pgx.Row) (*domain.Booking, error) {
	var b domain.Booking
	err := row.Scan(
		&b.ID, &b.CustomerEmail, &b.CustomerName, &b.ServiceID, &b.ServiceTitle,
		&b.Price, &b.ServiceDate, &b.Status, &b.Details,
		&b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *bookingsRepository) Create(ctx context.Context, req *domain.BookingCreateReq) (int64, error) {
	const q = `INSERT INTO bookings (
		customer_email, customer_name, service_id, service_title,
		price, service_date, status, details
	) VALUES ($1,$2,$3,$4,$5,$6,'pending',$7)
	RETURNING id`

	details := req.Details
	if details == nil {
		details = map[string]any{}
	}

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var id int64
	err := r.pool.QueryRow(ctx, q,
		req.CustomerEmail, req.CustomerName, req.ServiceID, req.ServiceTitle,
		req.Price, req.ServiceDate, details,
	).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

func (r *bookingsRepository) ListByEmail(ctx context.Context, email string) ([]domain.Booking, error) {
	const q = `SELECT ` + bookingCols + ` FROM bookings WHERE customer_email=$1 ORDER BY created_at DESC`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	rows, err := r.pool.Query(ctx, q, email)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectBookings(rows)
}

func (r *bookingsRepository) ListAll(ctx context.Context) ([]domain.Booking, error) {
	const q = `SELECT ` + bookingCols + ` FROM bookings ORDER BY created_at DESC`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	rows, err := r.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return collectBookings(rows)
}

func collectBookings(rows pgx.Rows) ([]domain.Booking, error) {
	var bookings []domain.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, *b)
	}
	return bookings, rows.Err()
}

// UpdateStatus sets only the status field. A nil booking with nil error means
// no row matched the id.
func (r *bookingsRepository) UpdateStatus(ctx context.Context, id int64, status string) (*domain.Booking, error) {
	const q = `UPDATE bookings SET status=$2, updated_at=now() WHERE id=$1
		RETURNING ` + bookingCols

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	b, err := scanBooking(r.pool.QueryRow(ctx, q, id, status))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

// Delete removes a booking by id and reports how many rows went away; deleting
// a missing id is not an error.
func (r *bookingsRepository) Delete(ctx context.Context, id int64) (int64, error) {
	const q = `DELETE FROM bookings WHERE id=$1`

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	result, err := r.pool.Exec(ctx, q, id)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}
