package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/MozzammelRidoy/car-doctor-server/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ServicesRepository is the read-only view over the services catalog; the
// catalog itself is owned by an external management process.
type ServicesRepository interface {
	List(ctx context.Context, filter domain.ServiceFilter) ([]domain.Service, error)
	Get(ctx context.Context, id int64) (*domain.ServiceDetail, error)
}

type servicesRepository struct {
	pool *pgxpool.Pool
}

func NewServicesRepository(pool *pgxpool.Pool) ServicesRepository {
	return &servicesRepository{pool: pool}
}

func (r *servicesRepository) List(ctx context.Context, filter domain.ServiceFilter) ([]domain.Service, error) {
	q := `SELECT id, title, price, img, service_code FROM services
		WHERE title ILIKE '%' || $1 || '%'`
	if filter.Sort == domain.SortAsc {
		q += ` ORDER BY price ASC`
	} else {
		q += ` ORDER BY price DESC`
	}

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	rows, err := r.pool.Query(ctx, q, filter.Search)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var services []domain.Service
	for rows.Next() {
		var s domain.Service
		if err := rows.Scan(&s.ID, &s.Title, &s.Price, &s.ImageURL, &s.ServiceCode); err != nil {
			return nil, err
		}
		services = append(services, s)
	}
	return services, rows.Err()
}

func (r *servicesRepository) Get(ctx context.Context, id int64) (*domain.ServiceDetail, error) {
	const q = `SELECT title, service_code, price, img FROM services WHERE id=$1`
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	var s domain.ServiceDetail
	err := r.pool.QueryRow(ctx, q, id).Scan(&s.Title, &s.ServiceCode, &s.Price, &s.ImageURL)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &s, nil
}
