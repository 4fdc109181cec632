package crdb

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/robertarktes/event-ticketing/internal/domain"
)

// EventFilter narrows ListEvents. Zero values mean no filtering.
type EventFilter struct {
	Search   string
	Location string
	Date     *time.Time
}

func (r *Repository) CreateEvent(ctx context.Context, e domain.Event) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO events (id, title, description, location, date, total_seats, available_seats, price, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, e.ID, e.Title, e.Description, e.Location, e.Date, e.TotalSeats, e.AvailableSeats, e.Price, e.CreatedBy, e.CreatedAt)
	return err
}

func (r *Repository) GetEvent(ctx context.Context, id uuid.UUID) (*domain.Event, error) {
	return scanEvent(r.pool.QueryRow(ctx, `
		SELECT id, title, description, location, date, total_seats, available_seats, price, created_by, created_at
		FROM events WHERE id = $1
	`, id))
}

func (r *Repository) ListEvents(ctx context.Context, filter EventFilter) ([]domain.Event, error) {
	query := `
		SELECT id, title, description, location, date, total_seats, available_seats, price, created_by, created_at
		FROM events WHERE 1=1`
	args := []any{}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		query += ` AND title ILIKE $` + strconv.Itoa(len(args))
	}
	if filter.Location != "" {
		args = append(args, filter.Location)
		query += ` AND location = $` + strconv.Itoa(len(args))
	}
	if filter.Date != nil {
		args = append(args, *filter.Date)
		query += ` AND date::date = $` + strconv.Itoa(len(args)) + `::date`
	}
	query += ` ORDER BY date ASC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

func (r *Repository) ListEventsByCreator(ctx context.Context, creator uuid.UUID) ([]domain.Event, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, title, description, location, date, total_seats, available_seats, price, created_by, created_at
		FROM events WHERE created_by = $1 ORDER BY date ASC
	`, creator)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

// UpdateEvent applies an administrative edit. Seat counters are edited here
// only by admins; the booking path never goes through this statement.
func (r *Repository) UpdateEvent(ctx context.Context, e domain.Event) error {
	result, err := r.pool.Exec(ctx, `
		UPDATE events
		SET title = $2, description = $3, location = $4, date = $5,
		    total_seats = $6, available_seats = $7, price = $8
		WHERE id = $1
	`, e.ID, e.Title, e.Description, e.Location, e.Date, e.TotalSeats, e.AvailableSeats, e.Price)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *Repository) DeleteEvent(ctx context.Context, id uuid.UUID) error {
	result, err := r.pool.Exec(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
