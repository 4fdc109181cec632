package crdb

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/robertarktes/event-ticketing/internal/booking"
	"github.com/robertarktes/event-ticketing/internal/domain"
)

const (
	SerializationFailureCode = "40001"
	UniqueViolationCode      = "23505"
)

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// WithTx runs fn inside a serializable transaction. A serialization failure,
// whether raised mid-transaction or at commit, surfaces as
// domain.ErrSerializationFailure so the booking coordinator can retry.
func (r *Repository) WithTx(ctx context.Context, fn func(uow booking.UnitOfWork) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, "SET TRANSACTION ISOLATION LEVEL SERIALIZABLE")
	if err != nil {
		return err
	}

	if err := fn(&txUnit{tx: tx}); err != nil {
		return mapSerialization(err)
	}
	return mapSerialization(tx.Commit(ctx))
}

func mapSerialization(err error) error {
	if err == nil {
		return nil
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == SerializationFailureCode {
		return domain.ErrSerializationFailure
	}
	return err
}

// txUnit implements booking.UnitOfWork on a single pgx transaction.
type txUnit struct {
	tx pgx.Tx
}

func (u *txUnit) Event(ctx context.Context, id uuid.UUID) (*domain.Event, error) {
	return scanEvent(u.tx.QueryRow(ctx, `
		SELECT id, title, description, location, date, total_seats, available_seats, price, created_by, created_at
		FROM events WHERE id = $1
	`, id))
}

func (u *txUnit) DebitSeats(ctx context.Context, id uuid.UUID, qty int) error {
	if qty <= 0 {
		return errors.Wrap(domain.ErrInvalidInput, "quantity must be positive")
	}
	result, err := u.tx.Exec(ctx, `
		UPDATE events SET available_seats = available_seats - $2
		WHERE id = $1 AND available_seats >= $2
	`, id, qty)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		var available int
		err := u.tx.QueryRow(ctx, `SELECT available_seats FROM events WHERE id = $1`, id).Scan(&available)
		if err == pgx.ErrNoRows {
			return domain.ErrNotFound
		}
		if err != nil {
			return err
		}
		return &domain.InsufficientCapacityError{Requested: qty, Available: available}
	}
	return nil
}

func (u *txUnit) CreditSeats(ctx context.Context, id uuid.UUID, qty int) error {
	if qty <= 0 {
		return errors.Wrap(domain.ErrInvalidInput, "quantity must be positive")
	}
	result, err := u.tx.Exec(ctx, `
		UPDATE events SET available_seats = LEAST(available_seats + $2, total_seats)
		WHERE id = $1
	`, id, qty)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (u *txUnit) CreateBooking(ctx context.Context, b domain.Booking) error {
	_, err := u.tx.Exec(ctx, `
		INSERT INTO bookings (id, event_id, name, email, mobile, quantity, total_amount, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, b.ID, b.EventID, b.Name, b.Email, b.Mobile, b.Quantity, b.TotalAmount, b.Status, b.CreatedAt)
	return err
}

func (u *txUnit) StageEvent(ctx context.Context, evt booking.OutboxEvent) error {
	_, err := u.tx.Exec(ctx, `
		INSERT INTO outbox (id, aggregate_type, aggregate_id, event_type, payload_json, status, dedupe_key)
		VALUES ($1, $2, $3, $4, $5, 'NEW', $6)
	`, evt.ID, evt.AggregateType, evt.AggregateID, evt.EventType, evt.Payload, evt.DedupeKey)
	return err
}

// GetBooking reads a committed booking outside any transaction.
func (r *Repository) GetBooking(ctx context.Context, id uuid.UUID) (*domain.Booking, error) {
	var b domain.Booking
	err := r.pool.QueryRow(ctx, `
		SELECT id, event_id, name, email, mobile, quantity, total_amount, status, created_at
		FROM bookings WHERE id = $1
	`, id).Scan(&b.ID, &b.EventID, &b.Name, &b.Email, &b.Mobile, &b.Quantity, &b.TotalAmount, &b.Status, &b.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &b, nil
}

type row interface {
	Scan(dest ...any) error
}

func scanEvent(r row) (*domain.Event, error) {
	var e domain.Event
	err := r.Scan(&e.ID, &e.Title, &e.Description, &e.Location, &e.Date,
		&e.TotalSeats, &e.AvailableSeats, &e.Price, &e.CreatedBy, &e.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}
