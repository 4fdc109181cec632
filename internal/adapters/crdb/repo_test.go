package crdb_test

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/robertarktes/event-ticketing/internal/adapters/crdb"
	"github.com/robertarktes/event-ticketing/internal/booking"
	"github.com/robertarktes/event-ticketing/internal/domain"
	"github.com/robertarktes/event-ticketing/internal/observability"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"golang.org/x/sync/errgroup"
)

func startCockroach(t *testing.T) *pgxpool.Pool {
	t.Helper()
	ctx := context.Background()

	crdbContainer, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "cockroachdb/cockroach:v24.1.1",
			Cmd:          []string{"start-single-node", "--insecure"},
			ExposedPorts: []string{"26257/tcp"},
			WaitingFor:   wait.ForHTTP("/health?ready=1").WithPort("8080"),
		},
		Started: true,
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { crdbContainer.Terminate(ctx) })

	dsn, err := crdbContainer.Endpoint(ctx, "postgresql")
	if err != nil {
		t.Fatal(err)
	}

	pool, err := pgxpool.New(ctx, dsn+"/tix?sslmode=disable")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(pool.Close)

	_, err = pool.Exec(ctx, `
		CREATE DATABASE IF NOT EXISTS tix;
		CREATE TABLE IF NOT EXISTS tix.events (
			id UUID PRIMARY KEY,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			location TEXT NOT NULL DEFAULT '',
			date TIMESTAMPTZ NOT NULL,
			total_seats INT NOT NULL CHECK (total_seats >= 0),
			available_seats INT NOT NULL CHECK (available_seats >= 0 AND available_seats <= total_seats),
			price NUMERIC NOT NULL,
			created_by UUID,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now()
		);
		CREATE TABLE IF NOT EXISTS tix.bookings (
			id UUID PRIMARY KEY,
			event_id UUID NOT NULL,
			name TEXT NOT NULL,
			email TEXT NOT NULL,
			mobile TEXT NOT NULL,
			quantity INT NOT NULL,
			total_amount NUMERIC NOT NULL,
			status TEXT NOT NULL CHECK (status IN ('CONFIRMED', 'CANCELLED')),
			created_at TIMESTAMPTZ NOT NULL
		);
		CREATE TABLE IF NOT EXISTS tix.users (
			id UUID PRIMARY KEY,
			name TEXT NOT NULL,
			email TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			role TEXT NOT NULL CHECK (role IN ('admin', 'user')),
			created_at TIMESTAMPTZ NOT NULL
		);
		CREATE TABLE IF NOT EXISTS tix.outbox (
			id UUID PRIMARY KEY,
			aggregate_type TEXT NOT NULL,
			aggregate_id UUID NOT NULL,
			event_type TEXT NOT NULL,
			payload_json JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
			published_at TIMESTAMPTZ,
			status TEXT NOT NULL CHECK (status IN ('NEW', 'PUBLISHED', 'FAILED')),
			dedupe_key TEXT NOT NULL
		);
	`)
	if err != nil {
		t.Fatal(err)
	}
	return pool
}

func seedEvent(t *testing.T, pool *pgxpool.Pool, total, available int, price float64) uuid.UUID {
	t.Helper()
	id := uuid.New()
	_, err := pool.Exec(context.Background(), `
		INSERT INTO events (id, title, date, total_seats, available_seats, price, created_by)
		VALUES ($1, 'Concert', now() + INTERVAL '1 day', $2, $3, $4, $5)
	`, id, total, available, price, uuid.New())
	if err != nil {
		t.Fatal(err)
	}
	return id
}

func availableSeats(t *testing.T, pool *pgxpool.Pool, id uuid.UUID) int {
	t.Helper()
	var available int
	err := pool.QueryRow(context.Background(), `SELECT available_seats FROM events WHERE id = $1`, id).Scan(&available)
	if err != nil {
		t.Fatal(err)
	}
	return available
}

func TestRepository_BookingFlow(t *testing.T) {
	ctx := context.Background()
	pool := startCockroach(t)
	repo := crdb.NewRepository(pool)

	eventID := seedEvent(t, pool, 10, 10, 20)

	var booked domain.Booking
	err := repo.WithTx(ctx, func(uow booking.UnitOfWork) error {
		event, err := uow.Event(ctx, eventID)
		if err != nil {
			return err
		}
		if err := uow.DebitSeats(ctx, eventID, 4); err != nil {
			return err
		}
		booked = domain.NewBooking(event, 4, domain.Attendee{Name: "Jane", Email: "jane@example.com", Mobile: "555-0101"})
		if err := uow.CreateBooking(ctx, booked); err != nil {
			return err
		}
		payload, _ := json.Marshal(map[string]interface{}{"booking_id": booked.ID})
		return uow.StageEvent(ctx, booking.OutboxEvent{
			ID:            uuid.New(),
			AggregateType: "booking",
			AggregateID:   booked.ID,
			EventType:     "booking.confirmed",
			Payload:       payload,
			DedupeKey:     booked.ID.String(),
		})
	})
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	if got := availableSeats(t, pool, eventID); got != 6 {
		t.Errorf("expected 6 seats left, got %d", got)
	}
	if booked.TotalAmount != 80 {
		t.Errorf("expected total 80.00, got %v", booked.TotalAmount)
	}

	fetched, err := repo.GetBooking(ctx, booked.ID)
	if err != nil {
		t.Fatal(err)
	}
	if fetched.Status != domain.BookingConfirmed || fetched.Quantity != 4 {
		t.Errorf("unexpected booking row: %+v", fetched)
	}

	records, err := repo.GetUnpublishedOutbox(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || records[0].DedupeKey != booked.ID.String() {
		t.Fatalf("expected one staged outbox record, got %v", records)
	}
	if err := repo.MarkPublished(ctx, records[0].ID, time.Now()); err != nil {
		t.Fatal(err)
	}
	records, err = repo.GetUnpublishedOutbox(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 0 {
		t.Errorf("published record should no longer drain, got %v", records)
	}
}

func TestRepository_InsufficientCapacityRollsBack(t *testing.T) {
	ctx := context.Background()
	pool := startCockroach(t)
	repo := crdb.NewRepository(pool)

	eventID := seedEvent(t, pool, 10, 6, 20)

	err := repo.WithTx(ctx, func(uow booking.UnitOfWork) error {
		return uow.DebitSeats(ctx, eventID, 7)
	})
	var icErr *domain.InsufficientCapacityError
	if !errors.As(err, &icErr) {
		t.Fatalf("expected insufficient capacity, got %v", err)
	}
	if icErr.Requested != 7 || icErr.Available != 6 {
		t.Errorf("expected requested 7 available 6, got %+v", icErr)
	}
	if got := availableSeats(t, pool, eventID); got != 6 {
		t.Errorf("failed debit must not change availability: %d", got)
	}
}

func TestRepository_DebitUnknownEvent(t *testing.T) {
	ctx := context.Background()
	pool := startCockroach(t)
	repo := crdb.NewRepository(pool)

	err := repo.WithTx(ctx, func(uow booking.UnitOfWork) error {
		return uow.DebitSeats(ctx, uuid.New(), 1)
	})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}
}

func TestRepository_CreditSeatsClampsAtTotal(t *testing.T) {
	ctx := context.Background()
	pool := startCockroach(t)
	repo := crdb.NewRepository(pool)

	eventID := seedEvent(t, pool, 10, 8, 20)

	err := repo.WithTx(ctx, func(uow booking.UnitOfWork) error {
		return uow.CreditSeats(ctx, eventID, 5)
	})
	if err != nil {
		t.Fatal(err)
	}
	if got := availableSeats(t, pool, eventID); got != 10 {
		t.Errorf("credit must clamp at total_seats, got %d", got)
	}
}

func TestRepository_DuplicateEmailConflict(t *testing.T) {
	ctx := context.Background()
	pool := startCockroach(t)
	repo := crdb.NewRepository(pool)

	user := domain.User{
		ID:           uuid.New(),
		Name:         "Jane",
		Email:        "jane@example.com",
		PasswordHash: "x",
		Role:         domain.RoleUser,
		CreatedAt:    time.Now().UTC(),
	}
	if err := repo.CreateUser(ctx, user); err != nil {
		t.Fatal(err)
	}

	dup := user
	dup.ID = uuid.New()
	err := repo.CreateUser(ctx, dup)
	if !errors.Is(err, domain.ErrConflict) {
		t.Errorf("expected conflict on duplicate email, got %v", err)
	}
}

func TestRepository_ConcurrentBookingsNeverOversell(t *testing.T) {
	ctx := context.Background()
	pool := startCockroach(t)
	repo := crdb.NewRepository(pool)

	const capacity = 5
	const callers = 20
	eventID := seedEvent(t, pool, capacity, capacity, 10)

	coord := booking.NewCoordinator(repo, observability.NewLogger(), 30*time.Second, 20)

	var g errgroup.Group
	results := make([]error, callers)
	for i := 0; i < callers; i++ {
		i := i
		g.Go(func() error {
			_, err := coord.Book(ctx, booking.BookRequest{
				EventID:  eventID,
				Quantity: 1,
				Attendee: domain.Attendee{Name: "Jane", Email: "jane@example.com", Mobile: "555-0101"},
			})
			results[i] = err
			return nil
		})
	}
	g.Wait()

	succeeded := 0
	for _, err := range results {
		if err == nil {
			succeeded++
			continue
		}
		var icErr *domain.InsufficientCapacityError
		if !errors.As(err, &icErr) && !errors.Is(err, domain.ErrConflict) {
			t.Errorf("unexpected failure kind: %v", err)
		}
	}
	if succeeded > capacity {
		t.Fatalf("oversold: %d bookings for %d seats", succeeded, capacity)
	}

	if got := availableSeats(t, pool, eventID); got != capacity-succeeded {
		t.Errorf("seat conservation violated: %d succeeded but %d seats left", succeeded, got)
	}
}
