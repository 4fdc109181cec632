package booking_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/robertarktes/event-ticketing/internal/booking"
	"github.com/robertarktes/event-ticketing/internal/domain"
	"github.com/robertarktes/event-ticketing/internal/inventory"
	"github.com/robertarktes/event-ticketing/internal/observability"
	"golang.org/x/sync/errgroup"
)

var attendee = domain.Attendee{Name: "Jane Doe", Email: "jane@example.com", Mobile: "555-0101"}

func newFixture(t *testing.T, total, available int, price float64) (*booking.Coordinator, *inventory.Store, domain.Event) {
	t.Helper()
	ledger := inventory.NewLedger()
	event := domain.Event{
		ID:             uuid.New(),
		Title:          "Concert",
		TotalSeats:     total,
		AvailableSeats: available,
		Price:          price,
	}
	if err := ledger.Register(event); err != nil {
		t.Fatalf("register event: %v", err)
	}
	store := inventory.NewStore(ledger)
	coord := booking.NewCoordinator(store, observability.NewLogger(), 2*time.Second, 4)
	return coord, store, event
}

func TestCoordinator_BookHappyPathThenInsufficient(t *testing.T) {
	coord, store, event := newFixture(t, 10, 10, 20)
	ctx := context.Background()

	booked, err := coord.Book(ctx, booking.BookRequest{EventID: event.ID, Quantity: 4, Attendee: attendee})
	if err != nil {
		t.Fatalf("book: %v", err)
	}
	if booked.TotalAmount != 80 {
		t.Errorf("expected total 80.00, got %v", booked.TotalAmount)
	}
	if booked.Status != domain.BookingConfirmed {
		t.Errorf("expected CONFIRMED, got %s", booked.Status)
	}
	if available, _ := store.Ledger().Peek(event.ID); available != 6 {
		t.Errorf("expected 6 available, got %d", available)
	}

	_, err = coord.Book(ctx, booking.BookRequest{EventID: event.ID, Quantity: 7, Attendee: attendee})
	var icErr *domain.InsufficientCapacityError
	if !errors.As(err, &icErr) {
		t.Fatalf("expected InsufficientCapacityError, got %v", err)
	}
	if icErr.Requested != 7 || icErr.Available != 6 {
		t.Errorf("expected requested 7 available 6, got %+v", icErr)
	}
	if available, _ := store.Ledger().Peek(event.ID); available != 6 {
		t.Errorf("failed booking changed availability: %d", available)
	}
}

func TestCoordinator_InvalidInput(t *testing.T) {
	coord, store, event := newFixture(t, 10, 10, 20)
	ctx := context.Background()

	cases := []struct {
		name string
		req  booking.BookRequest
	}{
		{"zero quantity", booking.BookRequest{EventID: event.ID, Quantity: 0, Attendee: attendee}},
		{"negative quantity", booking.BookRequest{EventID: event.ID, Quantity: -1, Attendee: attendee}},
		{"empty name", booking.BookRequest{EventID: event.ID, Quantity: 1, Attendee: domain.Attendee{Email: "a@b.c", Mobile: "1"}}},
		{"empty email", booking.BookRequest{EventID: event.ID, Quantity: 1, Attendee: domain.Attendee{Name: "A", Mobile: "1"}}},
		{"blank mobile", booking.BookRequest{EventID: event.ID, Quantity: 1, Attendee: domain.Attendee{Name: "A", Email: "a@b.c", Mobile: "  "}}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := coord.Book(ctx, tc.req); !errors.Is(err, domain.ErrInvalidInput) {
				t.Errorf("expected ErrInvalidInput, got %v", err)
			}
		})
	}

	if available, _ := store.Ledger().Peek(event.ID); available != 10 {
		t.Errorf("invalid input must leave no side effects, available %d", available)
	}
}

func TestCoordinator_EventNotFound(t *testing.T) {
	coord, _, _ := newFixture(t, 10, 10, 20)

	_, err := coord.Book(context.Background(), booking.BookRequest{EventID: uuid.New(), Quantity: 1, Attendee: attendee})
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestCoordinator_PriceSnapshot(t *testing.T) {
	coord, store, event := newFixture(t, 10, 10, 50)
	ctx := context.Background()

	booked, err := coord.Book(ctx, booking.BookRequest{EventID: event.ID, Quantity: 3, Attendee: attendee})
	if err != nil {
		t.Fatal(err)
	}
	if booked.TotalAmount != 150 {
		t.Fatalf("expected total 150.00, got %v", booked.TotalAmount)
	}

	// A later price edit must not rewrite committed bookings.
	if err := store.Ledger().SetPrice(event.ID, 60); err != nil {
		t.Fatal(err)
	}
	refetched, err := store.GetBooking(booked.ID)
	if err != nil {
		t.Fatal(err)
	}
	if refetched.TotalAmount != 150 {
		t.Errorf("price change leaked into existing booking: %v", refetched.TotalAmount)
	}
}

func TestCoordinator_NoOversellUnderConcurrency(t *testing.T) {
	const capacity = 25
	const callers = 100

	coord, store, event := newFixture(t, capacity, capacity, 20)

	var g errgroup.Group
	results := make([]error, callers)
	for i := 0; i < callers; i++ {
		i := i
		g.Go(func() error {
			_, err := coord.Book(context.Background(), booking.BookRequest{
				EventID:  event.ID,
				Quantity: 1,
				Attendee: attendee,
			})
			results[i] = err
			return nil
		})
	}
	g.Wait()

	succeeded := 0
	for _, err := range results {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, domain.ErrInsufficientCapacity):
		case errors.Is(err, domain.ErrConflict):
		default:
			t.Fatalf("unexpected booking error: %v", err)
		}
	}
	if succeeded > capacity {
		t.Fatalf("oversold: %d bookings for %d seats", succeeded, capacity)
	}

	// Conservation: whatever committed is exactly what was debited.
	available, _ := store.Ledger().Peek(event.ID)
	if available != capacity-succeeded {
		t.Errorf("expected %d available after %d bookings, got %d", capacity-succeeded, succeeded, available)
	}
}

func TestCoordinator_SelloutExactly(t *testing.T) {
	// With generous retries every caller either books or sees the sellout, so
	// successes are exactly the capacity.
	const capacity = 10
	const callers = 30

	ledger := inventory.NewLedger()
	event := domain.Event{ID: uuid.New(), TotalSeats: capacity, AvailableSeats: capacity, Price: 5}
	if err := ledger.Register(event); err != nil {
		t.Fatal(err)
	}
	store := inventory.NewStore(ledger)
	coord := booking.NewCoordinator(store, observability.NewLogger(), 10*time.Second, 100)

	var g errgroup.Group
	results := make([]error, callers)
	for i := 0; i < callers; i++ {
		i := i
		g.Go(func() error {
			_, err := coord.Book(context.Background(), booking.BookRequest{
				EventID:  event.ID,
				Quantity: 1,
				Attendee: attendee,
			})
			results[i] = err
			return nil
		})
	}
	g.Wait()

	succeeded, insufficient := 0, 0
	for _, err := range results {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, domain.ErrInsufficientCapacity):
			insufficient++
		case errors.Is(err, domain.ErrConflict):
		default:
			t.Fatalf("unexpected booking error: %v", err)
		}
	}
	if succeeded != capacity {
		t.Errorf("expected exactly %d successes, got %d (insufficient %d)", capacity, succeeded, insufficient)
	}
	if available, _ := ledger.Peek(event.ID); available != 0 {
		t.Errorf("expected sellout, %d seats left", available)
	}
}

func TestCoordinator_Timeout(t *testing.T) {
	coord, store, event := newFixture(t, 10, 10, 20)

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	_, err := coord.Book(ctx, booking.BookRequest{EventID: event.ID, Quantity: 1, Attendee: attendee})
	if !errors.Is(err, domain.ErrTimeout) {
		t.Fatalf("expected ErrTimeout, got %v", err)
	}
	if available, _ := store.Ledger().Peek(event.ID); available != 10 {
		t.Errorf("timed-out booking left a partial debit: available %d", available)
	}
}

func TestCoordinator_OutboxStagedWithBooking(t *testing.T) {
	coord, store, event := newFixture(t, 10, 10, 20)

	booked, err := coord.Book(context.Background(), booking.BookRequest{EventID: event.ID, Quantity: 2, Attendee: attendee})
	if err != nil {
		t.Fatal(err)
	}

	outbox := store.Outbox()
	if len(outbox) != 1 {
		t.Fatalf("expected 1 outbox event, got %d", len(outbox))
	}
	evt := outbox[0]
	if evt.EventType != "booking.confirmed" {
		t.Errorf("expected booking.confirmed, got %s", evt.EventType)
	}
	if evt.AggregateID != booked.ID {
		t.Errorf("outbox aggregate %s does not match booking %s", evt.AggregateID, booked.ID)
	}
}
