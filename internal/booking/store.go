package booking

import (
	"context"

	"github.com/google/uuid"
	"github.com/robertarktes/event-ticketing/internal/domain"
)

// UnitOfWork is the set of reads and writes a single booking transaction may
// perform. Every mutation staged through it commits or rolls back as a whole.
type UnitOfWork interface {
	// Event resolves an event inside the transaction. The returned price and
	// availability are the values the rest of the transaction acts on.
	Event(ctx context.Context, id uuid.UUID) (*domain.Event, error)
	// DebitSeats reduces available seats, failing with
	// domain.InsufficientCapacityError when qty exceeds what is left.
	DebitSeats(ctx context.Context, id uuid.UUID, qty int) error
	// CreditSeats restores seats, clamped at the event's total. Reserved for
	// the cancellation flow.
	CreditSeats(ctx context.Context, id uuid.UUID, qty int) error
	CreateBooking(ctx context.Context, b domain.Booking) error
	// StageEvent records an outbox event that becomes visible only if the
	// transaction commits.
	StageEvent(ctx context.Context, evt OutboxEvent) error
}

// Store provides atomic, isolated units of work over the booking state. A
// commit-time write collision is reported as domain.ErrSerializationFailure;
// the coordinator owns the retry policy.
type Store interface {
	WithTx(ctx context.Context, fn func(uow UnitOfWork) error) error
}

type OutboxEvent struct {
	ID            uuid.UUID
	AggregateType string
	AggregateID   uuid.UUID
	EventType     string
	Payload       []byte
	DedupeKey     string
}
