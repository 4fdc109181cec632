package inventory

import (
	"context"
	"sort"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/event-ticketing/internal/booking"
	"github.com/robertarktes/event-ticketing/internal/domain"
)

// Store is an in-memory implementation of booking.Store over the ledger. A
// transaction buffers its writes and commits only if no event it read changed
// version in the meantime; otherwise the commit fails with
// domain.ErrSerializationFailure and the coordinator retries from a fresh
// read. This mirrors the optimistic discipline the relational store gets from
// serializable isolation.
type Store struct {
	ledger *Ledger

	mu       sync.Mutex
	bookings map[uuid.UUID]domain.Booking
	outbox   []booking.OutboxEvent

	// commitHook runs between the transaction body and the commit check.
	// Tests use it to interleave a concurrent writer deterministically.
	commitHook func()
}

func NewStore(ledger *Ledger) *Store {
	return &Store{
		ledger:   ledger,
		bookings: make(map[uuid.UUID]domain.Booking),
	}
}

func (s *Store) Ledger() *Ledger { return s.ledger }

func (s *Store) WithTx(ctx context.Context, fn func(uow booking.UnitOfWork) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &memTx{
		ledger:  s.ledger,
		reads:   make(map[uuid.UUID]uint64),
		cache:   make(map[uuid.UUID]domain.Event),
		debits:  make(map[uuid.UUID]int),
		credits: make(map[uuid.UUID]int),
	}
	if err := fn(tx); err != nil {
		return err
	}

	if s.commitHook != nil {
		s.commitHook()
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.commit(tx)
}

func (s *Store) commit(tx *memTx) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, b := range tx.bookings {
		if _, ok := s.bookings[b.ID]; ok {
			return domain.ErrConflict
		}
	}
	if err := s.ledger.applyTx(tx.reads, tx.debits, tx.credits); err != nil {
		return err
	}
	for _, b := range tx.bookings {
		s.bookings[b.ID] = b
	}
	s.outbox = append(s.outbox, tx.staged...)
	return nil
}

// GetBooking re-reads a committed booking.
func (s *Store) GetBooking(id uuid.UUID) (*domain.Booking, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.bookings[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &b, nil
}

// Outbox returns a copy of the committed outbox, oldest first.
func (s *Store) Outbox() []booking.OutboxEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]booking.OutboxEvent, len(s.outbox))
	copy(out, s.outbox)
	return out
}

// applyTx validates the recorded read versions and applies buffered debits
// and credits in one critical section over the touched records.
func (l *Ledger) applyTx(reads map[uuid.UUID]uint64, debits, credits map[uuid.UUID]int) error {
	ids := make([]uuid.UUID, 0, len(reads)+len(debits)+len(credits))
	seen := make(map[uuid.UUID]bool)
	for _, m := range []map[uuid.UUID]uint64{reads} {
		for id := range m {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	for _, m := range []map[uuid.UUID]int{debits, credits} {
		for id := range m {
			if !seen[id] {
				seen[id] = true
				ids = append(ids, id)
			}
		}
	}
	// Lock records in a stable order to avoid deadlock between commits.
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })

	recs := make([]*record, 0, len(ids))
	for _, id := range ids {
		rec, err := l.lookup(id)
		if err != nil {
			return err
		}
		rec.mu.Lock()
		recs = append(recs, rec)
	}
	defer func() {
		for _, rec := range recs {
			rec.mu.Unlock()
		}
	}()

	for i, id := range ids {
		if v, ok := reads[id]; ok && recs[i].version != v {
			return domain.ErrSerializationFailure
		}
	}
	for i, id := range ids {
		if qty, ok := debits[id]; ok && qty > recs[i].event.AvailableSeats {
			return &domain.InsufficientCapacityError{Requested: qty, Available: recs[i].event.AvailableSeats}
		}
	}
	for i, id := range ids {
		rec := recs[i]
		changed := false
		if qty, ok := debits[id]; ok {
			rec.event.AvailableSeats -= qty
			changed = true
		}
		if qty, ok := credits[id]; ok {
			rec.event.AvailableSeats += qty
			if rec.event.AvailableSeats > rec.event.TotalSeats {
				rec.event.AvailableSeats = rec.event.TotalSeats
			}
			changed = true
		}
		if changed {
			rec.version++
		}
	}
	return nil
}

type memTx struct {
	ledger   *Ledger
	reads    map[uuid.UUID]uint64
	cache    map[uuid.UUID]domain.Event
	debits   map[uuid.UUID]int
	credits  map[uuid.UUID]int
	bookings []domain.Booking
	staged   []booking.OutboxEvent
}

func (t *memTx) Event(ctx context.Context, id uuid.UUID) (*domain.Event, error) {
	ev, err := t.read(id)
	if err != nil {
		return nil, err
	}
	out := ev
	return &out, nil
}

func (t *memTx) DebitSeats(ctx context.Context, id uuid.UUID, qty int) error {
	if qty <= 0 {
		return errors.Wrap(domain.ErrInvalidInput, "quantity must be positive")
	}
	ev, err := t.read(id)
	if err != nil {
		return err
	}
	available := ev.AvailableSeats - t.debits[id] + t.credits[id]
	if qty > available {
		return &domain.InsufficientCapacityError{Requested: qty, Available: available}
	}
	t.debits[id] += qty
	return nil
}

func (t *memTx) CreditSeats(ctx context.Context, id uuid.UUID, qty int) error {
	if qty <= 0 {
		return errors.Wrap(domain.ErrInvalidInput, "quantity must be positive")
	}
	if _, err := t.read(id); err != nil {
		return err
	}
	t.credits[id] += qty
	return nil
}

func (t *memTx) CreateBooking(ctx context.Context, b domain.Booking) error {
	t.bookings = append(t.bookings, b)
	return nil
}

func (t *memTx) StageEvent(ctx context.Context, evt booking.OutboxEvent) error {
	t.staged = append(t.staged, evt)
	return nil
}

// read returns the transaction's snapshot of the event, taking it (and the
// version it was read at) on first access.
func (t *memTx) read(id uuid.UUID) (domain.Event, error) {
	if ev, ok := t.cache[id]; ok {
		return ev, nil
	}
	ev, version, err := t.ledger.snapshot(id)
	if err != nil {
		return domain.Event{}, err
	}
	t.cache[id] = ev
	t.reads[id] = version
	return ev, nil
}
