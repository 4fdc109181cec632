// Package inventory owns the authoritative seat counts per event. The ledger
// is the only mutation path for availability; callers address state by event
// id and never hold a reference into it.
package inventory

import (
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/event-ticketing/internal/domain"
)

type record struct {
	mu      sync.Mutex
	event   domain.Event
	version uint64
}

type Ledger struct {
	mu     sync.RWMutex
	events map[uuid.UUID]*record
}

func NewLedger() *Ledger {
	return &Ledger{events: make(map[uuid.UUID]*record)}
}

// Register seeds an event into the ledger. Availability must already satisfy
// 0 <= available <= total; a zero AvailableSeats on a fresh event means sold
// out, so creation paths default it to TotalSeats before registering.
func (l *Ledger) Register(event domain.Event) error {
	if event.TotalSeats < 0 || event.AvailableSeats < 0 || event.AvailableSeats > event.TotalSeats {
		return errors.Wrap(domain.ErrInvalidInput, "availability out of bounds")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.events[event.ID]; ok {
		return domain.ErrConflict
	}
	l.events[event.ID] = &record{event: event}
	return nil
}

// Peek returns the current available seat count.
func (l *Ledger) Peek(id uuid.UUID) (int, error) {
	rec, err := l.lookup(id)
	if err != nil {
		return 0, err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.event.AvailableSeats, nil
}

// Debit reduces availability by qty. The check and the write happen under the
// event's lock, so concurrent debits on one event are strictly ordered while
// different events proceed independently.
func (l *Ledger) Debit(id uuid.UUID, qty int) error {
	if qty <= 0 {
		return errors.Wrap(domain.ErrInvalidInput, "quantity must be positive")
	}
	rec, err := l.lookup(id)
	if err != nil {
		return err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if qty > rec.event.AvailableSeats {
		return &domain.InsufficientCapacityError{Requested: qty, Available: rec.event.AvailableSeats}
	}
	rec.event.AvailableSeats -= qty
	rec.version++
	return nil
}

// Credit restores availability, clamped at the event's total. Used only by
// the future cancellation path.
func (l *Ledger) Credit(id uuid.UUID, qty int) error {
	if qty <= 0 {
		return errors.Wrap(domain.ErrInvalidInput, "quantity must be positive")
	}
	rec, err := l.lookup(id)
	if err != nil {
		return err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.event.AvailableSeats += qty
	if rec.event.AvailableSeats > rec.event.TotalSeats {
		rec.event.AvailableSeats = rec.event.TotalSeats
	}
	rec.version++
	return nil
}

// SetPrice applies an administrative price edit. Existing bookings keep their
// snapshotted totals.
func (l *Ledger) SetPrice(id uuid.UUID, price float64) error {
	rec, err := l.lookup(id)
	if err != nil {
		return err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	rec.event.Price = price
	rec.version++
	return nil
}

func (l *Ledger) lookup(id uuid.UUID) (*record, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	rec, ok := l.events[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return rec, nil
}

// snapshot returns a copy of the event and the version it was read at.
func (l *Ledger) snapshot(id uuid.UUID) (domain.Event, uint64, error) {
	rec, err := l.lookup(id)
	if err != nil {
		return domain.Event{}, 0, err
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	return rec.event, rec.version, nil
}
