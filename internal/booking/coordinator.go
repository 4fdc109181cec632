// Package booking implements the booking transaction coordinator: one booking
// request is executed as a single atomic unit of work against the seat
// inventory, with bounded retries on concurrent write conflicts.
package booking

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/robertarktes/event-ticketing/internal/domain"
	"github.com/robertarktes/event-ticketing/internal/observability"
)

const retryBackoffBase = 5 * time.Millisecond

type BookRequest struct {
	EventID  uuid.UUID
	Quantity int
	Attendee domain.Attendee
}

type Coordinator struct {
	store      Store
	logger     observability.Logger
	timeout    time.Duration
	maxRetries int
}

func NewCoordinator(store Store, logger observability.Logger, timeout time.Duration, maxRetries int) *Coordinator {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	if maxRetries <= 0 {
		maxRetries = 4
	}
	return &Coordinator{store: store, logger: logger, timeout: timeout, maxRetries: maxRetries}
}

// Book reserves req.Quantity seats on the event and records the booking.
// Both effects commit together or not at all. A concurrent writer winning the
// race triggers a retry from a fresh read; after maxRetries the caller gets
// domain.ErrConflict.
func (c *Coordinator) Book(ctx context.Context, req BookRequest) (*domain.Booking, error) {
	if err := validate(req); err != nil {
		observability.BookingsTotal.WithLabelValues("invalid_input").Inc()
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	defer func() {
		observability.BookingTxDuration.Observe(time.Since(start).Seconds())
	}()

	for attempt := 0; ; attempt++ {
		b, err := c.attempt(ctx, req)
		if err == nil {
			observability.BookingsTotal.WithLabelValues("confirmed").Inc()
			return b, nil
		}

		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			observability.BookingsTotal.WithLabelValues("timeout").Inc()
			return nil, errors.Mark(err, domain.ErrTimeout)
		}

		if errors.Is(err, domain.ErrSerializationFailure) || errors.Is(err, domain.ErrConflict) {
			if attempt >= c.maxRetries {
				observability.BookingsTotal.WithLabelValues("conflict").Inc()
				return nil, domain.ErrConflict
			}
			observability.BookingRetries.Inc()
			c.logger.WithField("event_id", req.EventID).WithField("attempt", attempt+1).
				Debug("booking conflict, retrying")
			if err := sleep(ctx, retryBackoffBase<<attempt); err != nil {
				observability.BookingsTotal.WithLabelValues("timeout").Inc()
				return nil, errors.Mark(err, domain.ErrTimeout)
			}
			continue
		}

		observability.BookingsTotal.WithLabelValues(outcomeLabel(err)).Inc()
		return nil, err
	}
}

// attempt runs one full unit of work: resolve event, debit seats, record the
// booking with the price snapshotted from the same read, stage the outbox
// event. Any error rolls everything back.
func (c *Coordinator) attempt(ctx context.Context, req BookRequest) (*domain.Booking, error) {
	var booked domain.Booking
	err := c.store.WithTx(ctx, func(uow UnitOfWork) error {
		event, err := uow.Event(ctx, req.EventID)
		if err != nil {
			return err
		}
		if err := uow.DebitSeats(ctx, event.ID, req.Quantity); err != nil {
			return err
		}
		booked = domain.NewBooking(event, req.Quantity, req.Attendee)
		if err := uow.CreateBooking(ctx, booked); err != nil {
			return err
		}
		payload, err := json.Marshal(map[string]interface{}{
			"booking_id":   booked.ID,
			"event_id":     booked.EventID,
			"quantity":     booked.Quantity,
			"total_amount": booked.TotalAmount,
		})
		if err != nil {
			return err
		}
		return uow.StageEvent(ctx, OutboxEvent{
			ID:            uuid.New(),
			AggregateType: "booking",
			AggregateID:   booked.ID,
			EventType:     "booking.confirmed",
			Payload:       payload,
			DedupeKey:     booked.ID.String(),
		})
	})
	if err != nil {
		return nil, err
	}
	return &booked, nil
}

func validate(req BookRequest) error {
	if req.Quantity < 1 {
		return errors.Wrap(domain.ErrInvalidInput, "quantity must be a positive integer")
	}
	if strings.TrimSpace(req.Attendee.Name) == "" ||
		strings.TrimSpace(req.Attendee.Email) == "" ||
		strings.TrimSpace(req.Attendee.Mobile) == "" {
		return errors.Wrap(domain.ErrInvalidInput, "attendee name, email and mobile are required")
	}
	return nil
}

func outcomeLabel(err error) string {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrInsufficientCapacity):
		return "insufficient_capacity"
	default:
		return "error"
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
