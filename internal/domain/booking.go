package domain

import (
	"time"

	"github.com/google/uuid"
)

type Attendee struct {
	Name   string
	Email  string
	Mobile string
}

// NewBooking snapshots the event price at booking time. Later price edits on
// the event must not change TotalAmount of existing bookings.
func NewBooking(event *Event, quantity int, attendee Attendee) Booking {
	return Booking{
		ID:          uuid.New(),
		EventID:     event.ID,
		Name:        attendee.Name,
		Email:       attendee.Email,
		Mobile:      attendee.Mobile,
		Quantity:    quantity,
		TotalAmount: event.Price * float64(quantity),
		Status:      BookingConfirmed,
		CreatedAt:   time.Now().UTC(),
	}
}
