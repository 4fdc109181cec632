package domain

import (
	"time"

	"github.com/google/uuid"
)

type Event struct {
	ID             uuid.UUID
	Title          string
	Description    string
	Location       string
	Date           time.Time
	TotalSeats     int
	AvailableSeats int
	Price          float64
	CreatedBy      uuid.UUID
	CreatedAt      time.Time
}

const (
	BookingConfirmed = "CONFIRMED"
	// BookingCancelled is reserved for a future cancellation flow. No operation
	// transitions a booking into it yet; the capacity credit path exists but is
	// never driven.
	BookingCancelled = "CANCELLED"
)

type Booking struct {
	ID          uuid.UUID
	EventID     uuid.UUID
	Name        string
	Email       string
	Mobile      string
	Quantity    int
	TotalAmount float64
	Status      string
	CreatedAt   time.Time
}

const (
	RoleAdmin = "admin"
	RoleUser  = "user"
)

type User struct {
	ID           uuid.UUID
	Name         string
	Email        string
	PasswordHash string
	Role         string
	CreatedAt    time.Time
}
