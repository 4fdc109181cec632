package domain

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

var (
	// ErrSerializationFailure signals a concurrent-write collision inside a
	// unit of work. It never leaves the booking coordinator, which retries
	// before surfacing ErrConflict.
	ErrSerializationFailure = errors.New("serialization failure")
	ErrNotFound             = errors.New("not found")
	ErrConflict             = errors.New("conflict")
	ErrInvalidInput         = errors.New("invalid input")
	ErrTimeout              = errors.New("timeout")
	ErrInsufficientCapacity = errors.New("insufficient capacity")
)

// InsufficientCapacityError carries the requested and actually available seat
// counts so the API layer can tell the caller how many seats are left.
type InsufficientCapacityError struct {
	Requested int
	Available int
}

func (e *InsufficientCapacityError) Error() string {
	return fmt.Sprintf("insufficient capacity: requested %d, available %d", e.Requested, e.Available)
}

func (e *InsufficientCapacityError) Is(target error) bool {
	return target == ErrInsufficientCapacity
}
