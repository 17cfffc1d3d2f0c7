package booking

import (
	"context"

	"github.com/autovoyage/service-rental/internal/platform/apperror"
	"github.com/google/uuid"
)

// ActiveBookingFinder looks up the active booking for a car and renter.
type ActiveBookingFinder interface {
	FindActive(ctx context.Context, carID uuid.UUID, renterEmail string) (*Booking, error)
}

// ConflictGuard enforces at most one active booking per car and renter.
// The store's partial unique index remains the final arbiter.
type ConflictGuard struct {
	finder ActiveBookingFinder
}

// NewConflictGuard creates a ConflictGuard over finder.
func NewConflictGuard(finder ActiveBookingFinder) *ConflictGuard {
	return &ConflictGuard{finder: finder}
}

// ActiveBooking returns the active booking for the pair, or nil.
func (g *ConflictGuard) ActiveBooking(ctx context.Context, carID uuid.UUID, renterEmail string) (*Booking, error) {
	return g.finder.FindActive(ctx, carID, renterEmail)
}

// HasActiveBooking reports whether the renter already holds the car.
func (g *ConflictGuard) HasActiveBooking(ctx context.Context, carID uuid.UUID, renterEmail string) (bool, error) {
	bk, err := g.finder.FindActive(ctx, carID, renterEmail)
	if err != nil {
		return false, err
	}
	return bk != nil, nil
}

// Check returns a conflict error if the renter already holds the car.
func (g *ConflictGuard) Check(ctx context.Context, carID uuid.UUID, renterEmail string) error {
	active, err := g.HasActiveBooking(ctx, carID, renterEmail)
	if err != nil {
		return err
	}
	if active {
		return ErrActiveBookingExists
	}
	return nil
}

// ErrActiveBookingExists is the conflict reported for a duplicate active booking.
var ErrActiveBookingExists = apperror.NewConflictError("You already have an active booking for this car")
