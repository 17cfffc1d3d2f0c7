package booking

import (
	"context"

	"github.com/google/uuid"
)

// SortField is a whitelisted booking list sort key.
type SortField string

const (
	SortBookingDate SortField = "bookingDate"
	SortStartDate   SortField = "startDate"
	SortEndDate     SortField = "endDate"
	SortTotalCost   SortField = "totalCost"
	SortTotalDays   SortField = "totalDays"
	SortStatus      SortField = "status"
	SortCarModel    SortField = "carModel"
)

// ParseSortField returns the matching field, or SortBookingDate for anything unknown.
func ParseSortField(s string) SortField {
	switch f := SortField(s); f {
	case SortBookingDate, SortStartDate, SortEndDate, SortTotalCost, SortTotalDays, SortStatus, SortCarModel:
		return f
	default:
		return SortBookingDate
	}
}

// ListQuery orders a booking list.
type ListQuery struct {
	Sort       SortField
	Descending bool
}

// BookingRepository defines the persistence contract for booking aggregates.
type BookingRepository interface {
	// FindByID retrieves a booking by its unique identifier.
	FindByID(ctx context.Context, id uuid.UUID) (*Booking, error)

	// FindByRenter retrieves all bookings made by a renter.
	FindByRenter(ctx context.Context, renterEmail string, q ListQuery) ([]*Booking, error)

	// FindByCarOwner retrieves all bookings on cars listed by an owner.
	FindByCarOwner(ctx context.Context, ownerEmail string, q ListQuery) ([]*Booking, error)

	// FindActive returns the pending or confirmed booking for the pair, or nil if there is none.
	FindActive(ctx context.Context, carID uuid.UUID, renterEmail string) (*Booking, error)

	// CountByStatusForOwner returns counts grouped by status for bookings on an owner's cars.
	CountByStatusForOwner(ctx context.Context, ownerEmail string) (map[string]int64, error)

	// Create inserts a booking and increments the car's booking counter in one
	// transaction. A second active booking for the same car and renter fails with a conflict.
	Create(ctx context.Context, booking *Booking) error

	// Update persists changes to an existing booking with optimistic locking.
	Update(ctx context.Context, booking *Booking) error

	// Delete removes a booking and decrements the car's booking counter, floored at zero,
	// in one transaction.
	Delete(ctx context.Context, booking *Booking) error
}
