package car

import (
	"context"

	"github.com/google/uuid"
)

// SortField is a whitelisted listing sort key.
type SortField string

const (
	SortDatePosted       SortField = "datePosted"
	SortDailyRentalPrice SortField = "dailyRentalPrice"
	SortModel            SortField = "model"
	SortBookingCount     SortField = "bookingCount"
)

// ParseSortField returns the matching field, or SortDatePosted for anything unknown.
func ParseSortField(s string) SortField {
	switch f := SortField(s); f {
	case SortDatePosted, SortDailyRentalPrice, SortModel, SortBookingCount:
		return f
	default:
		return SortDatePosted
	}
}

// SearchQuery filters and orders the public listing.
type SearchQuery struct {
	// Text matches model, location, features, description and owner name, case-insensitively.
	Text       string
	Sort       SortField
	Descending bool
}

// CarRepository defines persistence operations for listings.
type CarRepository interface {
	FindByID(ctx context.Context, id uuid.UUID) (*Car, error)
	// FindByIDs returns the cars that still exist; missing ids are simply absent from the map.
	FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*Car, error)
	FindByOwnerEmail(ctx context.Context, email string) ([]*Car, error)
	Search(ctx context.Context, q SearchQuery) ([]*Car, error)
	Save(ctx context.Context, car *Car) error
	// Update persists owner-mutable fields with optimistic locking. It never writes the booking counter.
	Update(ctx context.Context, car *Car) error
	Delete(ctx context.Context, id uuid.UUID) error
}
