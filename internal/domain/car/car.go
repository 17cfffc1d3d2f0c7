package car

import (
	"math"
	"strings"
	"time"

	"github.com/autovoyage/service-rental/internal/platform/apperror"
	"github.com/google/uuid"
)

// Bounds of the daily_rental_price NUMERIC(12,2) column.
const (
	MinDailyRentalPrice = 0.01
	MaxDailyRentalPrice = 9_999_999_999.99
)

// Details are the owner-supplied fields of a listing.
type Details struct {
	Model                     string
	DailyRentalPrice          float64
	Availability              bool
	VehicleRegistrationNumber string
	Features                  string
	Description               string
	ImageURL                  string
	Location                  string
}

// Patch is a partial update. Nil fields are left unchanged.
type Patch struct {
	Model                     *string
	DailyRentalPrice          *float64
	Availability              *bool
	VehicleRegistrationNumber *string
	Features                  *string
	Description               *string
	ImageURL                  *string
	Location                  *string
}

// IsEmpty reports whether the patch changes nothing.
func (p Patch) IsEmpty() bool {
	return p.Model == nil && p.DailyRentalPrice == nil && p.Availability == nil &&
		p.VehicleRegistrationNumber == nil && p.Features == nil && p.Description == nil &&
		p.ImageURL == nil && p.Location == nil
}

// Car is the aggregate root for a rental listing.
type Car struct {
	id           uuid.UUID
	details      Details
	ownerEmail   string
	ownerName    string
	bookingCount int
	version      int64
	datePosted   time.Time
	updatedAt    *time.Time
}

// NewCar creates a listing owned by ownerEmail. The booking counter starts at zero.
func NewCar(ownerEmail, ownerName string, d Details) (*Car, error) {
	ownerEmail = NormalizeEmail(ownerEmail)
	if ownerEmail == "" {
		return nil, apperror.NewValidationError("owner email is required")
	}
	d.Model = strings.TrimSpace(d.Model)
	d.VehicleRegistrationNumber = strings.TrimSpace(d.VehicleRegistrationNumber)
	d.DailyRentalPrice = roundCents(d.DailyRentalPrice)
	if err := validate(d); err != nil {
		return nil, err
	}

	return &Car{
		id:         uuid.New(),
		details:    d,
		ownerEmail: ownerEmail,
		ownerName:  ownerName,
		version:    1,
		datePosted: time.Now().UTC(),
	}, nil
}

// Reconstruct rebuilds a Car from persistence data (no validation).
func Reconstruct(
	id uuid.UUID,
	d Details,
	ownerEmail, ownerName string,
	bookingCount int,
	version int64,
	datePosted time.Time,
	updatedAt *time.Time,
) *Car {
	return &Car{
		id:           id,
		details:      d,
		ownerEmail:   ownerEmail,
		ownerName:    ownerName,
		bookingCount: bookingCount,
		version:      version,
		datePosted:   datePosted,
		updatedAt:    updatedAt,
	}
}

func validate(d Details) error {
	if d.Model == "" {
		return apperror.NewValidationError("car model is required")
	}
	switch p := d.DailyRentalPrice; {
	case math.IsNaN(p) || p < MinDailyRentalPrice:
		return apperror.NewValidationError("daily rental price must be at least 0.01")
	case p > MaxDailyRentalPrice:
		return apperror.NewValidationError("daily rental price is too large")
	}
	if d.VehicleRegistrationNumber == "" {
		return apperror.NewValidationError("vehicle registration number is required")
	}
	return nil
}

// roundCents rounds a price to the cents the store keeps.
func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}

// NormalizeEmail trims and lowercases an address. Emails are stored and queried in this form.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// --- Getters ---

func (c *Car) ID() uuid.UUID                     { return c.id }
func (c *Car) Details() Details                  { return c.details }
func (c *Car) Model() string                     { return c.details.Model }
func (c *Car) DailyRentalPrice() float64         { return c.details.DailyRentalPrice }
func (c *Car) Available() bool                   { return c.details.Availability }
func (c *Car) VehicleRegistrationNumber() string { return c.details.VehicleRegistrationNumber }
func (c *Car) ImageURL() string                  { return c.details.ImageURL }
func (c *Car) OwnerEmail() string                { return c.ownerEmail }
func (c *Car) OwnerName() string                 { return c.ownerName }
func (c *Car) BookingCount() int                 { return c.bookingCount }
func (c *Car) Version() int64                    { return c.version }
func (c *Car) DatePosted() time.Time             { return c.datePosted }
func (c *Car) UpdatedAt() *time.Time             { return c.updatedAt }

// --- Behavior ---

// IsOwnedBy checks if the car was listed by the given email.
func (c *Car) IsOwnedBy(email string) bool {
	return email != "" && strings.EqualFold(c.ownerEmail, email)
}

// Apply merges the patch into the listing. The booking counter and the owner
// are not owner-mutable and cannot be changed here.
func (c *Car) Apply(p Patch) error {
	next := c.details
	if p.Model != nil {
		next.Model = strings.TrimSpace(*p.Model)
	}
	if p.DailyRentalPrice != nil {
		next.DailyRentalPrice = roundCents(*p.DailyRentalPrice)
	}
	if p.Availability != nil {
		next.Availability = *p.Availability
	}
	if p.VehicleRegistrationNumber != nil {
		next.VehicleRegistrationNumber = strings.TrimSpace(*p.VehicleRegistrationNumber)
	}
	if p.Features != nil {
		next.Features = *p.Features
	}
	if p.Description != nil {
		next.Description = *p.Description
	}
	if p.ImageURL != nil {
		next.ImageURL = *p.ImageURL
	}
	if p.Location != nil {
		next.Location = *p.Location
	}
	if err := validate(next); err != nil {
		return err
	}

	now := time.Now().UTC()
	c.details = next
	c.updatedAt = &now
	return nil
}
