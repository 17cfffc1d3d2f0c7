package booking

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/autovoyage/service-rental/internal/platform/apperror"
	"github.com/google/uuid"
)

// MaxTotalCost is the largest cost the total_cost NUMERIC(14,2) column holds.
const MaxTotalCost = 999_999_999_999.99

// CarRef is the car data denormalized onto a booking at creation.
type CarRef struct {
	ID         uuid.UUID
	Model      string
	OwnerEmail string
	OwnerName  string
}

// Booking is the aggregate root for the rental booking domain.
type Booking struct {
	id          uuid.UUID
	car         CarRef
	renterEmail string
	renterName  string
	startDate   time.Time
	endDate     time.Time
	quote       Quote
	status      BookingStatus

	version     int64
	bookingDate time.Time
	updatedAt   *time.Time
}

// NewBooking creates a new pending Booking priced by quote.
func NewBooking(
	car CarRef,
	renterEmail string,
	renterName string,
	startDate time.Time,
	endDate time.Time,
	quote Quote,
) (*Booking, error) {
	if car.ID == uuid.Nil {
		return nil, apperror.NewValidationError("car ID is required")
	}
	renterEmail = strings.ToLower(strings.TrimSpace(renterEmail))
	if renterEmail == "" {
		return nil, apperror.NewValidationError("renter email is required")
	}
	car.OwnerEmail = strings.ToLower(strings.TrimSpace(car.OwnerEmail))
	if err := validatePeriod(startDate, endDate, quote); err != nil {
		return nil, err
	}

	return &Booking{
		id:          uuid.New(),
		car:         car,
		renterEmail: renterEmail,
		renterName:  renterName,
		startDate:   startDate.UTC(),
		endDate:     endDate.UTC(),
		quote:       quote,
		status:      StatusPending,
		version:     1,
		bookingDate: time.Now().UTC(),
	}, nil
}

// ReconstructBooking rebuilds a Booking from persistence data (no validation).
func ReconstructBooking(
	id uuid.UUID,
	car CarRef,
	renterEmail string,
	renterName string,
	startDate time.Time,
	endDate time.Time,
	quote Quote,
	status BookingStatus,
	version int64,
	bookingDate time.Time,
	updatedAt *time.Time,
) *Booking {
	return &Booking{
		id:          id,
		car:         car,
		renterEmail: renterEmail,
		renterName:  renterName,
		startDate:   startDate,
		endDate:     endDate,
		quote:       quote,
		status:      status,
		version:     version,
		bookingDate: bookingDate,
		updatedAt:   updatedAt,
	}
}

func validatePeriod(start, end time.Time, quote Quote) error {
	if start.IsZero() || end.IsZero() {
		return apperror.NewValidationError("start date and end date are required")
	}
	if !end.After(start) {
		return apperror.NewValidationError("end date must be after start date")
	}
	if !quote.Billable() {
		return apperror.NewValidationError("rental period must be at least one day")
	}
	if math.IsNaN(quote.TotalCost) || quote.TotalCost > MaxTotalCost {
		return apperror.NewValidationError("total cost exceeds the bookable maximum")
	}
	return nil
}

// --- Getters ---

// ID returns the booking's unique identifier.
func (b *Booking) ID() uuid.UUID { return b.id }

// Car returns the denormalized car reference.
func (b *Booking) Car() CarRef { return b.car }

// CarID returns the booked car's identifier.
func (b *Booking) CarID() uuid.UUID { return b.car.ID }

// RenterEmail returns the renter's email.
func (b *Booking) RenterEmail() string { return b.renterEmail }

// RenterName returns the renter's display name.
func (b *Booking) RenterName() string { return b.renterName }

// StartDate returns the first day of the rental.
func (b *Booking) StartDate() time.Time { return b.startDate }

// EndDate returns the end of the rental.
func (b *Booking) EndDate() time.Time { return b.endDate }

// Quote returns the priced duration and cost.
func (b *Booking) Quote() Quote { return b.quote }

// TotalDays returns the billed number of days.
func (b *Booking) TotalDays() int { return b.quote.TotalDays }

// TotalCost returns the billed total.
func (b *Booking) TotalCost() float64 { return b.quote.TotalCost }

// Status returns the current booking status.
func (b *Booking) Status() BookingStatus { return b.status }

// Version returns the entity version for optimistic locking.
func (b *Booking) Version() int64 { return b.version }

// BookingDate returns the creation timestamp.
func (b *Booking) BookingDate() time.Time { return b.bookingDate }

// UpdatedAt returns the last-updated timestamp, or nil if never updated.
func (b *Booking) UpdatedAt() *time.Time { return b.updatedAt }

// --- Behavior ---

// IsRentedBy reports whether email is the booking's renter.
func (b *Booking) IsRentedBy(email string) bool {
	return email != "" && strings.EqualFold(b.renterEmail, email)
}

// IsForCarOwnedBy reports whether email owns the booked car.
func (b *Booking) IsForCarOwnedBy(email string) bool {
	return email != "" && strings.EqualFold(b.car.OwnerEmail, email)
}

// Reschedule moves a pending booking to a new period priced by quote.
func (b *Booking) Reschedule(startDate, endDate time.Time, quote Quote) error {
	if b.status != StatusPending {
		return notPendingError(b.status, "modified")
	}
	if err := validatePeriod(startDate, endDate, quote); err != nil {
		return err
	}
	b.startDate = startDate.UTC()
	b.endDate = endDate.UTC()
	b.quote = quote
	b.touch()
	return nil
}

// Cancel is the renter's cancellation and is only allowed while pending.
func (b *Booking) Cancel() error {
	if b.status != StatusPending {
		return notPendingError(b.status, "cancelled")
	}
	b.status = StatusCancelled
	b.touch()
	return nil
}

// Confirm transitions the booking from pending to confirmed.
func (b *Booking) Confirm() error {
	return b.transitionTo(StatusConfirmed)
}

// Complete transitions the booking from confirmed to completed.
func (b *Booking) Complete() error {
	return b.transitionTo(StatusCompleted)
}

// Reject is the car owner's cancellation of a pending or confirmed booking.
func (b *Booking) Reject() error {
	return b.transitionTo(StatusCancelled)
}

// EnsureDeletable returns an error unless the booking is cancelled or completed.
func (b *Booking) EnsureDeletable() error {
	if !b.status.IsTerminal() {
		return &apperror.AppError{
			Kind:    apperror.KindInvalidState,
			Message: fmt.Sprintf("only cancelled or completed bookings can be deleted (status: %s)", b.status),
		}
	}
	return nil
}

// IncrementVersion bumps the version for optimistic locking.
func (b *Booking) IncrementVersion() {
	b.version++
}

func (b *Booking) transitionTo(target BookingStatus) error {
	if !b.status.CanTransitionTo(target) {
		return apperror.NewInvalidStateError(string(b.status), string(target))
	}
	b.status = target
	b.touch()
	return nil
}

func (b *Booking) touch() {
	now := time.Now().UTC()
	b.updatedAt = &now
}

func notPendingError(status BookingStatus, action string) error {
	return &apperror.AppError{
		Kind:    apperror.KindInvalidState,
		Message: fmt.Sprintf("only pending bookings can be %s (status: %s)", action, status),
	}
}
