package booking

import (
	"time"

	"github.com/google/uuid"
)

// TopicBookingEvents is the Kafka topic booking lifecycle events are published to.
const TopicBookingEvents = "booking.events"

const (
	EventCreated   = "booking.created"
	EventModified  = "booking.modified"
	EventCancelled = "booking.cancelled"
	EventConfirmed = "booking.confirmed"
	EventCompleted = "booking.completed"
	EventDeleted   = "booking.deleted"
)

// LifecycleEvent is the payload of every booking.* event.
type LifecycleEvent struct {
	BookingID   uuid.UUID `json:"bookingId"`
	CarID       uuid.UUID `json:"carId"`
	CarModel    string    `json:"carModel"`
	RenterEmail string    `json:"renterEmail"`
	OwnerEmail  string    `json:"ownerEmail"`
	Status      string    `json:"status"`
	StartDate   time.Time `json:"startDate"`
	EndDate     time.Time `json:"endDate"`
	TotalDays   int       `json:"totalDays"`
	TotalCost   float64   `json:"totalCost"`
	ActorEmail  string    `json:"actorEmail,omitempty"`
	OccurredAt  time.Time `json:"occurredAt"`
}

// NewLifecycleEvent snapshots b for publication.
func NewLifecycleEvent(b *Booking, actorEmail string) LifecycleEvent {
	return LifecycleEvent{
		BookingID:   b.ID(),
		CarID:       b.CarID(),
		CarModel:    b.Car().Model,
		RenterEmail: b.RenterEmail(),
		OwnerEmail:  b.Car().OwnerEmail,
		Status:      b.Status().String(),
		StartDate:   b.StartDate(),
		EndDate:     b.EndDate(),
		TotalDays:   b.TotalDays(),
		TotalCost:   b.TotalCost(),
		ActorEmail:  actorEmail,
		OccurredAt:  time.Now().UTC(),
	}
}
