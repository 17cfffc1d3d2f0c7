package car

import (
	"time"

	"github.com/google/uuid"
)

// TopicCarEvents is the Kafka topic listing events are published to.
const TopicCarEvents = "car.events"

const (
	EventCreated = "car.created"
	EventUpdated = "car.updated"
	EventDeleted = "car.deleted"
)

// ListingEvent is the payload of every car.* event.
type ListingEvent struct {
	CarID            uuid.UUID `json:"carId"`
	Model            string    `json:"model"`
	OwnerEmail       string    `json:"ownerEmail"`
	DailyRentalPrice float64   `json:"dailyRentalPrice"`
	Availability     bool      `json:"availability"`
	OccurredAt       time.Time `json:"occurredAt"`
}

// NewListingEvent snapshots c for publication.
func NewListingEvent(c *Car) ListingEvent {
	return ListingEvent{
		CarID:            c.ID(),
		Model:            c.Model(),
		OwnerEmail:       c.OwnerEmail(),
		DailyRentalPrice: c.DailyRentalPrice(),
		Availability:     c.Available(),
		OccurredAt:       time.Now().UTC(),
	}
}
