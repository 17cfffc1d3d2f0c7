package events

import (
	"context"
	"time"

	"github.com/autovoyage/service-rental/internal/application"
	"github.com/autovoyage/service-rental/internal/platform/apperror"
	"github.com/autovoyage/service-rental/internal/platform/kafka"
	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Hand-over events published by the rental desk.
const (
	TopicRentalEvents     = "rental.events"
	RentalVehicleReturned = "rental.vehicle_returned"
)

// VehicleReturnedEvent reports that the car of a confirmed booking was handed back.
type VehicleReturnedEvent struct {
	BookingID  uuid.UUID `json:"bookingId"`
	ReturnedAt time.Time `json:"returnedAt"`
}

// BookingCompleter completes bookings on behalf of the system.
type BookingCompleter interface {
	CompleteReturnedBooking(ctx context.Context, id uuid.UUID) (*application.BookingDTO, error)
}

// RentalEventConsumer listens to rental desk events and completes returned bookings.
type RentalEventConsumer struct {
	consumer *kafka.Consumer
	service  BookingCompleter
	logger   *zap.Logger
}

// NewRentalEventConsumer creates a new RentalEventConsumer.
func NewRentalEventConsumer(
	brokers []string,
	groupID string,
	service BookingCompleter,
	logger *zap.Logger,
) *RentalEventConsumer {
	consumer := kafka.NewConsumer(brokers, groupID, TopicRentalEvents, logger)
	return &RentalEventConsumer{
		consumer: consumer,
		service:  service,
		logger:   logger,
	}
}

// Start begins consuming rental events. This blocks until the context is cancelled.
func (c *RentalEventConsumer) Start(ctx context.Context) error {
	return c.consumer.Consume(ctx, c.handleMessage)
}

// Close closes the underlying Kafka consumer.
func (c *RentalEventConsumer) Close() error {
	return c.consumer.Close()
}

func (c *RentalEventConsumer) handleMessage(ctx context.Context, msg kafkago.Message) error {
	cloudEvent, err := kafka.ParseCloudEvent(msg.Value)
	if err != nil {
		c.logger.Error("failed to parse cloud event from rental topic",
			zap.Error(err),
			zap.String("raw", string(msg.Value)),
		)
		return nil // Don't retry malformed messages
	}

	switch cloudEvent.Type {
	case RentalVehicleReturned:
		return c.handleVehicleReturned(ctx, cloudEvent)
	default:
		c.logger.Debug("ignoring unhandled rental event type",
			zap.String("type", cloudEvent.Type),
		)
		return nil
	}
}

func (c *RentalEventConsumer) handleVehicleReturned(ctx context.Context, cloudEvent kafka.CloudEvent) error {
	var evt VehicleReturnedEvent
	if err := cloudEvent.ParseData(&evt); err != nil || evt.BookingID == uuid.Nil {
		c.logger.Error("failed to parse VehicleReturnedEvent data",
			zap.Error(err),
			zap.String("event_id", cloudEvent.ID),
		)
		return nil // Don't retry malformed data
	}

	log := c.logger.With(zap.String("booking_id", evt.BookingID.String()))
	log.Info("processing vehicle returned event")

	if _, err := c.service.CompleteReturnedBooking(ctx, evt.BookingID); err != nil {
		switch apperror.KindOf(err) {
		case apperror.KindNotFound, apperror.KindInvalidState:
			// Redelivery cannot change the outcome.
			log.Warn("vehicle returned event not applicable", zap.Error(err))
			return nil
		default:
			log.Error("failed to complete booking after vehicle return", zap.Error(err))
			return err
		}
	}

	log.Info("vehicle returned event handled")
	return nil
}
