//go:build integration

package main_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/autovoyage/service-rental/internal/application"
	bookingDomain "github.com/autovoyage/service-rental/internal/domain/booking"
	carDomain "github.com/autovoyage/service-rental/internal/domain/car"
	rentalEvents "github.com/autovoyage/service-rental/internal/events"
	"github.com/autovoyage/service-rental/internal/platform/apperror"
	"github.com/autovoyage/service-rental/internal/platform/kafka"
	"github.com/autovoyage/service-rental/internal/repository"
)

// TestConcurrentCreate_OneActiveBookingPerPair races several creates for the
// same car and renter. The partial unique index must let exactly one through.
func TestConcurrentCreate_OneActiveBookingPerPair(t *testing.T) {
	db := setupPostgres(t)
	stack := setupRentalStack(db, application.NoopEventPublisher{})
	carID := listCar(t, stack, 50)

	const n = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
		conflicts int
	)
	start := make(chan struct{})
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_, err := stack.Bookings.CreateBooking(context.Background(), renter, application.CreateBookingRequest{
				CarID: carID.String(), StartDate: "2025-06-01", EndDate: "2025-06-04",
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				successes++
			case apperror.Is(err, apperror.KindConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	assert.Equal(t, 1, successes)
	assert.Equal(t, n-1, conflicts)
	assert.Equal(t, 1, bookingCount(t, db, carID))

	var active int64
	require.NoError(t, db.Model(&repository.BookingModel{}).
		Where("car_id = ? AND status IN ?", carID, []string{"pending", "confirmed"}).
		Count(&active).Error)
	assert.EqualValues(t, 1, active)
}

// TestBookingLifecycle_CounterAndIndex exercises the transactional counter and
// the partial index through a full renter lifecycle.
func TestBookingLifecycle_CounterAndIndex(t *testing.T) {
	db := setupPostgres(t)
	stack := setupRentalStack(db, application.NoopEventPublisher{})
	ctx := context.Background()
	carID := listCar(t, stack, 50)

	first, err := stack.Bookings.CreateBooking(ctx, renter, application.CreateBookingRequest{
		CarID: carID.String(), StartDate: "2025-06-01", EndDate: "2025-06-04",
	})
	require.NoError(t, err)
	assert.Equal(t, 3, first.TotalDays)
	assert.Equal(t, 150.0, first.TotalCost)

	// Modify reprices at the original rate even after the owner changes it.
	newRate := 80.0
	_, err = stack.Cars.UpdateCar(ctx, owner, carID, application.UpdateCarRequest{DailyRentalPrice: &newRate})
	require.NoError(t, err)
	modified, err := stack.Bookings.ModifyBooking(ctx, renter, first.ID, "2025-06-01", "2025-06-06")
	require.NoError(t, err)
	assert.Equal(t, 5, modified.Booking.TotalDays)
	assert.Equal(t, 250.0, modified.Booking.TotalCost)

	_, err = stack.Bookings.CancelBooking(ctx, renter, first.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, bookingCount(t, db, carID), "cancel leaves the counter alone")

	// A cancelled booking no longer holds the pair.
	second, err := stack.Bookings.CreateBooking(ctx, renter, application.CreateBookingRequest{
		CarID: carID.String(), StartDate: "2025-07-01", EndDate: "2025-07-02",
	})
	require.NoError(t, err)
	assert.Equal(t, 80.0, second.TotalCost)
	assert.Equal(t, 2, bookingCount(t, db, carID))

	require.NoError(t, stack.Bookings.DeleteBooking(ctx, renter, first.ID))
	assert.Equal(t, 1, bookingCount(t, db, carID))

	err = stack.Bookings.DeleteBooking(ctx, renter, second.ID)
	assert.True(t, apperror.Is(err, apperror.KindInvalidState))

	// Drifted counters never go negative.
	require.NoError(t, db.Model(&repository.CarModel{}).Where("id = ?", carID).
		UpdateColumn("booking_count", 0).Error)
	_, err = stack.Bookings.CancelBooking(ctx, renter, second.ID)
	require.NoError(t, err)
	require.NoError(t, stack.Bookings.DeleteBooking(ctx, renter, second.ID))
	assert.Equal(t, 0, bookingCount(t, db, carID))

	list, err := stack.Bookings.ListMyBookings(ctx, renter, "", "")
	require.NoError(t, err)
	assert.Empty(t, list)
}

// TestDeletedCar_BookingsStayReadable verifies bookings survive their car.
func TestDeletedCar_BookingsStayReadable(t *testing.T) {
	db := setupPostgres(t)
	stack := setupRentalStack(db, application.NoopEventPublisher{})
	ctx := context.Background()
	carID := listCar(t, stack, 50)

	b, err := stack.Bookings.CreateBooking(ctx, renter, application.CreateBookingRequest{
		CarID: carID.String(), StartDate: "2025-06-01", EndDate: "2025-06-04",
	})
	require.NoError(t, err)
	require.NoError(t, stack.Cars.DeleteCar(ctx, owner, carID))

	list, err := stack.Bookings.ListMyBookings(ctx, renter, "startDate", "asc")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, b.ID, list[0].ID)
	assert.Nil(t, list[0].CarImageURL)

	_, err = stack.Bookings.CancelBooking(ctx, renter, b.ID)
	require.NoError(t, err)
	require.NoError(t, stack.Bookings.DeleteBooking(ctx, renter, b.ID))
}

// TestCarRepository_SearchAndConstraints covers ILIKE search, whitelisted
// sorting, the per-owner registration index and optimistic updates.
func TestCarRepository_SearchAndConstraints(t *testing.T) {
	db := setupPostgres(t)
	repo := repository.NewGormCarRepository(db)
	ctx := context.Background()

	for i, model := range []string{"Honda Civic", "Tesla Model 3", "Honda Jazz"} {
		c, err := carDomain.NewCar("Owner@X.com", "Olivia", carDomain.Details{
			Model:                     model,
			DailyRentalPrice:          float64(40 + 10*i),
			Availability:              true,
			VehicleRegistrationNumber: fmt.Sprintf("REG-%d", i),
			Description:               "100%_clean",
		})
		require.NoError(t, err)
		require.NoError(t, repo.Save(ctx, c))
	}

	hits, err := repo.Search(ctx, carDomain.SearchQuery{Text: "honda", Sort: carDomain.SortDailyRentalPrice})
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "Honda Civic", hits[0].Model())

	hits, err = repo.Search(ctx, carDomain.SearchQuery{Text: "%_", Sort: carDomain.SortModel})
	require.NoError(t, err)
	assert.Len(t, hits, 3, "wildcards are matched literally")

	hits, err = repo.Search(ctx, carDomain.SearchQuery{Text: "50%"})
	require.NoError(t, err)
	assert.Empty(t, hits)

	mine, err := repo.FindByOwnerEmail(ctx, "OWNER@x.com")
	require.NoError(t, err)
	assert.Len(t, mine, 3)

	dup, err := carDomain.NewCar("owner@x.com", "Olivia", carDomain.Details{
		Model: "Other", DailyRentalPrice: 10, VehicleRegistrationNumber: "REG-0",
	})
	require.NoError(t, err)
	assert.True(t, apperror.Is(repo.Save(ctx, dup), apperror.KindConflict))

	parked, err := carDomain.NewCar("owner@x.com", "Olivia", carDomain.Details{
		Model: "Parked", DailyRentalPrice: 10, VehicleRegistrationNumber: "REG-P", Availability: false,
	})
	require.NoError(t, err)
	require.NoError(t, repo.Save(ctx, parked))
	got, err := repo.FindByID(ctx, parked.ID())
	require.NoError(t, err)
	assert.False(t, got.Available())

	current, err := repo.FindByID(ctx, mine[0].ID())
	require.NoError(t, err)
	stale, err := repo.FindByID(ctx, mine[0].ID())
	require.NoError(t, err)

	price := 99.0
	require.NoError(t, current.Apply(carDomain.Patch{DailyRentalPrice: &price}))
	require.NoError(t, repo.Update(ctx, current))

	require.NoError(t, stale.Apply(carDomain.Patch{DailyRentalPrice: &price}))
	assert.True(t, apperror.Is(repo.Update(ctx, stale), apperror.KindConflict))
}

// TestVehicleReturned_CompletesBooking verifies that a rental.vehicle_returned
// event completes a confirmed booking and that booking.completed is published.
func TestVehicleReturned_CompletesBooking(t *testing.T) {
	db := setupPostgres(t)
	brokers := setupKafka(t)
	log := zap.NewNop()

	producer := kafka.NewProducer(brokers, log)
	defer func() { _ = producer.Close() }()
	stack := setupRentalStack(db, application.NewKafkaEventPublisher(producer, log))
	ctx := context.Background()

	carID := listCar(t, stack, 50)
	b, err := stack.Bookings.CreateBooking(ctx, renter, application.CreateBookingRequest{
		CarID: carID.String(), StartDate: "2025-06-01", EndDate: "2025-06-04",
	})
	require.NoError(t, err)
	_, err = stack.Bookings.ConfirmBooking(ctx, owner, b.ID)
	require.NoError(t, err)

	groupID := fmt.Sprintf("test-rental-%s", uuid.New().String()[:8])
	consumer := rentalEvents.NewRentalEventConsumer(brokers, groupID, stack.Bookings, log)
	defer func() { _ = consumer.Close() }()

	consumerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = consumer.Start(consumerCtx) }()
	time.Sleep(3 * time.Second) // Wait for consumer group join.

	publishTestEvent(t, brokers, rentalEvents.TopicRentalEvents, "rental-desk",
		rentalEvents.RentalVehicleReturned, rentalEvents.VehicleReturnedEvent{
			BookingID:  b.ID,
			ReturnedAt: time.Now().UTC(),
		})

	model := waitForBookingStatus(t, db, b.ID, "completed", 15*time.Second)
	assert.EqualValues(t, 3, model.Version)

	ce := consumeOneEvent(t, brokers, bookingDomain.TopicBookingEvents, bookingDomain.EventCompleted, 15*time.Second)
	assert.Equal(t, application.EventSource, ce.Source)

	var completed bookingDomain.LifecycleEvent
	require.NoError(t, ce.ParseData(&completed))
	assert.Equal(t, b.ID, completed.BookingID)
	assert.Equal(t, carID, completed.CarID)
	assert.Equal(t, "completed", completed.Status)
	assert.Equal(t, 150.0, completed.TotalCost)
}
