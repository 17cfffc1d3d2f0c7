package application

import (
	"context"
	"fmt"
	"strings"
	"time"

	bookingDomain "github.com/autovoyage/service-rental/internal/domain/booking"
	carDomain "github.com/autovoyage/service-rental/internal/domain/car"
	"github.com/autovoyage/service-rental/internal/platform/apperror"
	"github.com/autovoyage/service-rental/internal/platform/auth"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CreateBookingRequest holds the data needed to create a new booking. Any
// client-computed totals in the body are ignored.
type CreateBookingRequest struct {
	CarID     string `json:"carId" binding:"required"`
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

// UpdateBookingRequest is either a cancellation ({"status":"cancelled"}) or a
// reschedule ({"startDate","endDate"}).
type UpdateBookingRequest struct {
	Status    *string `json:"status"`
	StartDate *string `json:"startDate"`
	EndDate   *string `json:"endDate"`
}

// BookingDTO is the response representation of a booking.
type BookingDTO struct {
	ID            uuid.UUID  `json:"_id"`
	CarID         uuid.UUID  `json:"carId"`
	CarModel      string     `json:"carModel"`
	CarOwner      string     `json:"carOwner"`
	CarOwnerEmail string     `json:"carOwnerEmail"`
	RenterEmail   string     `json:"renterEmail"`
	RenterName    string     `json:"renterName"`
	StartDate     time.Time  `json:"startDate"`
	EndDate       time.Time  `json:"endDate"`
	TotalDays     int        `json:"totalDays"`
	TotalCost     float64    `json:"totalCost"`
	Status        string     `json:"status"`
	BookingDate   time.Time  `json:"bookingDate"`
	UpdatedAt     *time.Time `json:"updatedAt,omitempty"`
}

// BookingWithCarDTO is a booking enriched with the referenced car's image.
// CarImageURL is null when the car no longer exists.
type BookingWithCarDTO struct {
	BookingDTO
	CarImageURL *string `json:"carImageUrl"`
}

// UpdateResult reports the outcome of a booking update.
type UpdateResult struct {
	Booking  BookingDTO
	Modified bool
}

// ActiveBookingCheck is the answer to "does this renter already hold this car".
type ActiveBookingCheck struct {
	HasActiveBooking bool        `json:"hasActiveBooking"`
	Booking          *BookingDTO `json:"booking"`
}

// BookingStatsDTO holds booking statistics for a car owner.
type BookingStatsDTO struct {
	TotalBookings int64            `json:"totalBookings"`
	ByStatus      map[string]int64 `json:"byStatus"`
}

// BookingService is the application service orchestrating booking use cases.
// Every operation takes the verified caller identity explicitly.
type BookingService struct {
	repo      bookingDomain.BookingRepository
	cars      carDomain.CarRepository
	guard     *bookingDomain.ConflictGuard
	pricing   bookingDomain.PricingStrategy
	publisher EventPublisher
	logger    *zap.Logger
}

// NewBookingService creates a new BookingService.
func NewBookingService(
	repo bookingDomain.BookingRepository,
	cars carDomain.CarRepository,
	pricing bookingDomain.PricingStrategy,
	publisher EventPublisher,
	logger *zap.Logger,
) *BookingService {
	return &BookingService{
		repo:      repo,
		cars:      cars,
		guard:     bookingDomain.NewConflictGuard(repo),
		pricing:   pricing,
		publisher: publisher,
		logger:    logger,
	}
}

// CreateBooking books a car for the caller. Duration and cost are derived
// from the car's current daily rate.
func (s *BookingService) CreateBooking(ctx context.Context, caller auth.Identity, req CreateBookingRequest) (*BookingDTO, error) {
	carID, err := ParseID("car", req.CarID)
	if err != nil {
		return nil, err
	}
	startDate, endDate, err := parsePeriod(req.StartDate, req.EndDate)
	if err != nil {
		return nil, err
	}

	c, err := s.cars.FindByID(ctx, carID)
	if err != nil {
		return nil, err
	}
	if !c.Available() {
		return nil, apperror.NewValidationError("car is not available for booking")
	}

	if err := s.guard.Check(ctx, carID, caller.Email); err != nil {
		return nil, err
	}

	quote := s.pricing.Quote(startDate, endDate, c.DailyRentalPrice())
	bk, err := bookingDomain.NewBooking(
		bookingDomain.CarRef{
			ID:         c.ID(),
			Model:      c.Model(),
			OwnerEmail: c.OwnerEmail(),
			OwnerName:  c.OwnerName(),
		},
		caller.Email,
		caller.Name(),
		startDate,
		endDate,
		quote,
	)
	if err != nil {
		return nil, err
	}

	// The unique index turns a lost race with a concurrent create into a conflict here.
	if err := s.repo.Create(ctx, bk); err != nil {
		return nil, err
	}

	s.logger.Info("booking created",
		zap.String("booking_id", bk.ID().String()),
		zap.String("car_id", carID.String()),
		zap.String("renter_email", caller.Email),
		zap.Int("total_days", bk.TotalDays()),
		zap.Float64("total_cost", bk.TotalCost()),
	)
	s.publish(ctx, bookingDomain.EventCreated, bk, caller.Email)

	result := toBookingDTO(bk)
	return &result, nil
}

// UpdateBooking dispatches a renter update to Cancel or Modify.
func (s *BookingService) UpdateBooking(ctx context.Context, caller auth.Identity, id uuid.UUID, req UpdateBookingRequest) (*UpdateResult, error) {
	switch {
	case req.Status != nil:
		status, err := bookingDomain.ParseBookingStatus(*req.Status)
		if err != nil {
			return nil, err
		}
		if status != bookingDomain.StatusCancelled {
			return nil, apperror.NewValidationError(fmt.Sprintf("renters can only set status to cancelled, got %q", status))
		}
		return s.CancelBooking(ctx, caller, id)
	case req.StartDate != nil && req.EndDate != nil:
		return s.ModifyBooking(ctx, caller, id, *req.StartDate, *req.EndDate)
	default:
		return nil, apperror.NewValidationError("request must contain either status or startDate and endDate")
	}
}

// ModifyBooking reschedules a pending booking, repricing it at the rate
// implied by its original quote rather than the car's live rate.
func (s *BookingService) ModifyBooking(ctx context.Context, caller auth.Identity, id uuid.UUID, start, end string) (*UpdateResult, error) {
	bk, err := s.findForRenter(ctx, caller, id, "update")
	if err != nil {
		return nil, err
	}

	startDate, endDate, err := parsePeriod(start, end)
	if err != nil {
		return nil, err
	}

	quote := s.pricing.Requote(startDate, endDate, bk.Quote())
	if err := bk.Reschedule(startDate, endDate, quote); err != nil {
		return nil, err
	}

	bk.IncrementVersion()
	if err := s.repo.Update(ctx, bk); err != nil {
		return nil, err
	}

	s.logger.Info("booking modified",
		zap.String("booking_id", id.String()),
		zap.Int("total_days", bk.TotalDays()),
		zap.Float64("total_cost", bk.TotalCost()),
	)
	s.publish(ctx, bookingDomain.EventModified, bk, caller.Email)

	return &UpdateResult{Booking: toBookingDTO(bk), Modified: true}, nil
}

// CancelBooking cancels the caller's pending booking. Cancelling an already
// cancelled booking succeeds without writing. The car's booking counter is not touched.
func (s *BookingService) CancelBooking(ctx context.Context, caller auth.Identity, id uuid.UUID) (*UpdateResult, error) {
	bk, err := s.findForRenter(ctx, caller, id, "update")
	if err != nil {
		return nil, err
	}

	if bk.Status() == bookingDomain.StatusCancelled {
		return &UpdateResult{Booking: toBookingDTO(bk), Modified: false}, nil
	}

	if err := bk.Cancel(); err != nil {
		return nil, err
	}

	bk.IncrementVersion()
	if err := s.repo.Update(ctx, bk); err != nil {
		return nil, err
	}

	s.logger.Info("booking cancelled", zap.String("booking_id", id.String()))
	s.publish(ctx, bookingDomain.EventCancelled, bk, caller.Email)

	return &UpdateResult{Booking: toBookingDTO(bk), Modified: true}, nil
}

// DeleteBooking permanently removes the caller's cancelled or completed
// booking and releases its slot in the car's booking counter.
func (s *BookingService) DeleteBooking(ctx context.Context, caller auth.Identity, id uuid.UUID) error {
	bk, err := s.findForRenter(ctx, caller, id, "delete")
	if err != nil {
		return err
	}
	if err := bk.EnsureDeletable(); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, bk); err != nil {
		return err
	}

	s.logger.Info("booking deleted",
		zap.String("booking_id", id.String()),
		zap.String("car_id", bk.CarID().String()),
	)
	s.publish(ctx, bookingDomain.EventDeleted, bk, caller.Email)
	return nil
}

// ListMyBookings returns the caller's bookings with each car's image.
func (s *BookingService) ListMyBookings(ctx context.Context, caller auth.Identity, sort, order string) ([]BookingWithCarDTO, error) {
	bookings, err := s.repo.FindByRenter(ctx, caller.Email, listQuery(sort, order))
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	return s.withCarImages(ctx, bookings)
}

// CheckActiveBooking reports whether email holds an active booking on the car.
// Callers may only check themselves.
func (s *BookingService) CheckActiveBooking(ctx context.Context, caller auth.Identity, rawCarID, email string) (*ActiveBookingCheck, error) {
	if !strings.EqualFold(caller.Email, email) {
		return nil, apperror.NewForbiddenError("Unauthorized: You can only check your own bookings")
	}
	carID, err := ParseID("car", rawCarID)
	if err != nil {
		return nil, err
	}

	bk, err := s.guard.ActiveBooking(ctx, carID, caller.Email)
	if err != nil {
		return nil, err
	}
	if bk == nil {
		return &ActiveBookingCheck{HasActiveBooking: false}, nil
	}
	dto := toBookingDTO(bk)
	return &ActiveBookingCheck{HasActiveBooking: true, Booking: &dto}, nil
}

// --- Car owner methods ---

// ListOwnerBookings returns bookings made on the caller's cars.
func (s *BookingService) ListOwnerBookings(ctx context.Context, caller auth.Identity, sort, order string) ([]BookingWithCarDTO, error) {
	bookings, err := s.repo.FindByCarOwner(ctx, caller.Email, listQuery(sort, order))
	if err != nil {
		return nil, fmt.Errorf("failed to list owner bookings: %w", err)
	}
	return s.withCarImages(ctx, bookings)
}

// GetOwnerBookingStats returns counts by status for bookings on the caller's cars.
func (s *BookingService) GetOwnerBookingStats(ctx context.Context, caller auth.Identity) (*BookingStatsDTO, error) {
	counts, err := s.repo.CountByStatusForOwner(ctx, caller.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to get booking stats: %w", err)
	}

	var total int64
	for _, c := range counts {
		total += c
	}
	return &BookingStatsDTO{TotalBookings: total, ByStatus: counts}, nil
}

// ConfirmBooking accepts a pending booking on the caller's car.
func (s *BookingService) ConfirmBooking(ctx context.Context, caller auth.Identity, id uuid.UUID) (*BookingDTO, error) {
	return s.ownerTransition(ctx, caller, id, (*bookingDomain.Booking).Confirm, bookingDomain.EventConfirmed)
}

// CompleteBooking marks a confirmed booking on the caller's car as returned.
func (s *BookingService) CompleteBooking(ctx context.Context, caller auth.Identity, id uuid.UUID) (*BookingDTO, error) {
	return s.ownerTransition(ctx, caller, id, (*bookingDomain.Booking).Complete, bookingDomain.EventCompleted)
}

// RejectBooking cancels a pending or confirmed booking on the caller's car.
func (s *BookingService) RejectBooking(ctx context.Context, caller auth.Identity, id uuid.UUID) (*BookingDTO, error) {
	return s.ownerTransition(ctx, caller, id, (*bookingDomain.Booking).Reject, bookingDomain.EventCancelled)
}

// CompleteReturnedBooking completes a confirmed booking when the vehicle hand-back
// is reported by another system. Already completed bookings are left alone so
// redelivered events are harmless.
func (s *BookingService) CompleteReturnedBooking(ctx context.Context, id uuid.UUID) (*BookingDTO, error) {
	bk, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if bk.Status() == bookingDomain.StatusCompleted {
		result := toBookingDTO(bk)
		return &result, nil
	}

	if err := bk.Complete(); err != nil {
		return nil, err
	}
	bk.IncrementVersion()
	if err := s.repo.Update(ctx, bk); err != nil {
		return nil, err
	}

	s.logger.Info("booking completed after vehicle return", zap.String("booking_id", id.String()))
	s.publish(ctx, bookingDomain.EventCompleted, bk, "")

	result := toBookingDTO(bk)
	return &result, nil
}

// --- Helpers ---

func (s *BookingService) findForRenter(ctx context.Context, caller auth.Identity, id uuid.UUID, action string) (*bookingDomain.Booking, error) {
	bk, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !bk.IsRentedBy(caller.Email) {
		return nil, apperror.NewForbiddenError(fmt.Sprintf("Unauthorized: You can only %s your own bookings", action))
	}
	return bk, nil
}

func (s *BookingService) ownerTransition(
	ctx context.Context,
	caller auth.Identity,
	id uuid.UUID,
	transition func(*bookingDomain.Booking) error,
	eventType string,
) (*BookingDTO, error) {
	bk, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !bk.IsForCarOwnedBy(caller.Email) {
		return nil, apperror.NewForbiddenError("Unauthorized: You can only manage bookings on your own cars")
	}

	if err := transition(bk); err != nil {
		return nil, err
	}
	bk.IncrementVersion()
	if err := s.repo.Update(ctx, bk); err != nil {
		return nil, err
	}

	s.logger.Info("booking status changed by owner",
		zap.String("booking_id", id.String()),
		zap.String("status", bk.Status().String()),
		zap.String("owner_email", caller.Email),
	)
	s.publish(ctx, eventType, bk, caller.Email)

	result := toBookingDTO(bk)
	return &result, nil
}

// withCarImages enriches bookings with their car's image in one lookup.
// Bookings whose car was deleted get a null image.
func (s *BookingService) withCarImages(ctx context.Context, bookings []*bookingDomain.Booking) ([]BookingWithCarDTO, error) {
	ids := make([]uuid.UUID, 0, len(bookings))
	seen := make(map[uuid.UUID]struct{}, len(bookings))
	for _, bk := range bookings {
		if _, ok := seen[bk.CarID()]; !ok {
			seen[bk.CarID()] = struct{}{}
			ids = append(ids, bk.CarID())
		}
	}

	cars := map[uuid.UUID]*carDomain.Car{}
	if len(ids) > 0 {
		found, err := s.cars.FindByIDs(ctx, ids)
		if err != nil {
			return nil, fmt.Errorf("failed to load cars for bookings: %w", err)
		}
		cars = found
	}

	out := make([]BookingWithCarDTO, len(bookings))
	for i, bk := range bookings {
		out[i] = BookingWithCarDTO{BookingDTO: toBookingDTO(bk)}
		if c, ok := cars[bk.CarID()]; ok {
			img := c.ImageURL()
			out[i].CarImageURL = &img
		}
	}
	return out, nil
}

func (s *BookingService) publish(ctx context.Context, eventType string, bk *bookingDomain.Booking, actor string) {
	s.publisher.Publish(ctx, bookingDomain.TopicBookingEvents, eventType, bk.ID().String(),
		bookingDomain.NewLifecycleEvent(bk, actor))
}

func listQuery(sort, order string) bookingDomain.ListQuery {
	return bookingDomain.ListQuery{
		Sort:       bookingDomain.ParseSortField(sort),
		Descending: order != "asc",
	}
}

func toBookingDTO(bk *bookingDomain.Booking) BookingDTO {
	return BookingDTO{
		ID:            bk.ID(),
		CarID:         bk.CarID(),
		CarModel:      bk.Car().Model,
		CarOwner:      bk.Car().OwnerName,
		CarOwnerEmail: bk.Car().OwnerEmail,
		RenterEmail:   bk.RenterEmail(),
		RenterName:    bk.RenterName(),
		StartDate:     bk.StartDate(),
		EndDate:       bk.EndDate(),
		TotalDays:     bk.TotalDays(),
		TotalCost:     bk.TotalCost(),
		Status:        bk.Status().String(),
		BookingDate:   bk.BookingDate(),
		UpdatedAt:     bk.UpdatedAt(),
	}
}
