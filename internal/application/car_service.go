package application

import (
	"context"
	"fmt"
	"time"

	carDomain "github.com/autovoyage/service-rental/internal/domain/car"
	"github.com/autovoyage/service-rental/internal/platform/apperror"
	"github.com/autovoyage/service-rental/internal/platform/auth"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// CreateCarRequest is the request DTO for listing a car. Owner fields are
// taken from the caller identity, never from the body.
type CreateCarRequest struct {
	Model                     string  `json:"model"`
	DailyRentalPrice          float64 `json:"dailyRentalPrice"`
	Availability              *bool   `json:"availability"`
	VehicleRegistrationNumber string  `json:"vehicleRegistrationNumber"`
	Features                  string  `json:"features"`
	Description               string  `json:"description"`
	ImageURL                  string  `json:"imageUrl"`
	Location                  string  `json:"location"`
}

// UpdateCarRequest is a partial update. Absent fields are left unchanged;
// bookingCount and owner fields are not accepted.
type UpdateCarRequest struct {
	Model                     *string  `json:"model"`
	DailyRentalPrice          *float64 `json:"dailyRentalPrice"`
	Availability              *bool    `json:"availability"`
	VehicleRegistrationNumber *string  `json:"vehicleRegistrationNumber"`
	Features                  *string  `json:"features"`
	Description               *string  `json:"description"`
	ImageURL                  *string  `json:"imageUrl"`
	Location                  *string  `json:"location"`
}

// CarDTO is the API response representation of a car.
type CarDTO struct {
	ID                        uuid.UUID  `json:"_id"`
	Model                     string     `json:"model"`
	DailyRentalPrice          float64    `json:"dailyRentalPrice"`
	Availability              bool       `json:"availability"`
	VehicleRegistrationNumber string     `json:"vehicleRegistrationNumber"`
	Features                  string     `json:"features"`
	Description               string     `json:"description"`
	ImageURL                  string     `json:"imageUrl"`
	Location                  string     `json:"location"`
	OwnerEmail                string     `json:"ownerEmail"`
	OwnerName                 string     `json:"ownerName"`
	BookingCount              int        `json:"bookingCount"`
	DatePosted                time.Time  `json:"datePosted"`
	UpdatedAt                 *time.Time `json:"updatedAt,omitempty"`
}

// CarService implements use cases for car listings.
type CarService struct {
	repo      carDomain.CarRepository
	publisher EventPublisher
	logger    *zap.Logger
}

// NewCarService creates a new CarService.
func NewCarService(repo carDomain.CarRepository, publisher EventPublisher, logger *zap.Logger) *CarService {
	return &CarService{repo: repo, publisher: publisher, logger: logger}
}

// SearchCars returns the public listing filtered by free text and sorted.
func (s *CarService) SearchCars(ctx context.Context, search, sort, order string) ([]CarDTO, error) {
	cars, err := s.repo.Search(ctx, carDomain.SearchQuery{
		Text:       search,
		Sort:       carDomain.ParseSortField(sort),
		Descending: order != "asc",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search cars: %w", err)
	}
	return toCarDTOs(cars), nil
}

// GetCar returns a single car.
func (s *CarService) GetCar(ctx context.Context, id uuid.UUID) (*CarDTO, error) {
	c, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	result := toCarDTO(c)
	return &result, nil
}

// GetMyCars returns the caller's listings, newest first.
func (s *CarService) GetMyCars(ctx context.Context, caller auth.Identity) ([]CarDTO, error) {
	cars, err := s.repo.FindByOwnerEmail(ctx, caller.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to get cars: %w", err)
	}
	return toCarDTOs(cars), nil
}

// CreateCar lists a car owned by the caller.
func (s *CarService) CreateCar(ctx context.Context, caller auth.Identity, req CreateCarRequest) (*CarDTO, error) {
	available := true
	if req.Availability != nil {
		available = *req.Availability
	}

	c, err := carDomain.NewCar(caller.Email, caller.Name(), carDomain.Details{
		Model:                     req.Model,
		DailyRentalPrice:          req.DailyRentalPrice,
		Availability:              available,
		VehicleRegistrationNumber: req.VehicleRegistrationNumber,
		Features:                  req.Features,
		Description:               req.Description,
		ImageURL:                  req.ImageURL,
		Location:                  req.Location,
	})
	if err != nil {
		return nil, err
	}

	if err := s.repo.Save(ctx, c); err != nil {
		return nil, err
	}

	s.logger.Info("car listed",
		zap.String("car_id", c.ID().String()),
		zap.String("owner_email", c.OwnerEmail()),
	)
	s.publisher.Publish(ctx, carDomain.TopicCarEvents, carDomain.EventCreated, c.ID().String(), carDomain.NewListingEvent(c))

	result := toCarDTO(c)
	return &result, nil
}

// UpdateCar applies a partial update. Only the listing owner may update it.
// It reports whether anything was written.
func (s *CarService) UpdateCar(ctx context.Context, caller auth.Identity, id uuid.UUID, req UpdateCarRequest) (bool, error) {
	c, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return false, err
	}
	if !c.IsOwnedBy(caller.Email) {
		return false, apperror.NewForbiddenError("Unauthorized: You can only update your own cars")
	}

	patch := carDomain.Patch{
		Model:                     req.Model,
		DailyRentalPrice:          req.DailyRentalPrice,
		Availability:              req.Availability,
		VehicleRegistrationNumber: req.VehicleRegistrationNumber,
		Features:                  req.Features,
		Description:               req.Description,
		ImageURL:                  req.ImageURL,
		Location:                  req.Location,
	}
	if patch.IsEmpty() {
		return false, nil
	}
	if err := c.Apply(patch); err != nil {
		return false, err
	}

	if err := s.repo.Update(ctx, c); err != nil {
		return false, err
	}

	s.logger.Info("car updated", zap.String("car_id", id.String()))
	s.publisher.Publish(ctx, carDomain.TopicCarEvents, carDomain.EventUpdated, id.String(), carDomain.NewListingEvent(c))
	return true, nil
}

// DeleteCar removes a listing. Only the owner may delete it; bookings that
// reference it are kept.
func (s *CarService) DeleteCar(ctx context.Context, caller auth.Identity, id uuid.UUID) error {
	c, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return err
	}
	if !c.IsOwnedBy(caller.Email) {
		return apperror.NewForbiddenError("Unauthorized: You can only delete your own cars")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}

	s.logger.Info("car deleted", zap.String("car_id", id.String()))
	s.publisher.Publish(ctx, carDomain.TopicCarEvents, carDomain.EventDeleted, id.String(), carDomain.NewListingEvent(c))
	return nil
}

// --- Helpers ---

func toCarDTOs(cars []*carDomain.Car) []CarDTO {
	dtos := make([]CarDTO, len(cars))
	for i, c := range cars {
		dtos[i] = toCarDTO(c)
	}
	return dtos
}

func toCarDTO(c *carDomain.Car) CarDTO {
	d := c.Details()
	return CarDTO{
		ID:                        c.ID(),
		Model:                     d.Model,
		DailyRentalPrice:          d.DailyRentalPrice,
		Availability:              d.Availability,
		VehicleRegistrationNumber: d.VehicleRegistrationNumber,
		Features:                  d.Features,
		Description:               d.Description,
		ImageURL:                  d.ImageURL,
		Location:                  d.Location,
		OwnerEmail:                c.OwnerEmail(),
		OwnerName:                 c.OwnerName(),
		BookingCount:              c.BookingCount(),
		DatePosted:                c.DatePosted(),
		UpdatedAt:                 c.UpdatedAt(),
	}
}
