package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	carDomain "github.com/autovoyage/service-rental/internal/domain/car"
	"github.com/autovoyage/service-rental/internal/platform/apperror"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CarModel is the GORM model for the cars table.
type CarModel struct {
	ID                        uuid.UUID  `gorm:"type:uuid;primaryKey"`
	Model                     string     `gorm:"type:varchar(150);not null"`
	DailyRentalPrice          float64    `gorm:"type:numeric(12,2);not null"`
	Availability              bool       `gorm:"not null"`
	VehicleRegistrationNumber string     `gorm:"type:varchar(50);not null;uniqueIndex:idx_cars_owner_registration,priority:2"`
	Features                  string     `gorm:"type:text"`
	Description               string     `gorm:"type:text"`
	ImageURL                  string     `gorm:"type:text"`
	Location                  string     `gorm:"type:varchar(255)"`
	OwnerEmail                string     `gorm:"type:varchar(255);not null;index:idx_cars_owner_email;uniqueIndex:idx_cars_owner_registration,priority:1"`
	OwnerName                 string     `gorm:"type:varchar(255)"`
	BookingCount              int        `gorm:"not null;default:0"`
	Version                   int64      `gorm:"not null;default:1"`
	DatePosted                time.Time  `gorm:"type:timestamptz;not null;default:now()"`
	UpdatedAt                 *time.Time `gorm:"type:timestamptz;autoUpdateTime:false"`
}

// TableName returns the table name for the GORM model.
func (CarModel) TableName() string { return "cars" }

var carSortColumns = map[carDomain.SortField]string{
	carDomain.SortDatePosted:       "date_posted",
	carDomain.SortDailyRentalPrice: "daily_rental_price",
	carDomain.SortModel:            "model",
	carDomain.SortBookingCount:     "booking_count",
}

// GormCarRepository implements CarRepository using GORM.
type GormCarRepository struct {
	db *gorm.DB
}

// NewGormCarRepository creates a new GormCarRepository.
func NewGormCarRepository(db *gorm.DB) *GormCarRepository {
	return &GormCarRepository{db: db}
}

// FindByID retrieves a car by its identifier.
func (r *GormCarRepository) FindByID(ctx context.Context, id uuid.UUID) (*carDomain.Car, error) {
	var model CarModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NewNotFoundError("Car", id.String())
		}
		return nil, fmt.Errorf("failed to find car by ID: %w", err)
	}
	return toCarDomain(&model), nil
}

// FindByIDs retrieves the cars that still exist among ids.
func (r *GormCarRepository) FindByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*carDomain.Car, error) {
	out := make(map[uuid.UUID]*carDomain.Car, len(ids))
	if len(ids) == 0 {
		return out, nil
	}

	var models []CarModel
	if err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to find cars by IDs: %w", err)
	}
	for i := range models {
		out[models[i].ID] = toCarDomain(&models[i])
	}
	return out, nil
}

// FindByOwnerEmail retrieves an owner's cars, newest first.
func (r *GormCarRepository) FindByOwnerEmail(ctx context.Context, email string) ([]*carDomain.Car, error) {
	var models []CarModel
	if err := r.db.WithContext(ctx).
		Where("owner_email = ?", carDomain.NormalizeEmail(email)).
		Order("date_posted DESC").
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to find owner cars: %w", err)
	}
	return toCarDomains(models), nil
}

// Search filters the listing by free text and orders it by a whitelisted column.
func (r *GormCarRepository) Search(ctx context.Context, q carDomain.SearchQuery) ([]*carDomain.Car, error) {
	query := r.db.WithContext(ctx).Model(&CarModel{})
	if q.Text != "" {
		p := likePattern(q.Text)
		query = query.Where(
			"model ILIKE ? OR location ILIKE ? OR features ILIKE ? OR description ILIKE ? OR owner_name ILIKE ?",
			p, p, p, p, p,
		)
	}

	column, ok := carSortColumns[q.Sort]
	if !ok {
		column = carSortColumns[carDomain.SortDatePosted]
	}

	var models []CarModel
	if err := query.
		Order(clause.OrderByColumn{Column: clause.Column{Name: column}, Desc: q.Descending}).
		Order("id").
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to search cars: %w", err)
	}
	return toCarDomains(models), nil
}

// Save persists a new car.
func (r *GormCarRepository) Save(ctx context.Context, c *carDomain.Car) error {
	if err := r.db.WithContext(ctx).Create(toCarModel(c)).Error; err != nil {
		if isUniqueViolation(err, carRegistrationIndex) {
			return apperror.NewConflictError("You already listed a car with this registration number")
		}
		return fmt.Errorf("failed to save car: %w", err)
	}
	return nil
}

// Update writes owner-mutable fields with optimistic locking. The booking
// counter and owner columns are never part of the update.
func (r *GormCarRepository) Update(ctx context.Context, c *carDomain.Car) error {
	d := c.Details()
	result := r.db.WithContext(ctx).
		Model(&CarModel{}).
		Where("id = ? AND version = ?", c.ID(), c.Version()).
		Updates(map[string]interface{}{
			"model":                       d.Model,
			"daily_rental_price":          d.DailyRentalPrice,
			"availability":                d.Availability,
			"vehicle_registration_number": d.VehicleRegistrationNumber,
			"features":                    d.Features,
			"description":                 d.Description,
			"image_url":                   d.ImageURL,
			"location":                    d.Location,
			"updated_at":                  c.UpdatedAt(),
			"version":                     gorm.Expr("version + 1"),
		})

	if result.Error != nil {
		if isUniqueViolation(result.Error, carRegistrationIndex) {
			return apperror.NewConflictError("You already listed a car with this registration number")
		}
		return fmt.Errorf("failed to update car: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperror.NewConflictError("car was modified by another request")
	}
	return nil
}

// Delete removes a car. Bookings that reference it are left in place.
func (r *GormCarRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result := r.db.WithContext(ctx).Where("id = ?", id).Delete(&CarModel{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete car: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperror.NewNotFoundError("Car", id.String())
	}
	return nil
}

// --- Conversion Helpers ---

func toCarModel(c *carDomain.Car) *CarModel {
	d := c.Details()
	return &CarModel{
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
		Version:                   c.Version(),
		DatePosted:                c.DatePosted(),
		UpdatedAt:                 c.UpdatedAt(),
	}
}

func toCarDomain(m *CarModel) *carDomain.Car {
	return carDomain.Reconstruct(
		m.ID,
		carDomain.Details{
			Model:                     m.Model,
			DailyRentalPrice:          m.DailyRentalPrice,
			Availability:              m.Availability,
			VehicleRegistrationNumber: m.VehicleRegistrationNumber,
			Features:                  m.Features,
			Description:               m.Description,
			ImageURL:                  m.ImageURL,
			Location:                  m.Location,
		},
		m.OwnerEmail,
		m.OwnerName,
		m.BookingCount,
		m.Version,
		m.DatePosted,
		m.UpdatedAt,
	)
}

func toCarDomains(models []CarModel) []*carDomain.Car {
	cars := make([]*carDomain.Car, len(models))
	for i := range models {
		cars[i] = toCarDomain(&models[i])
	}
	return cars
}
