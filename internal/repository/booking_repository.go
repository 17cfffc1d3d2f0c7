package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	bookingDomain "github.com/autovoyage/service-rental/internal/domain/booking"
	carDomain "github.com/autovoyage/service-rental/internal/domain/car"
	"github.com/autovoyage/service-rental/internal/platform/apperror"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// BookingModel is the GORM model for the bookings table.
type BookingModel struct {
	ID          uuid.UUID  `gorm:"type:uuid;primaryKey"`
	CarID       uuid.UUID  `gorm:"type:uuid;not null;index:idx_bookings_car_id;uniqueIndex:idx_bookings_active_car_renter,priority:1,where:status = 'pending' OR status = 'confirmed'"`
	CarModel    string     `gorm:"type:varchar(150)"`
	RenterEmail string     `gorm:"type:varchar(255);not null;index:idx_bookings_renter_email;uniqueIndex:idx_bookings_active_car_renter,priority:2"`
	RenterName  string     `gorm:"type:varchar(255)"`
	OwnerEmail  string     `gorm:"type:varchar(255);not null;index:idx_bookings_owner_email"`
	OwnerName   string     `gorm:"type:varchar(255)"`
	StartDate   time.Time  `gorm:"type:timestamptz;not null"`
	EndDate     time.Time  `gorm:"type:timestamptz;not null"`
	TotalDays   int        `gorm:"not null"`
	TotalCost   float64    `gorm:"type:numeric(14,2);not null"`
	Status      string     `gorm:"type:varchar(20);not null;index:idx_bookings_status"`
	Version     int64      `gorm:"not null;default:1"`
	BookingDate time.Time  `gorm:"type:timestamptz;not null;default:now()"`
	UpdatedAt   *time.Time `gorm:"type:timestamptz;autoUpdateTime:false"`
}

// TableName returns the table name for the GORM model.
func (BookingModel) TableName() string {
	return "bookings"
}

var bookingSortColumns = map[bookingDomain.SortField]string{
	bookingDomain.SortBookingDate: "booking_date",
	bookingDomain.SortStartDate:   "start_date",
	bookingDomain.SortEndDate:     "end_date",
	bookingDomain.SortTotalCost:   "total_cost",
	bookingDomain.SortTotalDays:   "total_days",
	bookingDomain.SortStatus:      "status",
	bookingDomain.SortCarModel:    "car_model",
}

// GormBookingRepository is the GORM-based implementation of BookingRepository.
type GormBookingRepository struct {
	db *gorm.DB
}

// NewGormBookingRepository creates a new GormBookingRepository.
func NewGormBookingRepository(db *gorm.DB) *GormBookingRepository {
	return &GormBookingRepository{db: db}
}

// FindByID retrieves a booking by its unique identifier.
func (r *GormBookingRepository) FindByID(ctx context.Context, id uuid.UUID) (*bookingDomain.Booking, error) {
	var model BookingModel
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.NewNotFoundError("Booking", id.String())
		}
		return nil, fmt.Errorf("failed to find booking by ID: %w", err)
	}
	return toDomainBooking(&model), nil
}

// FindByRenter retrieves all bookings made by a renter.
func (r *GormBookingRepository) FindByRenter(ctx context.Context, renterEmail string, q bookingDomain.ListQuery) ([]*bookingDomain.Booking, error) {
	var models []BookingModel
	if err := r.ordered(r.db.WithContext(ctx), q).
		Where("renter_email = ?", carDomain.NormalizeEmail(renterEmail)).
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to find bookings by renter: %w", err)
	}
	return toDomainBookings(models), nil
}

// FindByCarOwner retrieves all bookings on cars listed by an owner.
func (r *GormBookingRepository) FindByCarOwner(ctx context.Context, ownerEmail string, q bookingDomain.ListQuery) ([]*bookingDomain.Booking, error) {
	var models []BookingModel
	if err := r.ordered(r.db.WithContext(ctx), q).
		Where("owner_email = ?", carDomain.NormalizeEmail(ownerEmail)).
		Find(&models).Error; err != nil {
		return nil, fmt.Errorf("failed to find bookings by car owner: %w", err)
	}
	return toDomainBookings(models), nil
}

// FindActive returns the pending or confirmed booking for the pair, or nil if there is none.
func (r *GormBookingRepository) FindActive(ctx context.Context, carID uuid.UUID, renterEmail string) (*bookingDomain.Booking, error) {
	var model BookingModel
	err := r.db.WithContext(ctx).
		Where("car_id = ? AND renter_email = ? AND status IN ?",
			carID, carDomain.NormalizeEmail(renterEmail), activeStatusValues()).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find active booking: %w", err)
	}
	return toDomainBooking(&model), nil
}

// CountByStatusForOwner returns counts grouped by status for bookings on an owner's cars.
func (r *GormBookingRepository) CountByStatusForOwner(ctx context.Context, ownerEmail string) (map[string]int64, error) {
	type statusCount struct {
		Status string
		Count  int64
	}
	var rows []statusCount
	if err := r.db.WithContext(ctx).
		Model(&BookingModel{}).
		Select("status, COUNT(*) AS count").
		Where("owner_email = ?", carDomain.NormalizeEmail(ownerEmail)).
		Group("status").
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("failed to count bookings by status: %w", err)
	}

	counts := make(map[string]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

// Create inserts the booking and increments the car's counter in one transaction.
func (r *GormBookingRepository) Create(ctx context.Context, bk *bookingDomain.Booking) error {
	model := toBookingModel(bk)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(model).Error; err != nil {
			if isUniqueViolation(err, activeBookingIndex) {
				return bookingDomain.ErrActiveBookingExists
			}
			return fmt.Errorf("failed to create booking: %w", err)
		}
		return incrementBookingCount(tx, bk.CarID())
	})
}

// Update persists changes to an existing booking with optimistic locking.
func (r *GormBookingRepository) Update(ctx context.Context, bk *bookingDomain.Booking) error {
	expectedVersion := bk.Version() - 1

	result := r.db.WithContext(ctx).
		Model(&BookingModel{}).
		Where("id = ? AND version = ?", bk.ID(), expectedVersion).
		Updates(map[string]interface{}{
			"start_date": bk.StartDate(),
			"end_date":   bk.EndDate(),
			"total_days": bk.TotalDays(),
			"total_cost": bk.TotalCost(),
			"status":     string(bk.Status()),
			"version":    bk.Version(),
			"updated_at": bk.UpdatedAt(),
		})

	if result.Error != nil {
		if isUniqueViolation(result.Error, activeBookingIndex) {
			return bookingDomain.ErrActiveBookingExists
		}
		return fmt.Errorf("failed to update booking: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperror.NewConflictError("booking was modified by another transaction")
	}
	return nil
}

// Delete removes the booking and decrements the car's counter in one transaction.
func (r *GormBookingRepository) Delete(ctx context.Context, bk *bookingDomain.Booking) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Where("id = ? AND version = ?", bk.ID(), bk.Version()).Delete(&BookingModel{})
		if result.Error != nil {
			return fmt.Errorf("failed to delete booking: %w", result.Error)
		}
		if result.RowsAffected == 0 {
			return apperror.NewConflictError("booking was modified by another transaction")
		}
		return decrementBookingCount(tx, bk.CarID())
	})
}

func (r *GormBookingRepository) ordered(db *gorm.DB, q bookingDomain.ListQuery) *gorm.DB {
	column, ok := bookingSortColumns[q.Sort]
	if !ok {
		column = bookingSortColumns[bookingDomain.SortBookingDate]
	}
	return db.
		Order(clause.OrderByColumn{Column: clause.Column{Name: column}, Desc: q.Descending}).
		Order("id")
}

func activeStatusValues() []string {
	out := make([]string, len(bookingDomain.ActiveStatuses))
	for i, s := range bookingDomain.ActiveStatuses {
		out[i] = string(s)
	}
	return out
}

// --- Conversion Helpers ---

func toBookingModel(bk *bookingDomain.Booking) *BookingModel {
	car := bk.Car()
	return &BookingModel{
		ID:          bk.ID(),
		CarID:       car.ID,
		CarModel:    car.Model,
		RenterEmail: bk.RenterEmail(),
		RenterName:  bk.RenterName(),
		OwnerEmail:  car.OwnerEmail,
		OwnerName:   car.OwnerName,
		StartDate:   bk.StartDate(),
		EndDate:     bk.EndDate(),
		TotalDays:   bk.TotalDays(),
		TotalCost:   bk.TotalCost(),
		Status:      string(bk.Status()),
		Version:     bk.Version(),
		BookingDate: bk.BookingDate(),
		UpdatedAt:   bk.UpdatedAt(),
	}
}

func toDomainBooking(m *BookingModel) *bookingDomain.Booking {
	return bookingDomain.ReconstructBooking(
		m.ID,
		bookingDomain.CarRef{
			ID:         m.CarID,
			Model:      m.CarModel,
			OwnerEmail: m.OwnerEmail,
			OwnerName:  m.OwnerName,
		},
		m.RenterEmail,
		m.RenterName,
		m.StartDate,
		m.EndDate,
		bookingDomain.Quote{TotalDays: m.TotalDays, TotalCost: m.TotalCost},
		bookingDomain.BookingStatus(m.Status),
		m.Version,
		m.BookingDate,
		m.UpdatedAt,
	)
}

func toDomainBookings(models []BookingModel) []*bookingDomain.Booking {
	bookings := make([]*bookingDomain.Booking, len(models))
	for i := range models {
		bookings[i] = toDomainBooking(&models[i])
	}
	return bookings
}
