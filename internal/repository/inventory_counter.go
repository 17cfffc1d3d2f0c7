package repository

import (
	"fmt"

	"github.com/autovoyage/service-rental/internal/platform/apperror"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// The car booking counter only moves inside the transaction that inserts or
// deletes the booking row it accounts for.

func incrementBookingCount(tx *gorm.DB, carID uuid.UUID) error {
	result := tx.Model(&CarModel{}).
		Where("id = ?", carID).
		UpdateColumn("booking_count", gorm.Expr("booking_count + 1"))
	if result.Error != nil {
		return fmt.Errorf("failed to increment booking count: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperror.NewNotFoundError("Car", carID.String())
	}
	return nil
}

// decrementBookingCount floors the counter at zero and tolerates a deleted car.
func decrementBookingCount(tx *gorm.DB, carID uuid.UUID) error {
	if err := tx.Model(&CarModel{}).
		Where("id = ?", carID).
		UpdateColumn("booking_count", gorm.Expr("GREATEST(booking_count - 1, 0)")).Error; err != nil {
		return fmt.Errorf("failed to decrement booking count: %w", err)
	}
	return nil
}
