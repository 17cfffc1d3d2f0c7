package application

import (
	"fmt"
	"strings"
	"time"

	"github.com/autovoyage/service-rental/internal/platform/apperror"
	"github.com/google/uuid"
)

const dateOnly = "2006-01-02"

// ParseDate accepts a calendar date (YYYY-MM-DD, read as UTC midnight) or an RFC3339 timestamp.
func ParseDate(field, value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}, apperror.NewValidationError(fmt.Sprintf("%s is required", field))
	}
	if t, err := time.Parse(dateOnly, value); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t.UTC(), nil
	}
	return time.Time{}, apperror.NewValidationError(fmt.Sprintf("%s must be YYYY-MM-DD or RFC3339", field))
}

func parsePeriod(start, end string) (time.Time, time.Time, error) {
	startDate, err := ParseDate("startDate", start)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	endDate, err := ParseDate("endDate", end)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if !endDate.After(startDate) {
		return time.Time{}, time.Time{}, apperror.NewValidationError("end date must be after start date")
	}
	return startDate, endDate, nil
}

// ParseID parses a resource identifier, reporting malformed ids as validation errors.
func ParseID(entity, raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, apperror.NewValidationError(fmt.Sprintf("invalid %s id: %s", entity, raw))
	}
	return id, nil
}
