package repository

import (
	"errors"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

const (
	pgUniqueViolation = "23505"

	activeBookingIndex   = "idx_bookings_active_car_renter"
	carRegistrationIndex = "idx_cars_owner_registration"
)

// isUniqueViolation reports whether err is a PostgreSQL unique violation on
// the named index. An empty index matches any unique violation.
func isUniqueViolation(err error, index string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgUniqueViolation {
		return false
	}
	return index == "" || pgErr.ConstraintName == index
}

// likePattern builds a case-insensitive substring pattern with LIKE wildcards escaped.
func likePattern(text string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(text) + "%"
}
