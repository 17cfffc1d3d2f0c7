package booking

import (
	"math"
	"time"
)

const rentalDay = 24 * time.Hour

// Quote is the billable duration and cost of a rental period.
type Quote struct {
	TotalDays int
	TotalCost float64
}

// Billable reports whether the quote covers at least one day.
func (q Quote) Billable() bool {
	return q.TotalDays > 0
}

// DailyRate back-derives the per-day rate the quote was priced at.
func (q Quote) DailyRate() float64 {
	if q.TotalDays <= 0 {
		return 0
	}
	return q.TotalCost / float64(q.TotalDays)
}

// PricingStrategy defines how rental periods are priced.
type PricingStrategy interface {
	// Quote prices a new booking from the car's current daily rate.
	Quote(start, end time.Time, dailyRate float64) Quote

	// Requote reprices a modified booking at the rate implied by its original quote.
	Requote(start, end time.Time, original Quote) Quote
}

// DailyRatePricingStrategy charges a flat rate per started day.
type DailyRatePricingStrategy struct{}

// NewDailyRatePricingStrategy creates a new DailyRatePricingStrategy.
func NewDailyRatePricingStrategy() *DailyRatePricingStrategy {
	return &DailyRatePricingStrategy{}
}

// RentalDays returns ceil((end - start) / 24h). A partial day counts as a full day.
func RentalDays(start, end time.Time) int {
	return int(math.Ceil(float64(end.Sub(start)) / float64(rentalDay)))
}

// Quote computes days x rate exactly. Periods of zero or negative length are
// reported as a zero quote rather than an error; callers must reject them.
func (s *DailyRatePricingStrategy) Quote(start, end time.Time, dailyRate float64) Quote {
	days := RentalDays(start, end)
	if days <= 0 {
		return Quote{}
	}
	return Quote{TotalDays: days, TotalCost: float64(days) * dailyRate}
}

// Requote rounds to the nearest whole currency unit, since the per-day rate
// is recovered by division and may not be exact.
func (s *DailyRatePricingStrategy) Requote(start, end time.Time, original Quote) Quote {
	days := RentalDays(start, end)
	if days <= 0 {
		return Quote{}
	}
	return Quote{TotalDays: days, TotalCost: math.Round(float64(days) * original.DailyRate())}
}
