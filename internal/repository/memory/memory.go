// Package memory provides in-memory car and booking repositories. It backs the
// service and handler tests; the server always runs on the GORM repositories.
// The store enforces the same guarantees as the SQL schema: one active booking
// per car and renter, and a booking counter that moves in the same critical
// section as the booking row.
package memory

import (
	"cmp"
	"context"
	"sort"
	"strings"
	"sync"

	bookingDomain "github.com/autovoyage/service-rental/internal/domain/booking"
	carDomain "github.com/autovoyage/service-rental/internal/domain/car"
	"github.com/autovoyage/service-rental/internal/platform/apperror"
	"github.com/google/uuid"
)

// Store holds cars, their booking counters and bookings.
type Store struct {
	mu       sync.Mutex
	cars     map[uuid.UUID]*carDomain.Car
	counts   map[uuid.UUID]int
	bookings map[uuid.UUID]*bookingDomain.Booking
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{
		cars:     map[uuid.UUID]*carDomain.Car{},
		counts:   map[uuid.UUID]int{},
		bookings: map[uuid.UUID]*bookingDomain.Booking{},
	}
}

// Cars returns a CarRepository backed by s.
func (s *Store) Cars() *CarRepository { return &CarRepository{s: s} }

// Bookings returns a BookingRepository backed by s.
func (s *Store) Bookings() *BookingRepository { return &BookingRepository{s: s} }

// BookingTotal returns the number of stored bookings.
func (s *Store) BookingTotal() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.bookings)
}

// SetBookingCount overwrites a car's counter, e.g. to simulate drift.
func (s *Store) SetBookingCount(carID uuid.UUID, n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts[carID] = n
}

func cloneCar(c *carDomain.Car, count int) *carDomain.Car {
	return carDomain.Reconstruct(c.ID(), c.Details(), c.OwnerEmail(), c.OwnerName(), count, c.Version(), c.DatePosted(), c.UpdatedAt())
}

func cloneBooking(b *bookingDomain.Booking) *bookingDomain.Booking {
	return bookingDomain.ReconstructBooking(b.ID(), b.Car(), b.RenterEmail(), b.RenterName(), b.StartDate(), b.EndDate(),
		b.Quote(), b.Status(), b.Version(), b.BookingDate(), b.UpdatedAt())
}

// CarRepository implements car.CarRepository in memory.
type CarRepository struct{ s *Store }

func (r *CarRepository) FindByID(_ context.Context, id uuid.UUID) (*carDomain.Car, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.cars[id]
	if !ok {
		return nil, apperror.NewNotFoundError("Car", id.String())
	}
	return cloneCar(c, r.s.counts[id]), nil
}

func (r *CarRepository) FindByIDs(_ context.Context, ids []uuid.UUID) (map[uuid.UUID]*carDomain.Car, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := map[uuid.UUID]*carDomain.Car{}
	for _, id := range ids {
		if c, ok := r.s.cars[id]; ok {
			out[id] = cloneCar(c, r.s.counts[id])
		}
	}
	return out, nil
}

func (r *CarRepository) FindByOwnerEmail(_ context.Context, email string) ([]*carDomain.Car, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*carDomain.Car
	for id, c := range r.s.cars {
		if c.IsOwnedBy(email) {
			out = append(out, cloneCar(c, r.s.counts[id]))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DatePosted().After(out[j].DatePosted()) })
	return out, nil
}

// Search matches text against the same fields as the SQL store and orders by
// q.Sort, falling back to the posting date, with the id as tie-breaker.
func (r *CarRepository) Search(_ context.Context, q carDomain.SearchQuery) ([]*carDomain.Car, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	text := strings.ToLower(q.Text)
	var out []*carDomain.Car
	for id, c := range r.s.cars {
		d := c.Details()
		hay := strings.ToLower(strings.Join([]string{d.Model, d.Location, d.Features, d.Description, c.OwnerName()}, " "))
		if text == "" || strings.Contains(hay, text) {
			out = append(out, cloneCar(c, r.s.counts[id]))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if c := compareCars(out[i], out[j], q.Sort); c != 0 {
			if q.Descending {
				return c > 0
			}
			return c < 0
		}
		return out[i].ID().String() < out[j].ID().String()
	})
	return out, nil
}

func compareCars(a, b *carDomain.Car, field carDomain.SortField) int {
	switch field {
	case carDomain.SortDailyRentalPrice:
		return cmp.Compare(a.DailyRentalPrice(), b.DailyRentalPrice())
	case carDomain.SortModel:
		return strings.Compare(a.Model(), b.Model())
	case carDomain.SortBookingCount:
		return cmp.Compare(a.BookingCount(), b.BookingCount())
	default:
		return a.DatePosted().Compare(b.DatePosted())
	}
}

func (r *CarRepository) Save(_ context.Context, c *carDomain.Car) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.cars {
		if existing.IsOwnedBy(c.OwnerEmail()) && existing.VehicleRegistrationNumber() == c.VehicleRegistrationNumber() {
			return apperror.NewConflictError("You already listed a car with this registration number")
		}
	}
	r.s.cars[c.ID()] = cloneCar(c, 0)
	return nil
}

func (r *CarRepository) Update(_ context.Context, c *carDomain.Car) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.cars[c.ID()]; !ok {
		return apperror.NewNotFoundError("Car", c.ID().String())
	}
	r.s.cars[c.ID()] = cloneCar(c, 0)
	return nil
}

func (r *CarRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.cars[id]; !ok {
		return apperror.NewNotFoundError("Car", id.String())
	}
	delete(r.s.cars, id)
	delete(r.s.counts, id)
	return nil
}

// BookingRepository implements booking.BookingRepository in memory.
type BookingRepository struct{ s *Store }

func (r *BookingRepository) FindByID(_ context.Context, id uuid.UUID) (*bookingDomain.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	b, ok := r.s.bookings[id]
	if !ok {
		return nil, apperror.NewNotFoundError("Booking", id.String())
	}
	return cloneBooking(b), nil
}

func (r *BookingRepository) filter(keep func(*bookingDomain.Booking) bool) []*bookingDomain.Booking {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*bookingDomain.Booking
	for _, b := range r.s.bookings {
		if keep(b) {
			out = append(out, cloneBooking(b))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BookingDate().After(out[j].BookingDate()) })
	return out
}

func (r *BookingRepository) FindByRenter(_ context.Context, email string, _ bookingDomain.ListQuery) ([]*bookingDomain.Booking, error) {
	return r.filter(func(b *bookingDomain.Booking) bool { return b.IsRentedBy(email) }), nil
}

func (r *BookingRepository) FindByCarOwner(_ context.Context, email string, _ bookingDomain.ListQuery) ([]*bookingDomain.Booking, error) {
	return r.filter(func(b *bookingDomain.Booking) bool { return b.IsForCarOwnedBy(email) }), nil
}

func (r *BookingRepository) FindActive(_ context.Context, carID uuid.UUID, email string) (*bookingDomain.Booking, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, b := range r.s.bookings {
		if b.CarID() == carID && b.IsRentedBy(email) && b.Status().IsActive() {
			return cloneBooking(b), nil
		}
	}
	return nil, nil
}

func (r *BookingRepository) CountByStatusForOwner(_ context.Context, email string) (map[string]int64, error) {
	counts := map[string]int64{}
	for _, b := range r.filter(func(b *bookingDomain.Booking) bool { return b.IsForCarOwnedBy(email) }) {
		counts[b.Status().String()]++
	}
	return counts, nil
}

func (r *BookingRepository) Create(_ context.Context, b *bookingDomain.Booking) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.bookings {
		if existing.CarID() == b.CarID() && existing.IsRentedBy(b.RenterEmail()) && existing.Status().IsActive() {
			return bookingDomain.ErrActiveBookingExists
		}
	}
	if _, ok := r.s.cars[b.CarID()]; !ok {
		return apperror.NewNotFoundError("Car", b.CarID().String())
	}
	r.s.bookings[b.ID()] = cloneBooking(b)
	r.s.counts[b.CarID()]++
	return nil
}

func (r *BookingRepository) Update(_ context.Context, b *bookingDomain.Booking) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	existing, ok := r.s.bookings[b.ID()]
	if !ok || existing.Version() != b.Version()-1 {
		return apperror.NewConflictError("booking was modified by another transaction")
	}
	r.s.bookings[b.ID()] = cloneBooking(b)
	return nil
}

func (r *BookingRepository) Delete(_ context.Context, b *bookingDomain.Booking) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.bookings[b.ID()]; !ok {
		return apperror.NewNotFoundError("Booking", b.ID().String())
	}
	delete(r.s.bookings, b.ID())
	if n := r.s.counts[b.CarID()]; n > 0 {
		r.s.counts[b.CarID()] = n - 1
	}
	return nil
}
