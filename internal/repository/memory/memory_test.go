package memory

import (
	"context"
	"testing"

	carDomain "github.com/autovoyage/service-rental/internal/domain/car"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func models(cars []*carDomain.Car) []string {
	out := make([]string, len(cars))
	for i, c := range cars {
		out[i] = c.Model()
	}
	return out
}

func TestCarRepository_SearchHonorsSort(t *testing.T) {
	store := NewStore()
	repo := store.Cars()
	ctx := context.Background()

	listings := []struct {
		model string
		rate  float64
		count int
	}{
		{"Honda Civic", 60, 2},
		{"Audi A4", 90, 0},
		{"Kia Rio", 30, 5},
	}
	for _, l := range listings {
		c, err := carDomain.NewCar("owner@x.com", "Olivia", carDomain.Details{
			Model: l.model, DailyRentalPrice: l.rate, VehicleRegistrationNumber: "REG-" + l.model,
		})
		require.NoError(t, err)
		require.NoError(t, repo.Save(ctx, c))
		store.SetBookingCount(c.ID(), l.count)
	}

	tests := []struct {
		name  string
		query carDomain.SearchQuery
		want  []string
	}{
		{"rate ascending", carDomain.SearchQuery{Sort: carDomain.SortDailyRentalPrice}, []string{"Kia Rio", "Honda Civic", "Audi A4"}},
		{"rate descending", carDomain.SearchQuery{Sort: carDomain.SortDailyRentalPrice, Descending: true}, []string{"Audi A4", "Honda Civic", "Kia Rio"}},
		{"model ascending", carDomain.SearchQuery{Sort: carDomain.SortModel}, []string{"Audi A4", "Honda Civic", "Kia Rio"}},
		{"booking count descending", carDomain.SearchQuery{Sort: carDomain.SortBookingCount, Descending: true}, []string{"Kia Rio", "Honda Civic", "Audi A4"}},
		{"text filter", carDomain.SearchQuery{Text: "HONDA", Sort: carDomain.SortModel}, []string{"Honda Civic"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.Search(ctx, tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.want, models(got))
		})
	}
}
