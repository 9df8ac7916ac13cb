package compiler

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"travelagent/models"
)

func flights(prices ...float64) []models.FlightOffer {
	out := make([]models.FlightOffer, 0, len(prices))
	for i, p := range prices {
		out = append(out, models.FlightOffer{OfferID: string(rune('a' + i)), Price: models.Price{Total: p}})
	}
	return out
}

func ids(offers []models.FlightOffer) []string {
	out := make([]string, 0, len(offers))
	for _, o := range offers {
		out = append(out, o.OfferID)
	}
	return out
}

func TestFilterAndRank(t *testing.T) {
	tests := []struct {
		name     string
		prices   []float64
		band     models.PriceBand
		max      int
		want     []string
		fallback bool
	}{
		{"no band keeps order", []float64{900, 100, 500}, models.PriceBand{}, 5, []string{"a", "b", "c"}, false},
		{"no band caps", []float64{1, 2, 3, 4, 5, 6, 7}, models.PriceBand{}, 0, []string{"a", "b", "c", "d", "e"}, false},
		{"inclusive bounds", []float64{199, 200, 350, 500, 501}, models.PriceBand{Min: models.Float(200), Max: models.Float(500)}, 5, []string{"b", "c", "d"}, false},
		{"open min", []float64{50, 400, 250}, models.PriceBand{Max: models.Float(300)}, 5, []string{"a", "c"}, false},
		{"open max", []float64{50, 400, 250}, models.PriceBand{Min: models.Float(300)}, 5, []string{"b"}, false},
		{"empty match falls back", []float64{900, 800, 700}, models.PriceBand{Max: models.Float(100)}, 2, []string{"a", "b"}, true},
		{"empty input", nil, models.PriceBand{Max: models.Float(100)}, 5, []string{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FilterAndRank(flights(tt.prices...), tt.band, tt.max)
			assert.Equal(t, tt.want, ids(got.Items))
			assert.Equal(t, tt.fallback, got.Fallback)
			if tt.fallback {
				assert.Contains(t, got.Message, "price range")
			} else {
				assert.Empty(t, got.Message)
			}
		})
	}
}

func TestFilterAndRank_NeverLeavesBand(t *testing.T) {
	band := models.PriceBand{Min: models.Float(150), Max: models.Float(450)}
	offers := flights(100, 150, 200, 300, 449.99, 450, 450.01, 1000)
	got := FilterAndRank(offers, band, 10)
	assert.False(t, got.Fallback)
	for _, o := range got.Items {
		assert.True(t, band.Contains(o.TotalPrice()), o.OfferID)
	}
}

func TestFilterAndRank_Hotels(t *testing.T) {
	hotels := []models.HotelOffer{
		{HotelName: "A", Price: models.HotelPrice{Total: 300}},
		{HotelName: "B", Price: models.HotelPrice{Total: 80}},
	}
	got := FilterAndRank(hotels, models.PriceBand{Max: models.Float(100)}, 3)
	assert.Len(t, got.Items, 1)
	assert.Equal(t, "B", got.Items[0].HotelName)
}
