package flights

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"travelagent/models"
	"travelagent/services/inventory"
	"travelagent/services/inventory/inventorytest"
)

func segment(id, from, to, dep, arr, carrier, number, aircraft string) map[string]any {
	return map[string]any{
		"id":          id,
		"departure":   map[string]any{"iataCode": from, "terminal": "S", "at": dep},
		"arrival":     map[string]any{"iataCode": to, "at": arr},
		"carrierCode": carrier,
		"number":      number,
		"aircraft":    map[string]any{"code": aircraft},
		"operating":   map[string]any{"carrierCode": carrier},
	}
}

func offer(id, total, cabin string, segments ...map[string]any) map[string]any {
	fares := make([]map[string]any, 0, len(segments))
	for _, s := range segments {
		fares = append(fares, map[string]any{"segmentId": s["id"], "cabin": cabin})
	}
	return map[string]any{
		"id": id,
		"price": map[string]any{
			"currency":   "USD",
			"total":      total,
			"grandTotal": total,
			"base":       "200.00",
			"fees":       []map[string]any{{"amount": "0.00", "type": "SUPPLIER"}, {"amount": "5.50", "type": "TICKETING"}},
		},
		"itineraries":      []map[string]any{{"duration": "PT5H", "segments": segments}},
		"travelerPricings": []map[string]any{{"fareDetailsBySegment": fares}},
	}
}

func offersBody(offers ...map[string]any) map[string]any {
	return map[string]any{
		"data": offers,
		"dictionaries": map[string]any{
			"carriers": map[string]string{"DL": "DELTA AIR LINES", "ZZ": "ZED AIR"},
			"aircraft": map[string]string{"321": "AIRBUS A321"},
		},
	}
}

func leg() Params {
	d := models.NewDate(2030, time.December, 12)
	return Params{Origin: "ATL", Destination: "HOU", Date: &d}
}

func newEngine(srv *inventorytest.Server, opts ...Option) *Engine {
	opts = append([]Option{WithBackoff(inventorytest.FastBackoff(3))}, opts...)
	return NewEngine(srv.Session(), opts...)
}

func TestSearch_ValidatesInput(t *testing.T) {
	srv := inventorytest.NewServer(t)
	e := newEngine(srv)

	res := e.Search(context.Background(), Params{Origin: "ATL"})
	assert.Equal(t, models.StatusError, res.Status)
	assert.Equal(t, models.KindInput, res.Kind)
	assert.Contains(t, res.Message, "destination")
	assert.Contains(t, res.Message, "departure date")
	assert.Equal(t, 0, srv.Calls(inventory.FlightOffersPath))
}

func TestSearch_BuildsRequestAndNormalizes(t *testing.T) {
	srv := inventorytest.NewServer(t)
	srv.Handle(inventory.FlightOffersPath, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		var req searchRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "ATL", req.OriginDestinations[0].OriginLocationCode)
		assert.Equal(t, "2030-12-12", req.OriginDestinations[0].DepartureDateTimeRange.Date)
		assert.Len(t, req.Travelers, 2)
		assert.Equal(t, 3, req.SearchCriteria.MaxFlightOffers)
		assert.Equal(t, "BUSINESS", req.SearchCriteria.FlightFilters.CabinRestrictions[0].Cabin)
		assert.Equal(t, "MOST_SEGMENTS", req.SearchCriteria.FlightFilters.CabinRestrictions[0].Coverage)

		inventorytest.WriteJSON(w, http.StatusOK, offersBody(
			offer("1", "355.50", "BUSINESS",
				segment("1", "ATL", "DFW", "2030-12-12T07:00:00", "2030-12-12T08:30:00", "DL", "100", "321"),
				segment("2", "DFW", "HOU", "2030-12-12T10:00:00", "2030-12-12T11:05:00", "DL", "200", "321"),
			),
		))
	})
	srv.Handle(inventory.AirlinesPath, func(w http.ResponseWriter, r *http.Request) {
		inventorytest.WriteJSON(w, http.StatusOK, map[string]any{"data": []map[string]any{
			{"iataCode": "DL", "businessName": "DELTA AIR LINES", "commonName": "DELTA"},
		}})
	})
	srv.Handle(inventory.AircraftPath, func(w http.ResponseWriter, r *http.Request) {
		inventorytest.WriteJSON(w, http.StatusNotFound, inventorytest.ErrorBody("unknown"))
	})

	p := leg()
	p.Cabin, p.Passengers, p.MaxOffers = models.Business, 2, 3
	res := newEngine(srv).Search(context.Background(), p)
	require.True(t, res.OK(), res.Message)
	require.Len(t, res.Offers, 1)

	got := res.Offers[0]
	assert.Equal(t, "1", got.OfferID)
	assert.Equal(t, 355.50, got.Price.Total)
	assert.Equal(t, 200.0, got.Price.Base)
	assert.Equal(t, 5.50, got.Price.Fees)
	assert.Equal(t, 0.0, got.Price.Taxes)
	assert.NotEmpty(t, got.Raw)

	segs := got.Segments()
	require.Len(t, segs, 2)
	assert.Equal(t, "DL100", segs[0].FlightNumber)
	assert.Equal(t, "Delta", segs[0].CarrierName)
	assert.Equal(t, "Airbus A321", segs[0].AircraftName)
	assert.Equal(t, "BUSINESS", segs[0].Cabin)
	assert.Equal(t, "S", segs[0].Departure.Terminal)
	assert.True(t, segs[0].Departure.Time.Before(segs[1].Departure.Time))

	// one lookup per unique code, cached after success
	assert.Equal(t, 1, srv.Calls(inventory.AirlinesPath))
}

func TestSearch_NameCacheSurvivesSearches(t *testing.T) {
	srv := inventorytest.NewServer(t)
	srv.Handle(inventory.FlightOffersPath, func(w http.ResponseWriter, r *http.Request) {
		inventorytest.WriteJSON(w, http.StatusOK, offersBody(
			offer("1", "100.00", "ECONOMY", segment("1", "ATL", "HOU", "2030-12-12T07:00:00", "2030-12-12T09:00:00", "DL", "1", "321")),
		))
	})
	srv.Handle(inventory.AirlinesPath, func(w http.ResponseWriter, r *http.Request) {
		inventorytest.WriteJSON(w, http.StatusOK, map[string]any{"data": []map[string]any{{"iataCode": "DL", "commonName": "Delta"}}})
	})
	srv.Handle(inventory.AircraftPath, func(w http.ResponseWriter, r *http.Request) {
		inventorytest.WriteJSON(w, http.StatusOK, map[string]any{"data": []map[string]any{{"code": "321", "name": "Airbus A321"}}})
	})

	e := newEngine(srv)
	for i := 0; i < 3; i++ {
		require.True(t, e.Search(context.Background(), leg()).OK())
	}
	assert.Equal(t, 1, srv.Calls(inventory.AirlinesPath))
	assert.Equal(t, 1, srv.Calls(inventory.AircraftPath))
}

func TestSearch_MissingNamesAreNotLookedUpAgain(t *testing.T) {
	srv := inventorytest.NewServer(t)
	srv.Handle(inventory.FlightOffersPath, func(w http.ResponseWriter, r *http.Request) {
		inventorytest.WriteJSON(w, http.StatusOK, offersBody(
			offer("1", "100.00", "ECONOMY", segment("1", "ATL", "HOU", "2030-12-12T07:00:00", "2030-12-12T09:00:00", "ZZ", "1", "321")),
			offer("2", "110.00", "ECONOMY", segment("1", "ATL", "HOU", "2030-12-12T10:00:00", "2030-12-12T12:00:00", "ZZ", "2", "321")),
			offer("3", "120.00", "ECONOMY", segment("1", "ATL", "HOU", "2030-12-12T13:00:00", "2030-12-12T15:00:00", "ZZ", "3", "321")),
		))
	})
	srv.Handle(inventory.AirlinesPath, func(w http.ResponseWriter, r *http.Request) {
		inventorytest.WriteJSON(w, http.StatusOK, map[string]any{"data": []any{}})
	})
	// no aircraft handler: the fake answers 404

	e := newEngine(srv)
	for i := 0; i < 2; i++ {
		res := e.Search(context.Background(), leg())
		require.True(t, res.OK())
		require.Len(t, res.Offers, 3)
		seg := res.Offers[0].Segments()[0]
		assert.Equal(t, "Zed Air", seg.CarrierName)
		assert.Equal(t, "Airbus A321", seg.AircraftName)
	}
	assert.Equal(t, 1, srv.Calls(inventory.AirlinesPath))
	assert.Equal(t, 1, srv.Calls(inventory.AircraftPath))
}

func TestSearch_ThrottledNameLookupIsRetried(t *testing.T) {
	srv := inventorytest.NewServer(t)
	srv.Handle(inventory.FlightOffersPath, func(w http.ResponseWriter, r *http.Request) {
		inventorytest.WriteJSON(w, http.StatusOK, offersBody(
			offer("1", "100.00", "ECONOMY", segment("1", "ATL", "HOU", "2030-12-12T07:00:00", "2030-12-12T09:00:00", "DL", "1", "321")),
		))
	})
	srv.Handle(inventory.AirlinesPath, func(w http.ResponseWriter, r *http.Request) {
		inventorytest.WriteJSON(w, http.StatusTooManyRequests, inventorytest.ErrorBody("slow down"))
	})
	srv.Handle(inventory.AircraftPath, func(w http.ResponseWriter, r *http.Request) {
		inventorytest.WriteJSON(w, http.StatusOK, map[string]any{"data": []map[string]any{{"code": "321", "name": "Airbus A321"}}})
	})

	e := newEngine(srv)
	for i := 0; i < 2; i++ {
		require.True(t, e.Search(context.Background(), leg()).OK())
	}
	assert.Equal(t, 2, srv.Calls(inventory.AirlinesPath))
}

func TestSearch_Unauthorized(t *testing.T) {
	srv := inventorytest.NewServer(t)
	srv.Handle(inventory.FlightOffersPath, func(w http.ResponseWriter, r *http.Request) {
		inventorytest.WriteJSON(w, http.StatusUnauthorized, inventorytest.ErrorBody("Access token expired"))
	})

	res := newEngine(srv).Search(context.Background(), leg())
	assert.Equal(t, models.KindAuth, res.Kind)
	assert.Contains(t, res.Message, "authentication")
	assert.Equal(t, 1, srv.Calls(inventory.FlightOffersPath))
	assert.Equal(t, 1, srv.TokenCalls())
}

func TestSearch_UpstreamDetailPassesThrough(t *testing.T) {
	srv := inventorytest.NewServer(t)
	srv.Handle(inventory.FlightOffersPath, func(w http.ResponseWriter, r *http.Request) {
		inventorytest.WriteJSON(w, http.StatusBadRequest, inventorytest.ErrorBody("Date/Time is in the past"))
	})

	res := newEngine(srv).Search(context.Background(), leg())
	assert.Equal(t, models.KindUpstream, res.Kind)
	assert.Equal(t, "Date/Time is in the past", res.Message)
	assert.Equal(t, 1, srv.Calls(inventory.FlightOffersPath))
}

func TestSearch_RateLimitRetries(t *testing.T) {
	tests := []struct {
		name      string
		failFirst int32
		wantOK    bool
		wantCalls int
	}{
		{"recovers", 2, true, 3},
		{"exhausts", 10, false, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := inventorytest.NewServer(t)
			var calls atomic.Int32
			srv.Handle(inventory.FlightOffersPath, func(w http.ResponseWriter, r *http.Request) {
				if calls.Add(1) <= tt.failFirst {
					inventorytest.WriteJSON(w, http.StatusTooManyRequests, inventorytest.ErrorBody("Too many requests"))
					return
				}
				inventorytest.WriteJSON(w, http.StatusOK, offersBody())
			})

			res := newEngine(srv).Search(context.Background(), leg())
			assert.Equal(t, tt.wantOK, res.OK())
			if !tt.wantOK {
				assert.Equal(t, models.KindRateLimit, res.Kind)
			}
			assert.Equal(t, tt.wantCalls, srv.Calls(inventory.FlightOffersPath))
		})
	}
}

func TestSearch_CabinPolicy(t *testing.T) {
	handler := func(w http.ResponseWriter, r *http.Request) {
		inventorytest.WriteJSON(w, http.StatusOK, offersBody(
			offer("1", "100.00", "ECONOMY", segment("1", "ATL", "HOU", "2030-12-12T07:00:00", "2030-12-12T09:00:00", "ZZ", "1", "")),
			offer("2", "900.00", "FIRST", segment("1", "ATL", "HOU", "2030-12-12T07:00:00", "2030-12-12T09:00:00", "ZZ", "2", "")),
		))
	}

	t.Run("filter", func(t *testing.T) {
		srv := inventorytest.NewServer(t)
		srv.Handle(inventory.FlightOffersPath, handler)
		res := newEngine(srv).Search(context.Background(), leg())
		require.True(t, res.OK())
		require.Len(t, res.Offers, 1)
		assert.Equal(t, "1", res.Offers[0].OfferID)
		// airline lookup 404s, so the response dictionary wins
		assert.Equal(t, "Zed Air", res.Offers[0].Segments()[0].CarrierName)
	})

	t.Run("reject", func(t *testing.T) {
		srv := inventorytest.NewServer(t)
		srv.Handle(inventory.FlightOffersPath, handler)
		res := newEngine(srv, WithCabinPolicy(CabinReject)).Search(context.Background(), leg())
		assert.Equal(t, models.StatusError, res.Status)
		assert.Contains(t, res.Message, "ECONOMY")
	})
}

func TestSearch_SkipsInvalidOffers(t *testing.T) {
	srv := inventorytest.NewServer(t)
	srv.Handle(inventory.FlightOffersPath, func(w http.ResponseWriter, r *http.Request) {
		inventorytest.WriteJSON(w, http.StatusOK, offersBody(
			offer("1", "100.00", "ECONOMY",
				segment("1", "ATL", "DFW", "2030-12-12T10:00:00", "2030-12-12T11:00:00", "DL", "1", ""),
				segment("2", "DFW", "HOU", "2030-12-12T07:00:00", "2030-12-12T08:00:00", "DL", "2", ""),
			),
			offer("2", "-5", "ECONOMY", segment("1", "ATL", "HOU", "2030-12-12T07:00:00", "2030-12-12T09:00:00", "DL", "3", "")),
			offer("3", "150.00", "ECONOMY", segment("1", "ATL", "HOU", "2030-12-12T07:00:00", "2030-12-12T09:00:00", "DL", "4", "")),
		))
	})

	res := newEngine(srv).Search(context.Background(), leg())
	require.True(t, res.OK())
	require.Len(t, res.Offers, 1)
	assert.Equal(t, "3", res.Offers[0].OfferID)
	assert.Equal(t, "Delta Air Lines", res.Offers[0].Segments()[0].CarrierName)
}

func TestTitleCase(t *testing.T) {
	assert.Equal(t, "Delta Air Lines", titleCase("DELTA AIR LINES"))
	assert.Equal(t, "KLM Cityhopper", titleCase("KLM Cityhopper"))
	assert.Equal(t, "", titleCase("  "))
	assert.Equal(t, "Égyptair Österreich", titleCase("ÉGYPTAIR ÖSTERREICH"))
}

func TestParseCabinPolicy(t *testing.T) {
	assert.Equal(t, CabinReject, ParseCabinPolicy(" Reject "))
	assert.Equal(t, CabinFilter, ParseCabinPolicy("filter"))
	assert.Equal(t, CabinFilter, ParseCabinPolicy(""))
}
