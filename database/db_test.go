package database

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"travelagent/models"
)

func newMock(t *testing.T) (*Store, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return NewStore(db, nil), mock
}

func booking() models.BookingRecord {
	offer, _ := models.NewFlightOffer("1", models.Price{Total: 420.5, Currency: "USD"}, []models.Itinerary{{
		Duration: "PT3H",
		Segments: []models.Segment{{CarrierCode: "DL", FlightNumber: "DL100"}},
	}})
	offer.Raw = json.RawMessage(`{"id":"1","type":"flight-offer"}`)
	return models.BookingRecord{
		ID:               "b-1",
		OrderID:          "eJzTd9f3",
		BookingReference: "QWERTY",
		Status:           models.BookingConfirmed,
		PaymentStatus:    "PENDING",
		TotalPrice:       420.5,
		Currency:         "USD",
		Offer:            offer,
		Passengers: []models.Traveler{
			{ID: "1", FirstName: "Ada", LastName: "Lovelace", DateOfBirth: "1990-12-10"},
			{ID: "2", FirstName: "Alan", LastName: "Turing", DateOfBirth: "1988-06-23"},
		},
		CreatedAt: time.Date(2024, 11, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestStore_Migrate(t *testing.T) {
	s, mock := newMock(t)
	for range migrations {
		mock.ExpectExec("CREATE").WillReturnResult(sqlmock.NewResult(0, 0))
	}
	require.NoError(t, s.Migrate(context.Background()))
}

func TestStore_MigrateFails(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS searches").WillReturnError(errors.New("permission denied"))

	err := s.Migrate(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "permission denied")
}

func TestStore_WaitReady(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	mock.ExpectPing()

	s := NewStore(db, nil)
	require.NoError(t, s.waitReady(context.Background(), 3, time.Millisecond))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestStore_SaveSearch(t *testing.T) {
	s, mock := newMock(t)
	q := models.NewTripQuery()
	q.OriginName, q.DestinationName = "Atlanta", "Houston"
	created := time.Date(2024, 11, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectExec("INSERT INTO searches").
		WithArgs("s-1", "atl to hou", "Atlanta", "Houston", "ATL", "HOU",
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg(),
			1, "success", 4, sqlmock.AnyArg(), created).
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := s.SaveSearch(context.Background(), models.SearchLog{
		ID: "s-1", Prompt: "atl to hou", Query: q, Origin: "ATL", Destination: "HOU",
		Status: models.StatusSuccess, OfferCount: 4, CreatedAt: created,
	})
	require.NoError(t, err)
}

func TestStore_GetSearch(t *testing.T) {
	s, mock := newMock(t)
	created := time.Date(2024, 11, 1, 10, 0, 0, 0, time.UTC)
	mock.ExpectQuery("FROM searches WHERE id").WithArgs("s-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "prompt", "origin_code", "destination_code", "status", "offer_count", "query_json", "created_at"}).
			AddRow("s-1", "atl to hou", "ATL", "HOU", "partial", 2, `{"origin":"Atlanta","trip_type":"one-way","cabin_class":"ECONOMY","passenger_count":1,"hotel_requested":false}`, created))

	l, err := s.GetSearch(context.Background(), "s-1")
	require.NoError(t, err)
	assert.Equal(t, models.StatusPartial, l.Status)
	assert.Equal(t, "Atlanta", l.Query.OriginName)
	assert.Equal(t, "HOU", l.Destination)

	mock.ExpectQuery("FROM searches WHERE id").WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	_, err = s.GetSearch(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_CreateBooking(t *testing.T) {
	s, mock := newMock(t)
	b := booking()

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO bookings").
		WithArgs("b-1", "", "eJzTd9f3", "QWERTY", "CONFIRMED", "PENDING", 420.5, "USD", sqlmock.AnyArg(), b.CreatedAt).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO booking_items").
		WithArgs(sqlmock.AnyArg(), "b-1", "flight", "1", 420.5, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO passengers").
		WithArgs("1", "b-1", "Ada", "Lovelace", "1990-12-10", "", "", "", "", "").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO passengers").
		WithArgs("2", "b-1", "Alan", "Turing", "1988-06-23", "", "", "", "", "").
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	require.NoError(t, s.CreateBooking(context.Background(), b))
}

func TestStore_CreateBookingRollsBack(t *testing.T) {
	s, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO bookings").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO booking_items").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec("INSERT INTO passengers").WillReturnError(errors.New("null value in column"))
	mock.ExpectRollback()

	err := s.CreateBooking(context.Background(), booking())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert passenger")
}

func TestStore_GetBooking(t *testing.T) {
	s, mock := newMock(t)
	b := booking()
	stored, err := json.Marshal(storedOffer{Offer: b.Offer, Raw: b.Offer.Raw})
	require.NoError(t, err)

	mock.ExpectQuery("FROM bookings WHERE id").WithArgs("b-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "user_id", "order_id", "booking_reference", "status",
			"payment_status", "total_price", "currency", "offer_json", "created_at"}).
			AddRow("b-1", nil, "eJzTd9f3", "QWERTY", "CONFIRMED", "PENDING", 420.5, "USD", string(stored), b.CreatedAt))
	mock.ExpectQuery("FROM passengers WHERE booking_id").WithArgs("b-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "first_name", "last_name", "date_of_birth", "gender",
			"email", "phone", "passport_number", "nationality"}).
			AddRow("1", "Ada", "Lovelace", "1990-12-10", nil, "ada@example.com", nil, nil, nil))

	got, err := s.GetBooking(context.Background(), "b-1")
	require.NoError(t, err)
	assert.Equal(t, "QWERTY", got.BookingReference)
	assert.Equal(t, "1", got.Offer.OfferID)
	assert.JSONEq(t, string(b.Offer.Raw), string(got.Offer.Raw))
	require.Len(t, got.Passengers, 1)
	assert.Equal(t, "ada@example.com", got.Passengers[0].Email)
}

func TestStore_GetBookingNotFound(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectQuery("FROM bookings WHERE id").WithArgs("nope").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := s.GetBooking(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_UpdateBookingStatus(t *testing.T) {
	s, mock := newMock(t)
	mock.ExpectExec("UPDATE bookings SET status").WithArgs("CANCELLED", "b-1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE bookings SET status").WithArgs("CANCELLED", "b-2").WillReturnResult(sqlmock.NewResult(0, 0))

	ctx := context.Background()
	assert.NoError(t, s.UpdateBookingStatus(ctx, "b-1", models.BookingCancelled))
	assert.ErrorIs(t, s.UpdateBookingStatus(ctx, "b-2", models.BookingCancelled), ErrNotFound)
}

func TestStore_BookingPDF(t *testing.T) {
	s, mock := newMock(t)
	pdf := []byte("%PDF-1.3")
	mock.ExpectExec("UPDATE bookings SET pdf_data").WithArgs(pdf, "b-1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("SELECT pdf_data FROM bookings").WithArgs("b-1").
		WillReturnRows(sqlmock.NewRows([]string{"pdf_data"}).AddRow(pdf))

	ctx := context.Background()
	require.NoError(t, s.SaveBookingPDF(ctx, "b-1", pdf))
	got, err := s.GetBookingPDF(ctx, "b-1")
	require.NoError(t, err)
	assert.Equal(t, pdf, got)
}
