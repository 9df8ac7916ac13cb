package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"travelagent/database"
	"travelagent/models"
	"travelagent/services/pdf"
)

// PaymentPending is the payment status of every new booking; payment is
// settled outside this service.
const PaymentPending = "PENDING"

type Store interface {
	CreateBooking(ctx context.Context, b models.BookingRecord) error
	GetBooking(ctx context.Context, id string) (models.BookingRecord, error)
	UpdateBookingStatus(ctx context.Context, id, status string) error
	GetBookingPDF(ctx context.Context, id string) ([]byte, error)
	SaveBookingPDF(ctx context.Context, id string, pdf []byte) error
}

// OfferSource returns offers shown by a recent search.
type OfferSource interface {
	LookupOffer(searchID, leg, offerID string) (models.FlightOffer, bool)
}

type OrderPlacer interface {
	Create(ctx context.Context, offer json.RawMessage, travelers []models.Traveler, contact models.Contact) (Order, error)
	Get(ctx context.Context, orderID string) (map[string]any, error)
	Cancel(ctx context.Context, orderID string) error
}

type CreateRequest struct {
	SearchID  string            `json:"search_id" binding:"required"`
	Leg       string            `json:"leg"`
	OfferID   string            `json:"offer_id" binding:"required"`
	UserID    string            `json:"user_id"`
	Travelers []models.Traveler `json:"travelers" binding:"required,min=1,dive"`
	Contact   models.Contact    `json:"contact" binding:"required"`
}

type Service struct {
	offers OfferSource
	orders OrderPlacer
	store  Store
	now    func() time.Time
	logger *zap.Logger
}

type Option func(*Service)

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func NewService(offers OfferSource, orders OrderPlacer, store Store, opts ...Option) *Service {
	s := &Service{
		offers: offers,
		orders: orders,
		store:  store,
		now:    time.Now,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.Named("booking")
	return s
}

// Create books a flight offer from a recent search and stores the booking.
// If the booking cannot be stored, the upstream order is cancelled again.
func (s *Service) Create(ctx context.Context, req CreateRequest) models.BookingResult {
	if len(req.Travelers) == 0 {
		return models.BookingFailure(models.KindInput, "At least one traveler is required")
	}
	leg := req.Leg
	if leg == "" {
		leg = models.LegDeparture
	}
	if leg != models.LegDeparture && leg != models.LegReturn {
		return models.BookingFailure(models.KindInput, fmt.Sprintf("Unknown flight leg %q", req.Leg))
	}

	offer, ok := s.offers.LookupOffer(req.SearchID, leg, req.OfferID)
	if !ok || len(offer.Raw) == 0 {
		return models.BookingFailure(models.KindNotFound,
			fmt.Sprintf("Flight offer %s is no longer available. Please search again.", req.OfferID))
	}

	order, err := s.orders.Create(ctx, offer.Raw, req.Travelers, req.Contact)
	if err != nil {
		s.logger.Warn("flight order failed", zap.String("offer_id", req.OfferID), zap.Error(err))
		return models.BookingFailure(KindOf(err), "Flight booking failed: "+err.Error())
	}

	rec := models.BookingRecord{
		ID:               uuid.NewString(),
		UserID:           req.UserID,
		OrderID:          order.ID,
		BookingReference: order.Reference,
		Status:           models.BookingConfirmed,
		PaymentStatus:    PaymentPending,
		TotalPrice:       offer.Price.Total,
		Currency:         currencyOf(offer),
		Offer:            offer,
		Passengers:       req.Travelers,
		CreatedAt:        s.now().UTC(),
	}
	if err := s.store.CreateBooking(ctx, rec); err != nil {
		s.logger.Error("failed to store booking", zap.String("order_id", order.ID), zap.Error(err))
		s.compensate(ctx, order.ID)
		return models.BookingFailure(models.KindUnexpected, "Booking could not be saved and the flight order was cancelled")
	}

	s.logger.Info("booking created",
		zap.String("booking_id", rec.ID),
		zap.String("order_id", rec.OrderID),
		zap.Int("passengers", len(rec.Passengers)),
	)
	return models.BookingResult{
		Status:           models.StatusSuccess,
		BookingID:        rec.ID,
		OrderID:          rec.OrderID,
		BookingReference: rec.BookingReference,
		Record:           &rec,
	}
}

func (s *Service) compensate(ctx context.Context, orderID string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	if err := s.orders.Cancel(ctx, orderID); err != nil {
		s.logger.Error("failed to cancel unsaved flight order", zap.String("order_id", orderID), zap.Error(err))
	}
}

func currencyOf(o models.FlightOffer) string {
	if o.Price.Currency != "" {
		return o.Price.Currency
	}
	return "USD"
}

// Status returns the stored booking and, for live bookings, the upstream
// order. An unreachable upstream gives a partial result.
func (s *Service) Status(ctx context.Context, id string) models.BookingResult {
	rec, res, ok := s.load(ctx, id)
	if !ok {
		return res
	}
	res = models.BookingResult{
		Status:           models.StatusSuccess,
		BookingID:        rec.ID,
		OrderID:          rec.OrderID,
		BookingReference: rec.BookingReference,
		Record:           &rec,
	}
	if rec.Status == models.BookingCancelled {
		return res
	}

	order, err := s.orders.Get(ctx, rec.OrderID)
	if err != nil {
		s.logger.Warn("flight order lookup failed", zap.String("order_id", rec.OrderID), zap.Error(err))
		res.Status = models.StatusPartial
		res.Kind = KindOf(err)
		res.Message = "Could not fetch the live order status: " + err.Error()
		return res
	}
	res.OrderStatus = order
	return res
}

// Cancel cancels the upstream order and marks the booking cancelled.
// Cancelling twice is not an error, nor is an order the upstream no
// longer knows.
func (s *Service) Cancel(ctx context.Context, id string) models.BookingResult {
	rec, res, ok := s.load(ctx, id)
	if !ok {
		return res
	}
	if rec.Status != models.BookingCancelled {
		if err := s.orders.Cancel(ctx, rec.OrderID); err != nil && KindOf(err) != models.KindNotFound {
			return models.BookingFailure(KindOf(err), "Cancellation failed: "+err.Error())
		}
		if err := s.store.UpdateBookingStatus(ctx, rec.ID, models.BookingCancelled); err != nil {
			s.logger.Error("failed to mark booking cancelled", zap.String("booking_id", rec.ID), zap.Error(err))
			return models.BookingFailure(models.KindUnexpected, "The order was cancelled but the booking could not be updated")
		}
		// the stored itinerary no longer matches
		if err := s.store.SaveBookingPDF(ctx, rec.ID, nil); err != nil {
			s.logger.Warn("failed to drop stored itinerary", zap.String("booking_id", rec.ID), zap.Error(err))
		}
		rec.Status = models.BookingCancelled
		s.logger.Info("booking cancelled", zap.String("booking_id", rec.ID), zap.String("order_id", rec.OrderID))
	}
	return models.BookingResult{
		Status:           models.StatusSuccess,
		BookingID:        rec.ID,
		OrderID:          rec.OrderID,
		BookingReference: rec.BookingReference,
		Record:           &rec,
	}
}

// PDF returns the itinerary document, rendering and storing it on first use.
func (s *Service) PDF(ctx context.Context, id string) ([]byte, error) {
	doc, err := s.store.GetBookingPDF(ctx, id)
	switch {
	case errors.Is(err, database.ErrNotFound):
		return nil, &Error{Kind: models.KindNotFound, Message: "Booking " + id + " not found"}
	case err != nil:
		return nil, &Error{Kind: models.KindUnexpected, Message: err.Error()}
	case len(doc) > 0:
		return doc, nil
	}

	rec, res, ok := s.load(ctx, id)
	if !ok {
		return nil, &Error{Kind: res.Kind, Message: res.Message}
	}
	doc, err = pdf.Itinerary(rec, s.now())
	if err != nil {
		return nil, &Error{Kind: models.KindUnexpected, Message: err.Error()}
	}
	if err := s.store.SaveBookingPDF(ctx, id, doc); err != nil {
		s.logger.Warn("failed to store itinerary", zap.String("booking_id", id), zap.Error(err))
	}
	return doc, nil
}

// PDFName is the download file name for a booking's itinerary.
func PDFName(id string) string {
	short := id
	if i := strings.IndexByte(short, '-'); i > 0 {
		short = short[:i]
	}
	return "itinerary-" + short + ".pdf"
}

func (s *Service) load(ctx context.Context, id string) (models.BookingRecord, models.BookingResult, bool) {
	rec, err := s.store.GetBooking(ctx, id)
	switch {
	case errors.Is(err, database.ErrNotFound):
		return rec, models.BookingFailure(models.KindNotFound, "Booking "+id+" not found"), false
	case err != nil:
		s.logger.Error("failed to load booking", zap.String("booking_id", id), zap.Error(err))
		return rec, models.BookingFailure(models.KindUnexpected, "Could not load booking "+id), false
	}
	return rec, models.BookingResult{}, true
}
