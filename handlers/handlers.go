package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"travelagent/database"
	"travelagent/models"
	"travelagent/services/booking"
	"travelagent/services/inventory"
)

type TripService interface {
	HandleTripRequest(ctx context.Context, prompt string) models.TripResponse
}

type BookingService interface {
	Create(ctx context.Context, req booking.CreateRequest) models.BookingResult
	Status(ctx context.Context, id string) models.BookingResult
	Cancel(ctx context.Context, id string) models.BookingResult
	PDF(ctx context.Context, id string) ([]byte, error)
}

// SearchStore is the read side of the search log plus a liveness check.
type SearchStore interface {
	GetSearch(ctx context.Context, id string) (models.SearchLog, error)
	Ping(ctx context.Context) error
}

// InventoryStatus reports the state of the upstream credential.
type InventoryStatus interface {
	Configured() bool
	State() inventory.State
}

type Handler struct {
	trips     TripService
	bookings  BookingService
	store     SearchStore
	inventory InventoryStatus
	logger    *zap.Logger
}

func New(trips TripService, bookings BookingService, store SearchStore, inv InventoryStatus, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{
		trips:     trips,
		bookings:  bookings,
		store:     store,
		inventory: inv,
		logger:    logger.Named("http"),
	}
}

// Register mounts every route under /api.
func (h *Handler) Register(r gin.IRouter) {
	api := r.Group("/api")
	{
		api.GET("/health", h.Health)
		api.POST("/trip", h.Trip)
		api.GET("/searches/:id", h.Search)
		api.POST("/bookings", h.CreateBooking)
		api.GET("/bookings/:id", h.BookingStatus)
		api.DELETE("/bookings/:id", h.CancelBooking)
		api.GET("/bookings/:id/pdf", h.DownloadPDF)
	}
}

// statusFor maps a failure kind to its HTTP status.
func statusFor(kind models.ErrorKind) int {
	switch kind {
	case models.KindInput:
		return http.StatusBadRequest
	case models.KindNotFound:
		return http.StatusNotFound
	case models.KindRateLimit:
		return http.StatusTooManyRequests
	case models.KindAuth, models.KindUpstream:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

const unexpectedMessage = "An unexpected error occurred. Please try again later."

// publicMessage hides the detail of unexpected failures.
func publicMessage(kind models.ErrorKind, msg string) string {
	if kind == models.KindUnexpected || kind == "" {
		return unexpectedMessage
	}
	return msg
}

func errorJSON(c *gin.Context, kind models.ErrorKind, msg string) {
	c.JSON(statusFor(kind), gin.H{
		"status":  models.StatusError,
		"kind":    kind,
		"message": publicMessage(kind, msg),
	})
}

func (h *Handler) Health(c *gin.Context) {
	dbStatus := "ok"
	if h.store == nil {
		dbStatus = "not initialized"
	} else if err := h.store.Ping(c.Request.Context()); err != nil {
		dbStatus = "error: " + err.Error()
	}

	inv := "not configured"
	if h.inventory != nil && h.inventory.Configured() {
		inv = h.inventory.State().String()
	}

	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"service":   "Travel Agent API",
		"database":  dbStatus,
		"inventory": inv,
	})
}

func (h *Handler) Search(c *gin.Context) {
	id := c.Param("id")
	entry, err := h.store.GetSearch(c.Request.Context(), id)
	if errors.Is(err, database.ErrNotFound) {
		errorJSON(c, models.KindNotFound, "Search "+id+" not found")
		return
	}
	if err != nil {
		h.logger.Error("failed to load search", zap.String("search_id", id), zap.Error(err))
		errorJSON(c, models.KindUnexpected, err.Error())
		return
	}
	c.JSON(http.StatusOK, entry)
}
