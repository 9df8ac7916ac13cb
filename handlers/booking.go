package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"travelagent/models"
	"travelagent/services/booking"
)

func (h *Handler) CreateBooking(c *gin.Context) {
	var req booking.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		errorJSON(c, models.KindInput, "Invalid request: "+err.Error())
		return
	}
	h.writeBooking(c, h.bookings.Create(c.Request.Context(), req), http.StatusCreated)
}

func (h *Handler) BookingStatus(c *gin.Context) {
	h.writeBooking(c, h.bookings.Status(c.Request.Context(), c.Param("id")), http.StatusOK)
}

func (h *Handler) CancelBooking(c *gin.Context) {
	h.writeBooking(c, h.bookings.Cancel(c.Request.Context(), c.Param("id")), http.StatusOK)
}

func (h *Handler) writeBooking(c *gin.Context, res models.BookingResult, okStatus int) {
	if res.Status == models.StatusError {
		if res.Kind == models.KindUnexpected {
			h.logger.Error("booking request failed", zap.String("path", c.FullPath()), zap.String("message", res.Message))
		}
		res.Message = publicMessage(res.Kind, res.Message)
		c.JSON(statusFor(res.Kind), res)
		return
	}
	c.JSON(okStatus, res)
}

func (h *Handler) DownloadPDF(c *gin.Context) {
	id := c.Param("id")
	doc, err := h.bookings.PDF(c.Request.Context(), id)
	if err != nil {
		kind := booking.KindOf(err)
		if kind == models.KindUnexpected {
			h.logger.Error("failed to produce itinerary", zap.String("booking_id", id), zap.Error(err))
		}
		errorJSON(c, kind, err.Error())
		return
	}

	c.Header("Content-Disposition", "attachment; filename="+booking.PDFName(id))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, "application/pdf", doc)
}
