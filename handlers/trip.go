package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"travelagent/models"
)

type TripRequest struct {
	Prompt string `json:"prompt" binding:"required"`
}

// Trip answers a free-text travel request. Partial results are a 200; a
// request that produced nothing usable is mapped to its failure status.
func (h *Handler) Trip(c *gin.Context) {
	var req TripRequest
	if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Prompt) == "" {
		c.JSON(http.StatusBadRequest, models.Fail(models.KindInput, "A non-empty prompt is required"))
		return
	}

	resp := h.trips.HandleTripRequest(c.Request.Context(), req.Prompt)
	for i, e := range resp.Errors {
		if e.Kind == models.KindUnexpected {
			h.logger.Error("trip leg failed", zap.String("search_id", resp.SearchID),
				zap.String("leg", e.Leg), zap.String("message", e.Message))
			resp.Errors[i].Message = unexpectedMessage
		}
	}
	if resp.Status != models.StatusError {
		c.JSON(http.StatusOK, resp)
		return
	}

	if resp.Kind == models.KindUnexpected {
		h.logger.Error("trip request failed", zap.String("search_id", resp.SearchID), zap.String("message", resp.Message))
	}
	resp.Message = publicMessage(resp.Kind, resp.Message)
	c.JSON(statusFor(resp.Kind), resp)
}
