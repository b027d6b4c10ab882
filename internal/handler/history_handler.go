package handler

import (
	"fmt"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/openfleet/tracking-backend-go/internal/models"
	"github.com/openfleet/tracking-backend-go/internal/service"
	"github.com/openfleet/tracking-backend-go/internal/spatial"
	"github.com/openfleet/tracking-backend-go/internal/timewindow"
	"github.com/openfleet/tracking-backend-go/pkg/response"
)

// HistoryHandler handles HTTP requests for route history
type HistoryHandler struct {
	svc *service.TrackingService
}

// NewHistoryHandler creates a new history handler
func NewHistoryHandler(svc *service.TrackingService) *HistoryHandler {
	return &HistoryHandler{svc: svc}
}

// GetTruckHistory handles GET /api/history/trucks/:id
func (h *HistoryHandler) GetTruckHistory(c *gin.Context) {
	window, err := parseWindow(c)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	route := h.svc.FetchRoute(c.Request.Context(), c.Param("id"), window)
	cls := h.svc.ClassifyDeletion(c.Request.Context(), c.Param("id"), window)

	points := make([]models.LatLng, route.Len())
	for i, p := range route.Points {
		points[i] = p.Location
	}
	response.SuccessWithMeta(c, route.Points, gin.H{
		"total":      route.Len(),
		"source":     route.Source,
		"window":     window,
		"distanceKm": spatial.PolylineLengthKm(points),
		"deletion":   cls,
	})
}

// GetTruckStats handles GET /api/history/trucks/:id/stats
func (h *HistoryHandler) GetTruckStats(c *gin.Context) {
	window, err := parseWindow(c)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	stats, err := h.svc.TireStats(c.Request.Context(), c.Param("id"), window)
	if err != nil {
		response.InternalError(c, err.Error())
		return
	}
	response.SuccessWithMeta(c, stats, gin.H{"window": window, "tires": len(stats)})
}

// parseWindow builds the query window from either explicit RFC3339
// bounds or a date/shift pair. With nothing given it falls back to
// today's day shift.
func parseWindow(c *gin.Context) (models.TimeWindow, error) {
	startStr := c.Query("start_date")
	endStr := c.Query("end_date")
	if startStr == "" && endStr == "" {
		shift := models.ShiftMode(c.DefaultQuery("shift", string(models.ShiftDay)))
		return timewindow.Resolve(c.Query("date"), shift, c.Query("start_time"), c.Query("end_time")), nil
	}

	start, err := time.Parse(time.RFC3339, startStr)
	if err != nil {
		return models.TimeWindow{}, fmt.Errorf("invalid start_date: %w", err)
	}
	end, err := time.Parse(time.RFC3339, endStr)
	if err != nil {
		return models.TimeWindow{}, fmt.Errorf("invalid end_date: %w", err)
	}
	if !end.After(start) {
		return models.TimeWindow{}, fmt.Errorf("end_date must be after start_date")
	}
	return models.TimeWindow{Start: start, End: end}, nil
}
