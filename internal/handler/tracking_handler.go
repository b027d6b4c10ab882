package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/openfleet/tracking-backend-go/internal/service"
	"github.com/openfleet/tracking-backend-go/pkg/response"
)

// TrackingHandler handles HTTP requests for the fleet registry and the
// live feed
type TrackingHandler struct {
	svc *service.TrackingService
}

// NewTrackingHandler creates a new tracking handler
func NewTrackingHandler(svc *service.TrackingService) *TrackingHandler {
	return &TrackingHandler{svc: svc}
}

// GetLiveTracking handles GET /api/tracking/live
func (h *TrackingHandler) GetLiveTracking(c *gin.Context) {
	vehicles, err := h.svc.LiveTracking(c.Request.Context())
	if err != nil {
		response.InternalError(c, err.Error())
		return
	}
	response.SuccessWithMeta(c, vehicles, gin.H{"total": len(vehicles)})
}

// ListTrucks handles GET /api/trucks
func (h *TrackingHandler) ListTrucks(c *gin.Context) {
	vehicles, err := h.svc.ListVehicles(c.Request.Context())
	if err != nil {
		response.InternalError(c, err.Error())
		return
	}
	response.SuccessWithMeta(c, vehicles, gin.H{"total": len(vehicles)})
}

// GetTruck handles GET /api/trucks/:id
func (h *TrackingHandler) GetTruck(c *gin.Context) {
	v, err := h.svc.GetVehicle(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.NotFound(c, err.Error())
		return
	}
	response.Success(c, v)
}
