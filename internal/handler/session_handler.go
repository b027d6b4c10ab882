package handler

import (
	"errors"
	"io"

	"github.com/gin-gonic/gin"

	"github.com/openfleet/tracking-backend-go/internal/models"
	"github.com/openfleet/tracking-backend-go/internal/service"
	"github.com/openfleet/tracking-backend-go/pkg/response"
)

// SessionHandler handles HTTP requests for playback sessions
type SessionHandler struct {
	sessions *service.SessionManager
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(sessions *service.SessionManager) *SessionHandler {
	return &SessionHandler{sessions: sessions}
}

// Create handles POST /api/sessions
func (h *SessionHandler) Create(c *gin.Context) {
	// An empty body is fine; it means today's day shift.
	var opts service.CreateOptions
	if err := c.ShouldBindJSON(&opts); err != nil && !errors.Is(err, io.EOF) {
		response.BadRequest(c, "invalid session options: "+err.Error())
		return
	}

	s, err := h.sessions.Create(c.Request.Context(), opts)
	if err != nil {
		response.InternalError(c, err.Error())
		return
	}
	response.Created(c, s.Snapshot())
}

// Get handles GET /api/sessions/:id
func (h *SessionHandler) Get(c *gin.Context) {
	s, ok := h.sessions.Get(c.Param("id"))
	if !ok {
		response.NotFound(c, "session not found")
		return
	}
	response.Success(c, s.Snapshot())
}

// Delete handles DELETE /api/sessions/:id
func (h *SessionHandler) Delete(c *gin.Context) {
	if !h.sessions.Delete(c.Param("id")) {
		response.NotFound(c, "session not found")
		return
	}
	response.Success(c, gin.H{"deleted": true})
}

// SetWindow handles PUT /api/sessions/:id/window
func (h *SessionHandler) SetWindow(c *gin.Context) {
	s, ok := h.sessions.Get(c.Param("id"))
	if !ok {
		response.NotFound(c, "session not found")
		return
	}

	var req struct {
		Date        string           `json:"date"`
		Shift       models.ShiftMode `json:"shift"`
		CustomStart string           `json:"customStart"`
		CustomEnd   string           `json:"customEnd"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid window request: "+err.Error())
		return
	}
	if req.Shift == "" {
		req.Shift = models.ShiftDay
	}

	s.SetWindow(c.Request.Context(), req.Date, req.Shift, req.CustomStart, req.CustomEnd)
	response.Success(c, s.Snapshot())
}

// Select handles PUT /api/sessions/:id/select
func (h *SessionHandler) Select(c *gin.Context) {
	s, ok := h.sessions.Get(c.Param("id"))
	if !ok {
		response.NotFound(c, "session not found")
		return
	}

	var req struct {
		TruckID string `json:"truckId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "truckId is required")
		return
	}

	if err := s.Select(c.Request.Context(), req.TruckID); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	response.Success(c, s.Snapshot())
}

// Deselect handles DELETE /api/sessions/:id/select
func (h *SessionHandler) Deselect(c *gin.Context) {
	s, ok := h.sessions.Get(c.Param("id"))
	if !ok {
		response.NotFound(c, "session not found")
		return
	}
	s.Deselect()
	response.Success(c, s.Snapshot())
}

// Playback handles POST /api/sessions/:id/playback
func (h *SessionHandler) Playback(c *gin.Context) {
	s, ok := h.sessions.Get(c.Param("id"))
	if !ok {
		response.NotFound(c, "session not found")
		return
	}

	var req struct {
		Action  string `json:"action"`
		N       int    `json:"n"`
		SpeedMs int    `json:"speedMs"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid playback request: "+err.Error())
		return
	}

	state, err := s.Playback(req.Action, req.N, req.SpeedMs)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	response.Success(c, state)
}

// SetClusters handles PUT /api/sessions/:id/clusters
func (h *SessionHandler) SetClusters(c *gin.Context) {
	s, ok := h.sessions.Get(c.Param("id"))
	if !ok {
		response.NotFound(c, "session not found")
		return
	}

	var req struct {
		Ranges []string `json:"ranges"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid cluster request: "+err.Error())
		return
	}

	if err := s.SetClusters(req.Ranges); err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	response.Success(c, s.Snapshot())
}

// SetVisibility handles PUT /api/sessions/:id/visibility
func (h *SessionHandler) SetVisibility(c *gin.Context) {
	s, ok := h.sessions.Get(c.Param("id"))
	if !ok {
		response.NotFound(c, "session not found")
		return
	}

	var req struct {
		TruckID    string `json:"truckId"`
		Visible    *bool  `json:"visible"`
		AutoCenter *bool  `json:"autoCenter"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid visibility request: "+err.Error())
		return
	}

	if req.TruckID != "" && req.Visible != nil {
		s.SetVisibility(req.TruckID, *req.Visible)
	}
	if req.AutoCenter != nil {
		s.SetAutoCenter(*req.AutoCenter)
	}
	response.Success(c, s.Snapshot())
}

// Refresh handles POST /api/sessions/:id/refresh
func (h *SessionHandler) Refresh(c *gin.Context) {
	s, ok := h.sessions.Get(c.Param("id"))
	if !ok {
		response.NotFound(c, "session not found")
		return
	}
	refreshed := s.Refresh(c.Request.Context())
	response.Success(c, gin.H{"refreshed": refreshed})
}
