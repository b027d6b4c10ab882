// Package api assembles the HTTP surface.
package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/openfleet/tracking-backend-go/internal/config"
	"github.com/openfleet/tracking-backend-go/internal/handler"
	"github.com/openfleet/tracking-backend-go/internal/middleware"
	"github.com/openfleet/tracking-backend-go/internal/service"
)

// SetupRouter wires every route and middleware
func SetupRouter(cfg *config.Config, svc *service.TrackingService, sessions *service.SessionManager) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.Logger())

	r.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	})

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":   "ok",
			"sessions": sessions.Count(),
		})
	})

	trackingHandler := handler.NewTrackingHandler(svc)
	historyHandler := handler.NewHistoryHandler(svc)
	sessionHandler := handler.NewSessionHandler(sessions)

	api := r.Group("/api")
	api.Use(middleware.RateLimit(300, time.Minute))
	api.Use(middleware.Auth(cfg.JWTSecret))
	{
		api.GET("/tracking/live", trackingHandler.GetLiveTracking)

		trucks := api.Group("/trucks")
		{
			trucks.GET("", trackingHandler.ListTrucks)
			trucks.GET("/:id", trackingHandler.GetTruck)
		}

		history := api.Group("/history")
		{
			history.GET("/trucks/:id", historyHandler.GetTruckHistory)
			history.GET("/trucks/:id/stats", historyHandler.GetTruckStats)
		}

		sess := api.Group("/sessions")
		{
			sess.POST("", sessionHandler.Create)
			sess.GET("/:id", sessionHandler.Get)
			sess.DELETE("/:id", sessionHandler.Delete)
			sess.PUT("/:id/window", sessionHandler.SetWindow)
			sess.PUT("/:id/select", sessionHandler.Select)
			sess.DELETE("/:id/select", sessionHandler.Deselect)
			sess.POST("/:id/playback", sessionHandler.Playback)
			sess.PUT("/:id/clusters", sessionHandler.SetClusters)
			sess.PUT("/:id/visibility", sessionHandler.SetVisibility)
			sess.POST("/:id/refresh", sessionHandler.Refresh)
		}
	}

	return r
}
