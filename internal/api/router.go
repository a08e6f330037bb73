package api

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"

	"gymqueue-backend/config"
	"gymqueue-backend/internal/mw"
)

// NewRouter creates and configures a new Gin router.
func NewRouter(deps Dependencies, cfg config.ServerConfig, logger *slog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), mw.RequestLogger(logger))

	handler := NewHandler(deps)

	rateLimiter := mw.RateLimiter(rate.Limit(cfg.RateLimitPerSec), cfg.RateLimitBurst)
	caching := mw.Cache(mw.NewCacheStore(cfg.CacheTTL()), cfg.CacheTTL())

	api := r.Group("/api")
	api.Use(rateLimiter)
	{
		api.GET("/equipment", caching, handler.GetEquipmentList)
		api.GET("/equipment/:id", caching, handler.GetEquipment)
		api.GET("/equipment/:id/current", handler.GetCurrentUsage)
		api.GET("/equipment/:id/ws", handler.WatchQueue)

		reservations := api.Group("/reservations")
		reservations.POST("", handler.CreateReservation)
		reservations.DELETE("/:id", handler.CancelReservation)
		reservations.GET("/user/:userId", handler.GetUserReservations)
		reservations.GET("/equipment/:id/queue", handler.GetQueue)
		reservations.GET("/equipment/:id/status", handler.GetQueue)
		reservations.PUT("/equipment/:id/status-event", handler.ReportStatusEvent)

		api.GET("/users/:userId/usage", handler.GetUsageHistory)
		api.GET("/users/:userId/usage/stats", handler.GetUsageStats)
	}

	return r
}
