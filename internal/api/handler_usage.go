package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// GetUsageHistory handles GET /api/users/:userId/usage.
func (h *Handler) GetUsageHistory(c *gin.Context) {
	userID, ok := pathID(c, "userId")
	if !ok {
		return
	}
	history, err := h.usage.History(c.Request.Context(), userID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, history)
}

// GetUsageStats handles GET /api/users/:userId/usage/stats.
func (h *Handler) GetUsageStats(c *gin.Context) {
	userID, ok := pathID(c, "userId")
	if !ok {
		return
	}
	stats, err := h.usage.Stats(c.Request.Context(), userID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
