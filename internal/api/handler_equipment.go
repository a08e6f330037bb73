package api

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"gymqueue-backend/internal/store"
)

// GetEquipmentList handles GET /api/equipment?gym=&type=.
func (h *Handler) GetEquipmentList(c *gin.Context) {
	equipment, err := h.store.ListEquipment(c.Request.Context(), store.EquipmentFilter{
		GymName: c.Query("gym"),
		Type:    c.Query("type"),
	})
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, equipment)
}

// GetEquipment handles GET /api/equipment/:id.
func (h *Handler) GetEquipment(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	e, err := h.store.FindEquipment(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	if !e.IsActive {
		abortWithMessage(c, http.StatusNotFound, "equipment is not active")
		return
	}
	c.JSON(http.StatusOK, e)
}

// GetCurrentUsage handles GET /api/equipment/:id/current. The body is null when the equipment is idle.
func (h *Handler) GetCurrentUsage(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	cur, err := h.usage.Current(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, cur)
}

// WatchQueue handles GET /api/equipment/:id/ws. The first message is the current snapshot.
func (h *Handler) WatchQueue(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	snap, err := h.queue.GetQueue(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	initial, err := json.Marshal(snap)
	if err != nil {
		abortWithError(c, err)
		return
	}
	h.hub.Serve(c, id, initial)
}
