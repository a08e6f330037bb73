package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"gymqueue-backend/internal/model"
	"gymqueue-backend/internal/queue"
)

type createReservationRequest struct {
	UserID         int64  `json:"userId"`
	EquipmentID    int64  `json:"equipmentId"`
	DesiredMinutes int    `json:"desiredMinutes"`
	LatePolicy     string `json:"latePolicy"`
}

type statusEventRequest struct {
	EventType string `json:"eventType" binding:"required"`
}

// CreateReservation handles POST /api/reservations.
func (h *Handler) CreateReservation(c *gin.Context) {
	var req createReservationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithMessage(c, http.StatusBadRequest, "invalid request")
		return
	}
	policy, err := model.ParseLatePolicy(req.LatePolicy)
	if err != nil {
		abortWithMessage(c, http.StatusBadRequest, err.Error())
		return
	}

	r, err := h.queue.CreateReservation(c.Request.Context(), req.UserID, req.EquipmentID, req.DesiredMinutes, policy)
	if err != nil {
		abortWithError(c, err)
		return
	}
	h.notify(r.EquipmentID)
	c.JSON(http.StatusCreated, r)
}

// ReportStatusEvent handles PUT /api/reservations/equipment/:id/status-event.
func (h *Handler) ReportStatusEvent(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req statusEventRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithMessage(c, http.StatusBadRequest, "invalid request")
		return
	}
	eventType, err := queue.ParseEventType(req.EventType)
	if err != nil {
		abortWithMessage(c, http.StatusBadRequest, err.Error())
		return
	}

	snap, err := h.queue.ReportEvent(c.Request.Context(), id, eventType)
	if err != nil {
		abortWithError(c, err)
		return
	}
	h.notify(id)
	c.JSON(http.StatusOK, snap)
}

// GetQueue handles GET /api/reservations/equipment/:id/queue and .../status.
func (h *Handler) GetQueue(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	snap, err := h.queue.GetQueue(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, snap)
}

// GetUserReservations handles GET /api/reservations/user/:userId.
func (h *Handler) GetUserReservations(c *gin.Context) {
	userID, ok := pathID(c, "userId")
	if !ok {
		return
	}
	reservations, err := h.queue.GetUserActiveReservations(c.Request.Context(), userID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, reservations)
}

// CancelReservation handles DELETE /api/reservations/:id.
func (h *Handler) CancelReservation(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	snap, err := h.queue.CancelReservation(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	h.notify(snap.EquipmentID)
	c.Status(http.StatusNoContent)
}
