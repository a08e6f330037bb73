package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"gymqueue-backend/internal/queue"
	"gymqueue-backend/internal/store"
	"gymqueue-backend/internal/usage"
	"gymqueue-backend/internal/ws"
)

// Notifier is told which equipment changed so live screens refresh.
type Notifier interface {
	Dispatch(equipmentID int64)
}

// Dependencies are the services the HTTP surface is built on.
type Dependencies struct {
	Store    store.Store
	Queue    *queue.Service
	Usage    *usage.Service
	Hub      *ws.Hub
	Notifier Notifier
}

// Handler holds shared dependencies for API handlers.
type Handler struct {
	store    store.Store
	queue    *queue.Service
	usage    *usage.Service
	hub      *ws.Hub
	notifier Notifier
}

func NewHandler(deps Dependencies) *Handler {
	return &Handler{
		store:    deps.Store,
		queue:    deps.Queue,
		usage:    deps.Usage,
		hub:      deps.Hub,
		notifier: deps.Notifier,
	}
}

func (h *Handler) notify(equipmentID int64) {
	if h.notifier != nil {
		h.notifier.Dispatch(equipmentID)
	}
}

// pathID parses a positive integer path parameter, answering 400 when it is not one.
func pathID(c *gin.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		abortWithMessage(c, http.StatusBadRequest, "invalid "+name)
		return 0, false
	}
	return id, true
}
