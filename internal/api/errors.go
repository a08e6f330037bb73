package api

import (
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"

	"gymqueue-backend/internal/queue"
	"gymqueue-backend/internal/store"
)

type errorResponse struct {
	Error struct {
		Message string `json:"message"`
	} `json:"error"`
}

func abortWithMessage(c *gin.Context, status int, msg string) {
	var resp errorResponse
	resp.Error.Message = msg
	c.AbortWithStatusJSON(status, resp)
}

// abortWithError maps an error to its status code and keeps the original on the
// gin context for the request logger.
func abortWithError(c *gin.Context, err error) {
	status, msg := statusOf(err)
	_ = c.Error(err)
	abortWithMessage(c, status, msg)
}

func statusOf(err error) (int, string) {
	switch {
	case errors.Is(err, queue.ErrInvalidInput):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, queue.ErrNotFound), store.IsKind(err, store.KindNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, queue.ErrConflict), store.IsKind(err, store.KindConflict):
		return http.StatusConflict, "the queue changed concurrently, retry the request"
	case errors.Is(err, queue.ErrUnavailable), store.IsKind(err, store.KindDBFailure):
		return http.StatusServiceUnavailable, "service temporarily unavailable"
	}
	return http.StatusInternalServerError, "internal server error"
}
