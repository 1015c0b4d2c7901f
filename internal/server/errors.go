package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cpuguy83/agenda/internal/attendance"
	"github.com/cpuguy83/agenda/internal/backend"
	"github.com/cpuguy83/agenda/internal/filter"
)

var errBadRequest = errors.New("bad request")

// statusFor maps a domain error to an HTTP status code.
func statusFor(err error) int {
	switch {
	case errors.Is(err, errBadRequest),
		errors.Is(err, backend.ErrInvalidInput),
		errors.Is(err, attendance.ErrIllegalTransition),
		errors.Is(err, attendance.ErrSameStatus),
		errors.Is(err, filter.ErrEmptySelection):
		return http.StatusBadRequest
	case errors.Is(err, backend.ErrNotFound), errors.Is(err, attendance.ErrUnknownEvent):
		return http.StatusNotFound
	case errors.Is(err, backend.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, backend.ErrConflict),
		errors.Is(err, attendance.ErrInFlight),
		errors.Is(err, attendance.ErrCancelled):
		return http.StatusConflict
	default:
		return http.StatusBadGateway
	}
}

func writeError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(statusFor(err), gin.H{"error": err.Error()})
}
