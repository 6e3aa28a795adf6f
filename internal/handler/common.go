package handler // handler defines http handlers

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog/log"

	"github.com/iliyamo/marina-reservation/internal/booking"
	"github.com/iliyamo/marina-reservation/internal/service"
)

// Handler exposes the marina service over HTTP.
type Handler struct {
	Svc       *service.Service
	JWTSecret string        // used by Logout to read an optional bearer token
	Timeout   time.Duration // deadline for the service call of one request
}

// New constructs a Handler and panics if the service is nil.
func New(svc *service.Service, jwtSecret string, timeout time.Duration) *Handler {
	if svc == nil {
		panic("nil service passed to handler.New")
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Handler{Svc: svc, JWTSecret: jwtSecret, Timeout: timeout}
}

func (h *Handler) ctx(c echo.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(c.Request().Context(), h.Timeout)
}

// getUserID extracts the user_id set by the JWT middleware.
func getUserID(c echo.Context) (uint64, error) {
	if v, ok := c.Get("user_id").(uint64); ok && v != 0 {
		return v, nil
	}
	return 0, errors.New("invalid user_id in context")
}

// statusFor maps an error kind to its HTTP status.
func statusFor(k booking.Kind) int {
	switch k {
	case booking.MissingFields, booking.InvalidDate, booking.InvalidRange, booking.CheckInInPast,
		booking.EmptyState, booking.InvalidCatway, booking.InvalidUser:
		return http.StatusBadRequest
	case booking.NotFound:
		return http.StatusNotFound
	case booking.OverlapConflict, booking.DuplicateNumber, booking.HasActiveReservations,
		booking.ConflictError, booking.DuplicateEmail:
		return http.StatusConflict
	case booking.Unauthorized:
		return http.StatusUnauthorized
	case booking.StoreUnavailable:
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// writeError renders err as {"error": code, "message": text}.  Errors
// without a kind are logged and reported as internal errors.
func writeError(c echo.Context, err error) error {
	var be *booking.Error
	if errors.As(err, &be) {
		if be.Kind == booking.StoreUnavailable {
			c.Response().Header().Set("Retry-After", "1")
		}
		return c.JSON(statusFor(be.Kind), echo.Map{"error": string(be.Kind), "message": be.Message})
	}
	log.Error().Err(err).Str("method", c.Request().Method).Str("path", c.Path()).Msg("request failed")
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal", "message": "internal server error"})
}

func badBody(c echo.Context) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid_body", "message": "invalid request body"})
}

// catwayNumber reads the :number path parameter.
func catwayNumber(c echo.Context) (int, error) {
	n, err := strconv.Atoi(c.Param("number"))
	if err != nil || n <= 0 {
		return 0, booking.Fail(booking.InvalidCatway, "catway number must be a positive integer")
	}
	return n, nil
}

// pathID reads the :id path parameter.  Malformed ids address nothing.
func pathID(c echo.Context, notFound string) (uint64, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, booking.Fail(booking.NotFound, notFound)
	}
	return id, nil
}
