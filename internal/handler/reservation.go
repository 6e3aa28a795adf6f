package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/marina-reservation/internal/booking"
)

// ListReservations handles GET /v1/reservations.
func (h *Handler) ListReservations(c echo.Context) error {
	ctx, cancel := h.ctx(c)
	defer cancel()
	list, err := h.Svc.ListReservations(ctx)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": list})
}

// ListCatwayReservations handles GET /v1/catways/:number/reservations.
func (h *Handler) ListCatwayReservations(c echo.Context) error {
	number, err := catwayNumber(c)
	if err != nil {
		return writeError(c, err)
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	list, err := h.Svc.ListCatwayReservations(ctx, number)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": list})
}

// GetReservation handles GET /v1/catways/:number/reservations/:id.
func (h *Handler) GetReservation(c echo.Context) error {
	number, err := catwayNumber(c)
	if err != nil {
		return writeError(c, err)
	}
	id, err := pathID(c, "reservation not found")
	if err != nil {
		return writeError(c, err)
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	r, err := h.Svc.GetReservation(ctx, number, id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, r)
}

// CreateReservation handles POST /v1/catways/:number/reservations.  The
// catway in the path wins over any catway_number in the body.
func (h *Handler) CreateReservation(c echo.Context) error {
	number, err := catwayNumber(c)
	if err != nil {
		return writeError(c, err)
	}
	var in booking.ReservationInput
	if err := c.Bind(&in); err != nil {
		return badBody(c)
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	r, err := h.Svc.CreateReservation(ctx, number, in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, r)
}

// DeleteReservation handles DELETE /v1/catways/:number/reservations/:id.
func (h *Handler) DeleteReservation(c echo.Context) error {
	number, err := catwayNumber(c)
	if err != nil {
		return writeError(c, err)
	}
	id, err := pathID(c, "reservation not found")
	if err != nil {
		return writeError(c, err)
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	if err := h.Svc.DeleteReservation(ctx, number, id); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
