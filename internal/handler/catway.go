package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/marina-reservation/internal/booking"
)

// ListCatways handles GET /v1/catways.
func (h *Handler) ListCatways(c echo.Context) error {
	ctx, cancel := h.ctx(c)
	defer cancel()
	list, err := h.Svc.ListCatways(ctx)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": list})
}

// GetCatway handles GET /v1/catways/:number and includes the catway's
// reservations.
func (h *Handler) GetCatway(c echo.Context) error {
	number, err := catwayNumber(c)
	if err != nil {
		return writeError(c, err)
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	d, err := h.Svc.GetCatway(ctx, number)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, d)
}

// CreateCatway handles POST /v1/catways.
func (h *Handler) CreateCatway(c echo.Context) error {
	var in booking.CatwayInput
	if err := c.Bind(&in); err != nil {
		return badBody(c)
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	cw, err := h.Svc.CreateCatway(ctx, in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, cw)
}

// ReplaceCatway handles PUT /v1/catways/:number.  Number, type and state
// are all replaced.
func (h *Handler) ReplaceCatway(c echo.Context) error {
	number, err := catwayNumber(c)
	if err != nil {
		return writeError(c, err)
	}
	var in booking.CatwayInput
	if err := c.Bind(&in); err != nil {
		return badBody(c)
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	cw, err := h.Svc.ReplaceCatway(ctx, number, in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, cw)
}

// PatchCatwayState handles PATCH /v1/catways/:number; only the state
// can change this way.
func (h *Handler) PatchCatwayState(c echo.Context) error {
	number, err := catwayNumber(c)
	if err != nil {
		return writeError(c, err)
	}
	var body struct {
		CatwayState string `json:"catway_state"`
	}
	if err := c.Bind(&body); err != nil {
		return badBody(c)
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	cw, err := h.Svc.ChangeCatwayState(ctx, number, body.CatwayState)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, cw)
}

// DeleteCatway handles DELETE /v1/catways/:number.  It answers 409 while
// the catway has reservations that have not ended.
func (h *Handler) DeleteCatway(c echo.Context) error {
	number, err := catwayNumber(c)
	if err != nil {
		return writeError(c, err)
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	removed, err := h.Svc.DeleteCatway(ctx, number)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"catway_number": number, "removed_reservations": removed})
}
