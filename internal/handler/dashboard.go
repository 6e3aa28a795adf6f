package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// Dashboard handles GET /v1/dashboard with the occupancy figures.
func (h *Handler) Dashboard(c echo.Context) error {
	ctx, cancel := h.ctx(c)
	defer cancel()
	d, err := h.Svc.Dashboard(ctx)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, d)
}
