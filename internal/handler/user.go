package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/marina-reservation/internal/service"
)

func (h *Handler) ListUsers(c echo.Context) error {
	ctx, cancel := h.ctx(c)
	defer cancel()
	list, err := h.Svc.ListUsers(ctx)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"items": list})
}

func (h *Handler) GetUser(c echo.Context) error {
	id, err := pathID(c, "user not found")
	if err != nil {
		return writeError(c, err)
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	u, err := h.Svc.GetUser(ctx, id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, u)
}

// CreateUser handles POST /v1/users.  The password must be confirmed.
func (h *Handler) CreateUser(c echo.Context) error {
	var in service.UserInput
	if err := c.Bind(&in); err != nil {
		return badBody(c)
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	u, err := h.Svc.CreateUser(ctx, in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, u)
}

// UpdateUser handles PUT /v1/users/:id.
func (h *Handler) UpdateUser(c echo.Context) error {
	id, err := pathID(c, "user not found")
	if err != nil {
		return writeError(c, err)
	}
	var in service.UserInput
	if err := c.Bind(&in); err != nil {
		return badBody(c)
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	u, err := h.Svc.UpdateUser(ctx, id, in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, u)
}

func (h *Handler) DeleteUser(c echo.Context) error {
	id, err := pathID(c, "user not found")
	if err != nil {
		return writeError(c, err)
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	if err := h.Svc.DeleteUser(ctx, id); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}
