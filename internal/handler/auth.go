package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/marina-reservation/internal/model"
	"github.com/iliyamo/marina-reservation/internal/service"
	"github.com/iliyamo/marina-reservation/internal/utils"
)

// ----- DTOs -----

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}
type refreshReq struct {
	RefreshToken string `json:"refresh_token"`
}

type tokenPart struct {
	Token   string    `json:"token"`
	Expires time.Time `json:"expires"`
}
type authResp struct {
	User    model.User `json:"user"`
	Access  tokenPart  `json:"access"`
	Refresh tokenPart  `json:"refresh"`
}

func sessionResp(s service.Session) authResp {
	return authResp{
		User:    s.User,
		Access:  tokenPart{Token: s.Access.Token, Expires: s.Access.Exp},
		Refresh: tokenPart{Token: s.Refresh.Raw, Expires: s.Refresh.Exp}, // raw back to client
	}
}

// Register: create user and return tokens immediately.
func (h *Handler) Register(c echo.Context) error {
	var in service.UserInput
	if err := c.Bind(&in); err != nil {
		return badBody(c)
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	s, err := h.Svc.Register(ctx, in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, sessionResp(s))
}

// Login: verify and return new pair.
func (h *Handler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	s, err := h.Svc.Login(ctx, req.Email, req.Password)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, sessionResp(s))
}

// Refresh: validate by hash, revoke old, issue new.
func (h *Handler) Refresh(c echo.Context) error {
	var req refreshReq
	if err := c.Bind(&req); err != nil {
		return badBody(c)
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	s, err := h.Svc.Refresh(ctx, req.RefreshToken)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, sessionResp(s))
}

// Logout revokes the refresh token in the body, or, when the body has
// none, every refresh token of the bearer of a valid access token.
func (h *Handler) Logout(c echo.Context) error {
	var req refreshReq
	_ = c.Bind(&req) // an empty or malformed body falls back to the bearer token

	ctx, cancel := h.ctx(c)
	defer cancel()
	if raw, ok := strings.CutPrefix(c.Request().Header.Get("Authorization"), "Bearer "); ok {
		if claims, err := utils.ParseAccessToken(h.JWTSecret, raw, h.Svc.Now()); err == nil {
			uid, _ := claims.UserID()
			ctx = service.WithActor(ctx, uid)
		}
	}
	if err := h.Svc.Logout(ctx, req.RefreshToken); err != nil {
		return writeError(c, err)
	}
	return c.NoContent(http.StatusNoContent)
}

// Me returns the authenticated user.
func (h *Handler) Me(c echo.Context) error {
	uid, err := getUserID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized", "message": "unauthorized"})
	}
	ctx, cancel := h.ctx(c)
	defer cancel()
	u, err := h.Svc.GetUser(ctx, uid)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, u)
}
