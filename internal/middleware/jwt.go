package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/marina-reservation/internal/service"
	"github.com/iliyamo/marina-reservation/internal/utils"
)

// JWTAuth returns an Echo middleware that validates a Bearer access token and
// stores the user id (uint64) and email in the Echo context under "user_id"
// and "email".  The user id is also recorded on the request context so the
// service layer can attribute domain events.  Expiry is checked against
// clock, or time.Now when clock is nil.
func JWTAuth(secret string, clock func() time.Time) echo.MiddlewareFunc {
	if clock == nil {
		clock = time.Now
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized", "message": "missing bearer token"})
			}
			raw := strings.TrimPrefix(auth, "Bearer ")

			claims, err := utils.ParseAccessToken(secret, raw, clock())
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized", "message": "invalid token"})
			}
			uid, _ := claims.UserID() // validated by ParseAccessToken

			c.Set("user_id", uid)
			c.Set("email", claims.Email)
			c.SetRequest(c.Request().WithContext(service.WithActor(c.Request().Context(), uid)))
			return next(c)
		}
	}
}
