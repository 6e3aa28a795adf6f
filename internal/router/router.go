package router // package router defines how HTTP routes are registered for the API

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/marina-reservation/internal/config"
	"github.com/iliyamo/marina-reservation/internal/handler"
	"github.com/iliyamo/marina-reservation/internal/middleware"
)

// Options carries what the protected groups share: the JWT secret, the
// clock tokens are checked against and the response cache used by
// read-heavy endpoints.
type Options struct {
	JWTSecret  string
	Clock      func() time.Time
	Cache      config.CacheConfig
	CacheStore middleware.ResponseStore
}

// protected returns a /v1 group behind JWT authentication.  Successful
// writes through it purge the response cache.
func protected(e *echo.Echo, o Options) *echo.Group {
	return e.Group("/v1",
		middleware.JWTAuth(o.JWTSecret, o.Clock),
		middleware.InvalidateCache(o.Cache, o.CacheStore),
	)
}

func cached(o Options) echo.MiddlewareFunc {
	return middleware.ResponseCache(o.Cache, o.CacheStore)
}

// RegisterRoutes registers routes that do not require authentication.
// Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo, db handler.Pinger) {
	e.GET("/healthz", handler.Health(db))
}

// RegisterAuth registers authentication routes.  Register, login, refresh
// and logout live under /v1/auth without a session; /v1/me requires one.
func RegisterAuth(e *echo.Echo, h *handler.Handler, o Options) {
	g := e.Group("/v1/auth")
	g.POST("/register", h.Register)
	g.POST("/login", h.Login)
	g.POST("/refresh", h.Refresh) // rotates the refresh token
	// Logout takes a refresh token in the body, or revokes every session
	// of the bearer when the body has none.
	g.POST("/logout", h.Logout)

	auth := e.Group("/v1", middleware.JWTAuth(o.JWTSecret, o.Clock))
	auth.GET("/me", h.Me)
}

// RegisterCatways registers catway and reservation endpoints.
func RegisterCatways(e *echo.Echo, h *handler.Handler, o Options) {
	g := protected(e, o)
	g.GET("/catways", h.ListCatways, cached(o))
	g.POST("/catways", h.CreateCatway)
	g.GET("/catways/:number", h.GetCatway)
	g.PUT("/catways/:number", h.ReplaceCatway)
	g.PATCH("/catways/:number", h.PatchCatwayState)
	g.DELETE("/catways/:number", h.DeleteCatway)

	g.GET("/reservations", h.ListReservations)
	g.GET("/catways/:number/reservations", h.ListCatwayReservations)
	g.POST("/catways/:number/reservations", h.CreateReservation)
	g.GET("/catways/:number/reservations/:id", h.GetReservation)
	g.DELETE("/catways/:number/reservations/:id", h.DeleteReservation)
}

// RegisterUsers registers account management endpoints.
func RegisterUsers(e *echo.Echo, h *handler.Handler, o Options) {
	g := protected(e, o)
	g.GET("/users", h.ListUsers)
	g.POST("/users", h.CreateUser)
	g.GET("/users/:id", h.GetUser)
	g.PUT("/users/:id", h.UpdateUser)
	g.DELETE("/users/:id", h.DeleteUser)
}

// RegisterDashboard registers the dashboard; its response is cached.
func RegisterDashboard(e *echo.Echo, h *handler.Handler, o Options) {
	g := protected(e, o)
	g.GET("/dashboard", h.Dashboard, cached(o))
}

// Register wires every route group.
func Register(e *echo.Echo, h *handler.Handler, db handler.Pinger, o Options) {
	RegisterRoutes(e, db)
	RegisterAuth(e, h, o)
	RegisterCatways(e, h, o)
	RegisterUsers(e, h, o)
	RegisterDashboard(e, h, o)
}
