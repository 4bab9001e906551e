package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/gym-class-booking/internal/config"
	"github.com/iliyamo/gym-class-booking/internal/handler"
	"github.com/iliyamo/gym-class-booking/internal/middleware"
)

// RegisterRoutes registers routes that do not require authentication.
func RegisterRoutes(e *echo.Echo) {
	// Load balancers and monitoring probe this.
	e.GET("/healthz", handler.Health)
}

// RegisterPublic registers the unauthenticated schedule view.  Guests
// browse the timetable with live occupancy before signing up; the
// response cache keeps the occupancy fan-out off the database under
// browse traffic.
func RegisterPublic(e *echo.Echo, b *handler.MemberBookingHandler, cacheCfg config.CacheConfig, rdb *redis.Client) {
	e.GET("/v1/schedule", b.Schedule, middleware.NewRedisCache(cacheCfg, rdb))
	e.GET("/v1/sessions/:id", b.SessionDetail, middleware.NewRedisCache(cacheCfg, rdb))
}

// RegisterAuth registers authentication routes.  Unauthenticated
// operations live under /v1/auth; /v1/me requires a valid token of
// either role.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	// Rotates the refresh token.
	g.POST("/refresh", a.Refresh)
	// New access token without rotating the refresh token.
	g.POST("/refresh-access", a.RefreshAccess)
	g.POST("/logout", a.Logout)

	auth := e.Group("/v1")
	auth.Use(middleware.JWTAuth(jwtSecret))
	auth.Use(middleware.RequireRole("MEMBER", "ADMIN"))
	auth.GET("/me", a.Me)

	// Logout also works outside the auth group with just a refresh
	// token in the body.
	e.POST("/v1/logout", a.Logout)
}
