package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/gym-class-booking/internal/handler"
	"github.com/iliyamo/gym-class-booking/internal/middleware"
)

// RegisterAdmin registers staff endpoints under /v1/admin.  All routes
// require a valid JWT and the ADMIN role.  Admins manage the schedule,
// run the front-desk scanner, track attendance and administer
// memberships and coupons.
func RegisterAdmin(e *echo.Echo, s *handler.AdminSessionHandler, sc *handler.AdminScanHandler, m *handler.AdminMembershipHandler, jwtSecret string) {
	g := e.Group(
		"/v1/admin",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole("ADMIN"),
	)

	g.POST("/sessions", s.CreateSession)
	g.GET("/sessions", s.ListSessions)
	g.PUT("/sessions/:id", s.UpdateSession)
	g.DELETE("/sessions/:id", s.DeleteSession)
	g.GET("/sessions/:id/bookings", s.SessionBookings)
	g.GET("/occupancy", s.Occupancy)
	g.PATCH("/bookings/:id/status", s.SetBookingStatus)

	g.POST("/scan", sc.Scan)

	g.GET("/members/:id/memberships", m.MemberMemberships)
	g.PATCH("/memberships/:id", m.UpdateMembership)
	g.POST("/coupons", m.CreateCoupon)
	g.GET("/coupons", m.ListCoupons)
	g.PATCH("/coupons/:id/active", m.SetCouponActive)
}
