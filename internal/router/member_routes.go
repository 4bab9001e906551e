package router

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/gym-class-booking/internal/handler"
	"github.com/iliyamo/gym-class-booking/internal/middleware"
)

// RegisterMember registers member-scoped endpoints under /v1.  All
// routes require a valid JWT and the MEMBER role.  Members book and
// cancel classes, mint their own QR action codes, track reward progress,
// claim rewards and purchase memberships.
func RegisterMember(e *echo.Echo, b *handler.MemberBookingHandler, qr *handler.MemberQRHandler, co *handler.MemberCheckoutHandler, jwtSecret string) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole("MEMBER"),
	)

	g.POST("/sessions/:id/bookings", b.CreateBooking)
	g.DELETE("/bookings/:id", b.CancelBooking)
	g.GET("/my-bookings", b.MyBookings)

	// QR tokens: :action is entry, exit or reward.
	g.GET("/qr/:action", qr.IssueToken)
	g.GET("/my-checkins", qr.MyCheckIns)
	g.GET("/rewards/progress", qr.Progress)
	g.POST("/rewards/claim", qr.ClaimReward)

	g.POST("/memberships/checkout", co.Checkout)
}
