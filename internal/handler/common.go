package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/gym-class-booking/internal/booking"
	"github.com/iliyamo/gym-class-booking/internal/checkin"
	"github.com/iliyamo/gym-class-booking/internal/qrtoken"
)

// getUserID extracts the authenticated user's ID from context.  JWTAuth
// stores the raw "sub" claim, which arrives as float64 for numeric
// claims or string for stringified ones.
func getUserID(c echo.Context) (uint64, bool) {
	switch v := c.Get("user_id").(type) {
	case float64:
		if v > 0 {
			return uint64(v), true
		}
	case string:
		if id, err := strconv.ParseUint(v, 10, 64); err == nil && id > 0 {
			return id, true
		}
	case uint64:
		if v > 0 {
			return v, true
		}
	}
	return 0, false
}

// bookingErrStatus maps each booking failure kind to one HTTP status.
func bookingErrStatus(err error) int {
	switch {
	case errors.Is(err, booking.ErrSessionNotFound),
		errors.Is(err, booking.ErrBookingNotFound):
		return http.StatusNotFound
	case errors.Is(err, booking.ErrMembershipInvalid):
		return http.StatusForbidden
	case errors.Is(err, booking.ErrDuplicateBooking),
		errors.Is(err, booking.ErrSessionInPast),
		errors.Is(err, booking.ErrSessionFull),
		errors.Is(err, booking.ErrAlreadyCancelled),
		errors.Is(err, booking.ErrCancellationWindow),
		errors.Is(err, booking.ErrSessionStarted),
		errors.Is(err, booking.ErrInvalidTransition):
		return http.StatusConflict
	case errors.Is(err, booking.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// bookingErrJSON writes the canonical JSON error for a booking failure.
func bookingErrJSON(c echo.Context, err error) error {
	return c.JSON(bookingErrStatus(err), echo.Map{"error": booking.UserMessage(err)})
}

// checkinErrStatus maps token and check-in failure kinds to HTTP
// statuses.  Store failures reuse the booking mapping.
func checkinErrStatus(err error) int {
	switch {
	case errors.Is(err, qrtoken.ErrTokenMalformed):
		return http.StatusBadRequest
	case errors.Is(err, qrtoken.ErrTokenForged):
		return http.StatusUnauthorized
	case errors.Is(err, checkin.ErrTokenExpired):
		return http.StatusGone
	case errors.Is(err, checkin.ErrTokenUserMismatch),
		errors.Is(err, checkin.ErrGoalNotReached):
		return http.StatusForbidden
	case errors.Is(err, checkin.ErrAlreadyClaimed):
		return http.StatusConflict
	case errors.Is(err, checkin.ErrNoOpenCheckIn):
		return http.StatusNotFound
	case errors.Is(err, booking.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

func checkinErrJSON(c echo.Context, err error) error {
	msg := checkin.UserMessage(err)
	if errors.Is(err, booking.ErrStoreUnavailable) {
		msg = booking.UserMessage(err)
	}
	return c.JSON(checkinErrStatus(err), echo.Map{"error": msg})
}
