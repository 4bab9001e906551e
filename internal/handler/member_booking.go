package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/gym-class-booking/internal/booking"
	"github.com/iliyamo/gym-class-booking/internal/model"
	"github.com/iliyamo/gym-class-booking/internal/queue"
	"github.com/iliyamo/gym-class-booking/internal/repository"
	queuepub "github.com/iliyamo/gym-class-booking/internal/service"
)

// MemberBookingHandler serves the member-facing booking surface and the
// public schedule view.
type MemberBookingHandler struct {
	Engine   *booking.Engine
	Sessions *repository.SessionRepo
}

func NewMemberBookingHandler(e *booking.Engine, s *repository.SessionRepo) *MemberBookingHandler {
	return &MemberBookingHandler{Engine: e, Sessions: s}
}

type bookingResp struct {
	ID        uint64    `json:"id"`
	SessionID uint64    `json:"session_id"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

func toBookingResp(b *model.Booking) bookingResp {
	return bookingResp{ID: b.ID, SessionID: b.SessionID, Status: string(b.Status), CreatedAt: b.CreatedAt}
}

// CreateBooking books one slot in a session for the authenticated
// member.  POST /v1/sessions/:id/bookings
func (h *MemberBookingHandler) CreateBooking(c echo.Context) error {
	uid, ok := getUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	sessionID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || sessionID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid session id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	b, err := h.Engine.CreateBooking(ctx, uid, sessionID)
	if err != nil {
		return bookingErrJSON(c, err)
	}

	h.publishBookingEvent(queue.QueueBookingCreated, b)

	return c.JSON(http.StatusCreated, toBookingResp(b))
}

// CancelBooking cancels the member's own booking, freeing its slot.
// DELETE /v1/bookings/:id
func (h *MemberBookingHandler) CancelBooking(c echo.Context) error {
	uid, ok := getUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	bookingID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || bookingID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	b, err := h.Engine.CancelBooking(ctx, uid, bookingID)
	if err != nil {
		return bookingErrJSON(c, err)
	}

	h.publishBookingEvent(queue.QueueBookingCancelled, b)

	return c.JSON(http.StatusOK, toBookingResp(b))
}

// MyBookings lists the member's bookings, newest first.
// GET /v1/my-bookings
func (h *MemberBookingHandler) MyBookings(c echo.Context) error {
	uid, ok := getUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	items, err := h.Engine.ListBookings(ctx, uid)
	if err != nil {
		return bookingErrJSON(c, err)
	}
	out := make([]bookingResp, 0, len(items))
	for _, b := range items {
		out = append(out, toBookingResp(b))
	}
	return c.JSON(http.StatusOK, echo.Map{"bookings": out})
}

type scheduleEntry struct {
	ID         uint64            `json:"id"`
	Name       string            `json:"name"`
	Instructor *string           `json:"instructor,omitempty"`
	StartsAt   time.Time         `json:"starts_at"`
	EndsAt     time.Time         `json:"ends_at"`
	Occupancy  booking.Occupancy `json:"occupancy"`
}

// Schedule returns upcoming sessions with live occupancy.  Public and
// cached for a few seconds; query params from/to (RFC3339) narrow the
// window, defaulting to the next seven days.
// GET /v1/schedule
func (h *MemberBookingHandler) Schedule(c echo.Context) error {
	now := time.Now().UTC()
	from, to := now, now.Add(7*24*time.Hour)
	if v := c.QueryParam("from"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid from"})
		}
		from = t.UTC()
	}
	if v := c.QueryParam("to"); v != "" {
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid to"})
		}
		to = t.UTC()
	}
	if !to.After(from) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "to must be after from"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	sessions, err := h.Sessions.ListBetween(ctx, from, to)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	ids := make([]uint64, 0, len(sessions))
	for _, s := range sessions {
		ids = append(ids, s.ID)
	}
	occ, err := h.Engine.GetOccupancy(ctx, ids)
	if err != nil {
		return bookingErrJSON(c, err)
	}

	out := make([]scheduleEntry, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, scheduleEntry{
			ID:         s.ID,
			Name:       s.Name,
			Instructor: s.Instructor,
			StartsAt:   s.StartsAt,
			EndsAt:     s.EndsAt,
			Occupancy:  occ[s.ID],
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"sessions": out})
}

// SessionDetail returns one session with its live occupancy.  Public.
// GET /v1/sessions/:id
func (h *MemberBookingHandler) SessionDetail(c echo.Context) error {
	sessionID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || sessionID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid session id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	s, err := h.Sessions.GetSession(ctx, sessionID)
	if err != nil {
		return bookingErrJSON(c, err)
	}
	occ, err := h.Engine.GetOccupancy(ctx, []uint64{s.ID})
	if err != nil {
		return bookingErrJSON(c, err)
	}

	return c.JSON(http.StatusOK, scheduleEntry{
		ID:         s.ID,
		Name:       s.Name,
		Instructor: s.Instructor,
		StartsAt:   s.StartsAt,
		EndsAt:     s.EndsAt,
		Occupancy:  occ[s.ID],
	})
}

// publishBookingEvent emits a booking event without blocking the
// request.  A broker outage must never fail a booking.
func (h *MemberBookingHandler) publishBookingEvent(queueName string, b *model.Booking) {
	ev := queue.BookingEvent{
		BookingID:  b.ID,
		UserID:     b.UserID,
		SessionID:  b.SessionID,
		Status:     string(b.Status),
		OccurredAt: time.Now().UTC().Format(time.RFC3339),
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if s, err := h.Sessions.GetSession(ctx, b.SessionID); err == nil {
			ev.SessionName = s.Name
			ev.StartsAt = s.StartsAt.UTC().Format(time.RFC3339)
		}
		_ = queuepub.Publish(ctx, queueName, ev)
	}()
}
