package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/gym-class-booking/internal/booking"
	"github.com/iliyamo/gym-class-booking/internal/model"
	"github.com/iliyamo/gym-class-booking/internal/repository"
)

// AdminSessionHandler serves schedule management and attendance
// tracking for staff.
type AdminSessionHandler struct {
	Engine   *booking.Engine
	Sessions *repository.SessionRepo
	Bookings *repository.BookingRepo
}

func NewAdminSessionHandler(e *booking.Engine, s *repository.SessionRepo, b *repository.BookingRepo) *AdminSessionHandler {
	return &AdminSessionHandler{Engine: e, Sessions: s, Bookings: b}
}

type sessionReq struct {
	ClassID    *uint64   `json:"class_id"`
	Name       string    `json:"name"`
	Instructor *string   `json:"instructor"`
	StartsAt   time.Time `json:"starts_at"`
	EndsAt     time.Time `json:"ends_at"`
	Capacity   *int      `json:"capacity"`
}

func (r sessionReq) validate() string {
	if strings.TrimSpace(r.Name) == "" {
		return "name required"
	}
	if r.StartsAt.IsZero() || r.EndsAt.IsZero() {
		return "starts_at and ends_at required"
	}
	if !r.EndsAt.After(r.StartsAt) {
		return "ends_at must be after starts_at"
	}
	if r.Capacity != nil && *r.Capacity <= 0 {
		return "capacity must be positive when set"
	}
	return ""
}

type sessionResp struct {
	ID         uint64    `json:"id"`
	ClassID    *uint64   `json:"class_id,omitempty"`
	Name       string    `json:"name"`
	Instructor *string   `json:"instructor,omitempty"`
	StartsAt   time.Time `json:"starts_at"`
	EndsAt     time.Time `json:"ends_at"`
	Capacity   *int      `json:"capacity"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func toSessionResp(s *model.Session) sessionResp {
	return sessionResp{
		ID: s.ID, ClassID: s.ClassID, Name: s.Name, Instructor: s.Instructor,
		StartsAt: s.StartsAt, EndsAt: s.EndsAt, Capacity: s.Capacity,
		CreatedAt: s.CreatedAt, UpdatedAt: s.UpdatedAt,
	}
}

// CreateSession schedules a new class session.
// POST /v1/admin/sessions
func (h *AdminSessionHandler) CreateSession(c echo.Context) error {
	var req sessionReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if msg := req.validate(); msg != "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	s := &model.Session{
		ClassID:    req.ClassID,
		Name:       strings.TrimSpace(req.Name),
		Instructor: req.Instructor,
		StartsAt:   req.StartsAt.UTC(),
		EndsAt:     req.EndsAt.UTC(),
		Capacity:   req.Capacity,
	}
	if err := h.Sessions.Create(ctx, s); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create session failed"})
	}
	return c.JSON(http.StatusCreated, toSessionResp(s))
}

// UpdateSession rewrites a session's schedulable fields.
// PUT /v1/admin/sessions/:id
func (h *AdminSessionHandler) UpdateSession(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid session id"})
	}
	var req sessionReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if msg := req.validate(); msg != "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": msg})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	s := &model.Session{
		ID:         id,
		ClassID:    req.ClassID,
		Name:       strings.TrimSpace(req.Name),
		Instructor: req.Instructor,
		StartsAt:   req.StartsAt.UTC(),
		EndsAt:     req.EndsAt.UTC(),
		Capacity:   req.Capacity,
	}
	if err := h.Sessions.Update(ctx, s); err != nil {
		if err == booking.ErrSessionNotFound {
			return bookingErrJSON(c, err)
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update session failed"})
	}
	got, err := h.Sessions.GetSession(ctx, id)
	if err != nil {
		return bookingErrJSON(c, err)
	}
	return c.JSON(http.StatusOK, toSessionResp(got))
}

// DeleteSession removes a session with no occupying bookings.
// DELETE /v1/admin/sessions/:id
func (h *AdminSessionHandler) DeleteSession(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid session id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	switch err := h.Sessions.Delete(ctx, id); err {
	case nil:
		return c.NoContent(http.StatusNoContent)
	case booking.ErrSessionNotFound:
		return bookingErrJSON(c, err)
	case repository.ErrConflict:
		return c.JSON(http.StatusConflict, echo.Map{"error": "session has active bookings"})
	default:
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "delete session failed"})
	}
}

// ListSessions returns sessions in a time window, defaulting to the
// next seven days.
// GET /v1/admin/sessions
func (h *AdminSessionHandler) ListSessions(c echo.Context) error {
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

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	sessions, err := h.Sessions.ListBetween(ctx, from, to)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	out := make([]sessionResp, 0, len(sessions))
	for _, s := range sessions {
		out = append(out, toSessionResp(s))
	}
	return c.JSON(http.StatusOK, echo.Map{"sessions": out})
}

// SessionBookings lists every booking on a session for the attendance
// sheet.
// GET /v1/admin/sessions/:id/bookings
func (h *AdminSessionHandler) SessionBookings(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid session id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if _, err := h.Sessions.GetSession(ctx, id); err != nil {
		return bookingErrJSON(c, err)
	}
	items, err := h.Bookings.ListBySession(ctx, id)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	type row struct {
		ID        uint64    `json:"id"`
		UserID    uint64    `json:"user_id"`
		Status    string    `json:"status"`
		CreatedAt time.Time `json:"created_at"`
	}
	out := make([]row, 0, len(items))
	for _, b := range items {
		out = append(out, row{ID: b.ID, UserID: b.UserID, Status: string(b.Status), CreatedAt: b.CreatedAt})
	}
	return c.JSON(http.StatusOK, echo.Map{"bookings": out})
}

// Occupancy reports booked-vs-capacity for the requested sessions.
// GET /v1/admin/occupancy?ids=1,2,3
func (h *AdminSessionHandler) Occupancy(c echo.Context) error {
	raw := c.QueryParam("ids")
	if strings.TrimSpace(raw) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "ids required"})
	}
	var ids []uint64
	for _, part := range strings.Split(raw, ",") {
		id, err := strconv.ParseUint(strings.TrimSpace(part), 10, 64)
		if err != nil || id == 0 {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid session id: " + part})
		}
		ids = append(ids, id)
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	occ, err := h.Engine.GetOccupancy(ctx, ids)
	if err != nil {
		return bookingErrJSON(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"occupancy": occ})
}

type statusReq struct {
	Status string `json:"status"`
}

// SetBookingStatus applies an attendance transition (confirm, attended,
// no_show, cancelled) to any booking.
// PATCH /v1/admin/bookings/:id/status
func (h *AdminSessionHandler) SetBookingStatus(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	var req statusReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	to := model.BookingStatus(strings.ToLower(strings.TrimSpace(req.Status)))
	if !to.Valid() {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown status"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	b, err := h.Engine.SetStatus(ctx, id, to)
	if err != nil {
		return bookingErrJSON(c, err)
	}
	return c.JSON(http.StatusOK, toBookingResp(b))
}
