package handler

import (
	"context"
	"database/sql"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/gym-class-booking/internal/model"
	"github.com/iliyamo/gym-class-booking/internal/repository"
)

// AdminMembershipHandler manages membership records and coupons.
type AdminMembershipHandler struct {
	Memberships *repository.MembershipRepo
	Coupons     *repository.CouponRepo
}

func NewAdminMembershipHandler(m *repository.MembershipRepo, c *repository.CouponRepo) *AdminMembershipHandler {
	return &AdminMembershipHandler{Memberships: m, Coupons: c}
}

type membershipResp struct {
	ID            uint64    `json:"id"`
	Plan          string    `json:"plan"`
	Status        string    `json:"status"`
	PaymentStatus string    `json:"payment_status"`
	PriceCents    uint32    `json:"price_cents"`
	StartsAt      time.Time `json:"starts_at"`
	EndsAt        time.Time `json:"ends_at"`
}

func toMembershipResp(m *model.Membership) membershipResp {
	return membershipResp{
		ID: m.ID, Plan: m.Plan, Status: string(m.Status), PaymentStatus: string(m.PaymentStatus),
		PriceCents: m.PriceCents, StartsAt: m.StartsAt, EndsAt: m.EndsAt,
	}
}

// MemberMemberships lists a member's membership history.
// GET /v1/admin/members/:id/memberships
func (h *AdminMembershipHandler) MemberMemberships(c echo.Context) error {
	userID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || userID == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid member id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	items, err := h.Memberships.ListByUser(ctx, userID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	out := make([]membershipResp, 0, len(items))
	for _, m := range items {
		out = append(out, toMembershipResp(m))
	}
	return c.JSON(http.StatusOK, echo.Map{"memberships": out})
}

type membershipStatusReq struct {
	Status        string `json:"status"`
	PaymentStatus string `json:"payment_status"`
}

// UpdateMembership sets the lifecycle and payment statuses of one
// membership row, standing in for the payment provider's webhook in
// environments without one.
// PATCH /v1/admin/memberships/:id
func (h *AdminMembershipHandler) UpdateMembership(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid membership id"})
	}
	var req membershipStatusReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	status := model.MembershipStatus(strings.ToLower(strings.TrimSpace(req.Status)))
	pay := model.PaymentStatus(strings.ToLower(strings.TrimSpace(req.PaymentStatus)))
	switch status {
	case model.MembershipActive, model.MembershipExpired, model.MembershipCancelled:
	default:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown status"})
	}
	switch pay {
	case model.PaymentPaid, model.PaymentPending, model.PaymentFailed:
	default:
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown payment_status"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Memberships.UpdateStatus(ctx, id, status, pay); err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "membership not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}
	return c.NoContent(http.StatusNoContent)
}

type couponReq struct {
	Code       string    `json:"code"`
	PercentOff uint8     `json:"percent_off"`
	ExpiresAt  time.Time `json:"expires_at"`
}

type couponResp struct {
	ID         uint64    `json:"id"`
	Code       string    `json:"code"`
	PercentOff uint8     `json:"percent_off"`
	Active     bool      `json:"active"`
	ExpiresAt  time.Time `json:"expires_at"`
	CreatedAt  time.Time `json:"created_at"`
}

func toCouponResp(c *model.Coupon) couponResp {
	return couponResp{
		ID: c.ID, Code: c.Code, PercentOff: c.PercentOff,
		Active: c.Active, ExpiresAt: c.ExpiresAt, CreatedAt: c.CreatedAt,
	}
}

// CreateCoupon registers a new discount code, active immediately.
// POST /v1/admin/coupons
func (h *AdminMembershipHandler) CreateCoupon(c echo.Context) error {
	var req couponReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if strings.TrimSpace(req.Code) == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "code required"})
	}
	if req.PercentOff == 0 || req.PercentOff > 100 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "percent_off must be 1-100"})
	}
	if !req.ExpiresAt.After(time.Now().UTC()) {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "expires_at must be in the future"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	coupon := &model.Coupon{
		Code:       req.Code,
		PercentOff: req.PercentOff,
		Active:     true,
		ExpiresAt:  req.ExpiresAt.UTC(),
	}
	if err := h.Coupons.Create(ctx, coupon); err != nil {
		if err == repository.ErrCouponExists {
			return c.JSON(http.StatusConflict, echo.Map{"error": "coupon code already exists"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "create coupon failed"})
	}
	return c.JSON(http.StatusCreated, toCouponResp(coupon))
}

// ListCoupons returns every coupon, newest first.
// GET /v1/admin/coupons
func (h *AdminMembershipHandler) ListCoupons(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	items, err := h.Coupons.List(ctx)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	out := make([]couponResp, 0, len(items))
	for _, cp := range items {
		out = append(out, toCouponResp(cp))
	}
	return c.JSON(http.StatusOK, echo.Map{"coupons": out})
}

type couponActiveReq struct {
	Active bool `json:"active"`
}

// SetCouponActive enables or disables a coupon.
// PATCH /v1/admin/coupons/:id/active
func (h *AdminMembershipHandler) SetCouponActive(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid coupon id"})
	}
	var req couponActiveReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if err := h.Coupons.SetActive(ctx, id, req.Active); err != nil {
		if err == sql.ErrNoRows {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "coupon not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "update failed"})
	}
	return c.NoContent(http.StatusNoContent)
}
