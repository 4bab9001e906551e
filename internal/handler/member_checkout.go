package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/gym-class-booking/internal/model"
	"github.com/iliyamo/gym-class-booking/internal/repository"
)

// MemberCheckoutHandler starts a membership purchase.  The row is
// created active with payment pending; the payment provider's
// confirmation (or an admin) flips payment_status to paid, which is
// when the membership starts counting as valid for booking.
type MemberCheckoutHandler struct {
	Memberships *repository.MembershipRepo
	Coupons     *repository.CouponRepo
}

func NewMemberCheckoutHandler(m *repository.MembershipRepo, c *repository.CouponRepo) *MemberCheckoutHandler {
	return &MemberCheckoutHandler{Memberships: m, Coupons: c}
}

// plan catalog: label, price and period.
var plans = map[string]struct {
	PriceCents uint32
	Period     time.Duration
}{
	"monthly": {PriceCents: 4900, Period: 30 * 24 * time.Hour},
	"annual":  {PriceCents: 49900, Period: 365 * 24 * time.Hour},
}

type checkoutReq struct {
	Plan   string `json:"plan"`
	Coupon string `json:"coupon"`
}

// Checkout creates a pending membership for the authenticated member
// and returns the payment reference the provider callback will carry.
// POST /v1/memberships/checkout
func (h *MemberCheckoutHandler) Checkout(c echo.Context) error {
	uid, ok := getUserID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req checkoutReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	plan, ok := plans[strings.ToLower(strings.TrimSpace(req.Plan))]
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "unknown plan"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	now := time.Now().UTC()
	price := plan.PriceCents
	couponCode := strings.TrimSpace(req.Coupon)
	if couponCode != "" {
		valid, err := h.Coupons.IsValid(ctx, couponCode, now)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "coupon check failed"})
		}
		if !valid {
			return c.JSON(http.StatusUnprocessableEntity, echo.Map{"error": "coupon is not valid"})
		}
		coupon, err := h.Coupons.GetByCode(ctx, couponCode)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "coupon check failed"})
		}
		price = price - price*uint32(coupon.PercentOff)/100
	}

	m := &model.Membership{
		UserID:        uid,
		Plan:          strings.ToLower(strings.TrimSpace(req.Plan)),
		Status:        model.MembershipActive,
		PaymentStatus: model.PaymentPending,
		PriceCents:    price,
		StartsAt:      now,
		EndsAt:        now.Add(plan.Period),
	}
	if err := h.Memberships.Create(ctx, m); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "checkout failed"})
	}

	return c.JSON(http.StatusCreated, echo.Map{
		"membership":        toMembershipResp(m),
		"payment_reference": uuid.NewString(),
		"amount_cents":      price,
	})
}
