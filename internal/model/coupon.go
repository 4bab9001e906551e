package model

import "time"

// Coupon is a discount code applied at membership checkout.  The core
// only ever asks "is this code usable right now"; issuing and redeeming
// accounting live with the payment provider integration.
type Coupon struct {
    ID         uint64    // coupons.id
    Code       string    // coupons.code (unique)
    PercentOff uint8     // coupons.percent_off (1-100)
    Active     bool      // coupons.active
    ExpiresAt  time.Time // coupons.expires_at
    CreatedAt  time.Time // coupons.created_at
}

// UsableAt reports whether the coupon may be applied at time t.
func (c Coupon) UsableAt(t time.Time) bool {
    return c.Active && c.PercentOff > 0 && c.PercentOff <= 100 && c.ExpiresAt.After(t)
}
