package model

import "time"

// MembershipStatus is the lifecycle state of a membership record.
type MembershipStatus string

const (
    MembershipActive    MembershipStatus = "active"
    MembershipExpired   MembershipStatus = "expired"
    MembershipCancelled MembershipStatus = "cancelled"
)

// PaymentStatus tracks whether the external payment provider has settled
// the membership.  The provider's webhook flow updates this column; the
// booking path only ever reads it.
type PaymentStatus string

const (
    PaymentPaid    PaymentStatus = "paid"
    PaymentPending PaymentStatus = "pending"
    PaymentFailed  PaymentStatus = "failed"
)

// Membership is one purchased membership period for a user.  Multiple
// rows per user form the purchase history; validity is evaluated against
// the most permissive matching row.
//
// Fields:
//  ID            – primary key identifier.
//  UserID        – owning member.
//  Plan          – plan label (e.g. "monthly", "annual").
//  Status        – lifecycle state.
//  PaymentStatus – settlement state from the payment provider.
//  PriceCents    – amount charged in cents.
//  StartsAt      – period start.
//  EndsAt        – period end.
//  CreatedAt     – row creation timestamp.
type Membership struct {
    ID            uint64           // memberships.id
    UserID        uint64           // memberships.user_id
    Plan          string           // memberships.plan
    Status        MembershipStatus // memberships.status
    PaymentStatus PaymentStatus    // memberships.payment_status
    PriceCents    uint32           // memberships.price_cents
    StartsAt      time.Time        // memberships.starts_at
    EndsAt        time.Time        // memberships.ends_at
    CreatedAt     time.Time        // memberships.created_at
}

// ValidAt reports whether this single record grants access at t: the
// membership is active, paid, and not yet past its end date.
func (m Membership) ValidAt(t time.Time) bool {
    return m.Status == MembershipActive &&
        m.PaymentStatus == PaymentPaid &&
        !m.EndsAt.Before(t)
}
