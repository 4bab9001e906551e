package model

import "time"

// CheckIn records one visit to the gym floor.  A row is opened when an
// entry token is redeemed at the front desk scanner and closed when the
// matching exit token is redeemed.  CheckedOutAt stays nil while the
// visit is open.
type CheckIn struct {
    ID           uint64     // checkins.id
    UserID       uint64     // checkins.user_id
    CheckedInAt  time.Time  // checkins.checked_in_at
    CheckedOutAt *time.Time // checkins.checked_out_at (nullable)
}

// Duration returns the length of a closed visit, or zero while the visit
// is still open.
func (c CheckIn) Duration() time.Duration {
    if c.CheckedOutAt == nil {
        return 0
    }
    return c.CheckedOutAt.Sub(c.CheckedInAt)
}
