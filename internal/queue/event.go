// Package queue defines message payloads exchanged over the message broker.
package queue

// Queue names.  One durable queue per event type keeps consumers simple.
const (
    QueueBookingCreated   = "booking.created"
    QueueBookingCancelled = "booking.cancelled"
    QueueMemberCheckedIn  = "member.checked_in"
    QueueRewardClaimed    = "reward.claimed"
)

// BookingEvent is published when a booking is created or cancelled.  It
// carries enough for downstream consumers to notify or run analytics
// without querying the primary database.
type BookingEvent struct {
    BookingID   uint64 `json:"booking_id"`
    UserID      uint64 `json:"user_id"`
    SessionID   uint64 `json:"session_id"`
    SessionName string `json:"session_name"`
    StartsAt    string `json:"starts_at"`
    Status      string `json:"status"`
    OccurredAt  string `json:"occurred_at"`
}

// CheckInEvent is published when an entry or exit token is redeemed at
// the scanner.
type CheckInEvent struct {
    CheckInID  uint64 `json:"checkin_id"`
    UserID     uint64 `json:"user_id"`
    Action     string `json:"action"`
    OccurredAt string `json:"occurred_at"`
}

// RewardClaimedEvent is published when a reward claim is durably
// recorded.
type RewardClaimedEvent struct {
    ClaimID    uint64 `json:"claim_id"`
    UserID     uint64 `json:"user_id"`
    RewardType string `json:"reward_type"`
    ClaimedAt  string `json:"claimed_at"`
}
