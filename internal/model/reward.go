package model

import "time"

// RewardClaim is the durable proof that a reward token was redeemed.
// The (UserID, TokenIssuedAtMS, TokenSalt) tuple carries the salt fields
// of the token that produced the claim and is covered by a unique index,
// so redeeming the same displayed code twice can only ever create one
// row.  Claims are immutable once created and reset the progress
// tracker's counting window.
type RewardClaim struct {
    ID              uint64    // reward_claims.id
    UserID          uint64    // reward_claims.user_id
    RewardType      string    // reward_claims.reward_type
    TokenIssuedAtMS int64     // reward_claims.token_issued_at_ms
    TokenSalt       string    // reward_claims.token_salt
    ClaimedAt       time.Time // reward_claims.claimed_at
}

// RewardProgress is the derived view of a member's unclaimed effort
// since their last claim.  Hours is the exact sum used for eligibility;
// DisplayHours is the same value truncated to one decimal for the UI.
type RewardProgress struct {
    Hours        float64 `json:"-"`
    DisplayHours float64 `json:"hours"`
    Classes      int     `json:"classes_attended"`
}
