// Package checkin turns scanned QR tokens into durable check-in and
// reward-claim records and derives reward progress.  This file defines
// the sentinel errors of the protocol; token structure errors
// (malformed, forged) come from the qrtoken package and flow through
// unchanged.
package checkin

import (
    "errors"

    "github.com/iliyamo/gym-class-booking/internal/qrtoken"
)

var (
    // ErrTokenExpired is returned when a token fails the liveness check
    // before any storage is touched.  The member has to display a fresh
    // code.
    ErrTokenExpired = errors.New("token expired")

    // ErrTokenUserMismatch is returned when a reward token embeds a
    // different user than the authenticated caller, which prevents
    // claiming with someone else's scanned code.
    ErrTokenUserMismatch = errors.New("token user mismatch")

    // ErrGoalNotReached is returned when either the hours or the
    // classes threshold is unmet; a single met goal is insufficient.
    ErrGoalNotReached = errors.New("reward goal not reached")

    // ErrAlreadyClaimed is returned when the claim key has already
    // produced a claim.  The storage layer's unique index is what
    // enforces this; the protocol just forwards it.
    ErrAlreadyClaimed = errors.New("reward already claimed")

    // ErrNoOpenCheckIn is returned when an exit token is redeemed for a
    // user with no open check-in; nothing is fabricated or mutated.
    ErrNoOpenCheckIn = errors.New("no open check-in")
)

// UserMessage maps every check-in and token error kind to its single
// human-readable message, completing the taxonomy started in the
// booking package.
func UserMessage(err error) string {
    switch {
    case errors.Is(err, qrtoken.ErrTokenMalformed):
        return "This code could not be read, please try a fresh one"
    case errors.Is(err, qrtoken.ErrTokenForged):
        return "This code is not valid"
    case errors.Is(err, ErrTokenExpired):
        return "This code has expired, please scan a fresh one"
    case errors.Is(err, ErrTokenUserMismatch):
        return "This code belongs to a different member"
    case errors.Is(err, ErrGoalNotReached):
        return "You have not reached your reward goal yet"
    case errors.Is(err, ErrAlreadyClaimed):
        return "This reward has already been claimed"
    case errors.Is(err, ErrNoOpenCheckIn):
        return "No open check-in found for this member"
    }
    return "Something went wrong"
}
