// Package booking implements class-session booking and capacity control.
// This file defines the sentinel errors the engine surfaces to callers.
// Handlers distinguish failure scenarios with errors.Is and translate
// each kind into exactly one HTTP status and human message; none of the
// validation kinds should ever be retried unchanged by a caller.
package booking

import (
    "errors"
    "fmt"
)

var (
    // ErrMembershipInvalid is returned when the user has no membership
    // record that is active, paid and unexpired at call time.
    ErrMembershipInvalid = errors.New("membership invalid")

    // ErrDuplicateBooking is returned when a non-cancelled booking
    // already exists for the same (user, session) pair.
    ErrDuplicateBooking = errors.New("duplicate booking")

    // ErrSessionNotFound is returned when the referenced session does
    // not exist.
    ErrSessionNotFound = errors.New("session not found")

    // ErrSessionInPast is returned when the session has already started
    // at booking time.
    ErrSessionInPast = errors.New("session in past")

    // ErrSessionFull is returned when a finite-capacity session has no
    // free slot left.
    ErrSessionFull = errors.New("session full")

    // ErrBookingNotFound is returned when no booking with the given id
    // belongs to the calling user.
    ErrBookingNotFound = errors.New("booking not found")

    // ErrAlreadyCancelled is returned when cancelling a booking that is
    // already cancelled.
    ErrAlreadyCancelled = errors.New("booking already cancelled")

    // ErrCancellationWindow is returned when the session starts in less
    // than the cancellation window (but has not started yet).
    ErrCancellationWindow = errors.New("inside cancellation window")

    // ErrSessionStarted is returned when cancelling a booking whose
    // session has already started.
    ErrSessionStarted = errors.New("session already started")

    // ErrInvalidTransition is returned when an attendance update would
    // move a booking along an edge the state machine does not allow.
    ErrInvalidTransition = errors.New("invalid status transition")

    // ErrStoreUnavailable wraps network or backend failures from the
    // persistent store.  Unlike the validation kinds above, callers may
    // retry these with backoff.
    ErrStoreUnavailable = errors.New("store unavailable")
)

// StoreError marks err as an infrastructure failure so that callers can
// separate it from validation rejections via errors.Is(err,
// ErrStoreUnavailable).  A nil err returns nil.
func StoreError(err error) error {
    if err == nil {
        return nil
    }
    return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

// UserMessage maps every booking error kind to its single
// human-readable message.  Unknown errors fall back to a generic
// message so the mapping stays total for callers.
func UserMessage(err error) string {
    switch {
    case errors.Is(err, ErrMembershipInvalid):
        return "An active, paid membership is required to book classes"
    case errors.Is(err, ErrDuplicateBooking):
        return "You already have a booking for this class"
    case errors.Is(err, ErrSessionNotFound):
        return "This class session does not exist"
    case errors.Is(err, ErrSessionInPast):
        return "This class has already started"
    case errors.Is(err, ErrSessionFull):
        return "This class is fully booked"
    case errors.Is(err, ErrBookingNotFound):
        return "Booking not found"
    case errors.Is(err, ErrAlreadyCancelled):
        return "This booking is already cancelled"
    case errors.Is(err, ErrCancellationWindow):
        return "Bookings cannot be cancelled within 24 hours of the class"
    case errors.Is(err, ErrSessionStarted):
        return "This class has already started and can no longer be cancelled"
    case errors.Is(err, ErrInvalidTransition):
        return "This booking cannot change to the requested status"
    case errors.Is(err, ErrStoreUnavailable):
        return "Service temporarily unavailable, please try again"
    }
    return "Something went wrong"
}
