package model

import "time"

// BookingStatus is the closed set of states a booking can be in.  The
// column is an enum in MySQL and every transition site matches on this
// type, so free-text statuses cannot enter the system.
type BookingStatus string

const (
    BookingBooked    BookingStatus = "booked"    // active claim on a slot
    BookingConfirmed BookingStatus = "confirmed" // externally confirmed, still occupies
    BookingCancelled BookingStatus = "cancelled" // terminal, frees the slot
    BookingAttended  BookingStatus = "attended"  // terminal, member showed up
    BookingNoShow    BookingStatus = "no_show"   // terminal, member did not show
)

// Valid reports whether s is one of the known booking statuses.
func (s BookingStatus) Valid() bool {
    switch s {
    case BookingBooked, BookingConfirmed, BookingCancelled, BookingAttended, BookingNoShow:
        return true
    }
    return false
}

// Occupies reports whether a booking in this status holds a capacity
// slot.  Attended bookings keep occupying the now-past slot because they
// originated from a booked state; only cancelled and no_show free it.
func (s BookingStatus) Occupies() bool {
    switch s {
    case BookingBooked, BookingConfirmed, BookingAttended:
        return true
    case BookingCancelled, BookingNoShow:
        return false
    }
    return false
}

// Terminal reports whether no further transition is allowed out of s.
func (s BookingStatus) Terminal() bool {
    switch s {
    case BookingCancelled, BookingAttended, BookingNoShow:
        return true
    }
    return false
}

// CanTransitionTo reports whether the state machine permits moving from
// s to next.  booked may confirm, cancel, attend or no-show; confirmed
// may cancel, attend or no-show; terminal states allow nothing.
func (s BookingStatus) CanTransitionTo(next BookingStatus) bool {
    if !s.Valid() || !next.Valid() || s.Terminal() || s == next {
        return false
    }
    switch s {
    case BookingBooked:
        return next == BookingConfirmed || next == BookingCancelled ||
            next == BookingAttended || next == BookingNoShow
    case BookingConfirmed:
        return next == BookingCancelled || next == BookingAttended || next == BookingNoShow
    }
    return false
}

// Booking records a member's claim on one session.  Rows are never
// physically deleted; cancellation is a status change so history and
// reward counting stay intact.
//
// Fields:
//  ID        – primary key identifier.
//  UserID    – member who booked.
//  SessionID – session being booked.
//  Status    – current state (see BookingStatus).
//  CreatedAt – when the booking was made.
//  UpdatedAt – last status change.
type Booking struct {
    ID        uint64        // bookings.id
    UserID    uint64        // bookings.user_id
    SessionID uint64        // bookings.session_id
    Status    BookingStatus // bookings.status
    CreatedAt time.Time     // bookings.created_at
    UpdatedAt time.Time     // bookings.updated_at
}
