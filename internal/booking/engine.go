package booking

import (
    "context"
    "time"

    "github.com/iliyamo/gym-class-booking/internal/model"
)

// DefaultCancelWindow is how close to a session's start cancellation is
// blocked.  Cancelling exactly at the window boundary is still allowed;
// the violation range is strictly 0 < hoursUntilStart < window.
const DefaultCancelWindow = 24 * time.Hour

// MembershipStore answers the single membership question the engine
// asks.  The predicate evaluates all of a user's membership history rows
// server-side, so any one active+paid+unexpired row grants validity.
type MembershipStore interface {
    HasValidMembership(ctx context.Context, userID uint64, at time.Time) (bool, error)
}

// SessionStore provides read access to scheduled sessions.
type SessionStore interface {
    // GetSession returns the session or ErrSessionNotFound.
    GetSession(ctx context.Context, id uint64) (*model.Session, error)
    // GetSessions returns the sessions matching the given ids; ids with
    // no matching row are simply absent from the result.
    GetSessions(ctx context.Context, ids []uint64) ([]*model.Session, error)
}

// BookingStore persists bookings.  Implementations must make
// InsertIfCapacity a single atomic statement: the occupancy check and
// the insert cannot be two round trips, or two racing creates could
// both land in the last slot.
type BookingStore interface {
    // ActiveBookingExists reports whether a non-cancelled booking
    // exists for the (user, session) pair.
    ActiveBookingExists(ctx context.Context, userID, sessionID uint64) (bool, error)

    // CountOccupying returns the number of bookings currently holding a
    // slot for the session (statuses booked, confirmed, attended).
    CountOccupying(ctx context.Context, sessionID uint64) (int, error)

    // CountOccupyingBatch is CountOccupying over many sessions in one
    // query.  Sessions with no occupying bookings may be absent from
    // the map.
    CountOccupyingBatch(ctx context.Context, sessionIDs []uint64) (map[uint64]int, error)

    // InsertIfCapacity inserts a booking with status booked, guarded by
    // the capacity check when capacity is non-nil.  It returns
    // ErrSessionFull when the guard rejects the insert.
    InsertIfCapacity(ctx context.Context, userID, sessionID uint64, capacity *int) (*model.Booking, error)

    // GetBookingForUser returns the booking or ErrBookingNotFound;
    // bookings owned by other users are reported as not found.
    GetBookingForUser(ctx context.Context, bookingID, userID uint64) (*model.Booking, error)

    // GetBooking returns any user's booking or ErrBookingNotFound.
    GetBooking(ctx context.Context, bookingID uint64) (*model.Booking, error)

    // UpdateStatus moves a booking from one status to another.  The
    // update is conditional on the current status so concurrent
    // transitions cannot stack; a miss returns ErrInvalidTransition.
    UpdateStatus(ctx context.Context, bookingID uint64, from, to model.BookingStatus) error

    // ListByUser returns the user's bookings, newest first.
    ListByUser(ctx context.Context, userID uint64) ([]*model.Booking, error)
}

// Engine orchestrates booking creation and cancellation against
// membership validity, time constraints and capacity.  It holds no
// mutable state between requests; everything is derived from its stores
// and the injected clock.
type Engine struct {
    memberships  MembershipStore
    sessions     SessionStore
    bookings     BookingStore
    cancelWindow time.Duration
    now          func() time.Time
}

// Option customises an Engine.
type Option func(*Engine)

// WithCancelWindow overrides the 24h cancellation window.
func WithCancelWindow(d time.Duration) Option {
    return func(e *Engine) {
        if d > 0 {
            e.cancelWindow = d
        }
    }
}

// WithClock injects a clock, used by tests to pin "now".
func WithClock(now func() time.Time) Option {
    return func(e *Engine) {
        if now != nil {
            e.now = now
        }
    }
}

// NewEngine constructs an Engine.  All stores must be non-nil.
func NewEngine(m MembershipStore, s SessionStore, b BookingStore, opts ...Option) *Engine {
    if m == nil || s == nil || b == nil {
        panic("nil store passed to NewEngine")
    }
    e := &Engine{
        memberships:  m,
        sessions:     s,
        bookings:     b,
        cancelWindow: DefaultCancelWindow,
        now:          time.Now,
    }
    for _, opt := range opts {
        opt(e)
    }
    return e
}

// CreateBooking books one slot in a session for a member.  Checks run
// strictly in order: membership, duplicate, session existence, session
// not started, capacity.  The final insert re-checks capacity inside a
// single conditional statement on the store side, so the earlier count
// is a fast-fail, not the guarantee.
func (e *Engine) CreateBooking(ctx context.Context, userID, sessionID uint64) (*model.Booking, error) {
    now := e.now().UTC()

    ok, err := e.memberships.HasValidMembership(ctx, userID, now)
    if err != nil {
        return nil, StoreError(err)
    }
    if !ok {
        return nil, ErrMembershipInvalid
    }

    exists, err := e.bookings.ActiveBookingExists(ctx, userID, sessionID)
    if err != nil {
        return nil, StoreError(err)
    }
    if exists {
        return nil, ErrDuplicateBooking
    }

    sess, err := e.sessions.GetSession(ctx, sessionID)
    if err != nil {
        return nil, err
    }

    if !sess.StartsAt.After(now) {
        return nil, ErrSessionInPast
    }

    if sess.Capacity != nil {
        booked, err := e.bookings.CountOccupying(ctx, sessionID)
        if err != nil {
            return nil, StoreError(err)
        }
        if booked >= *sess.Capacity {
            return nil, ErrSessionFull
        }
    }

    return e.bookings.InsertIfCapacity(ctx, userID, sessionID, sess.Capacity)
}

// CancelBooking cancels a member's booking, freeing one capacity slot.
// Cancellation is blocked inside the window before start and once the
// session has started.
func (e *Engine) CancelBooking(ctx context.Context, userID, bookingID uint64) (*model.Booking, error) {
    b, err := e.bookings.GetBookingForUser(ctx, bookingID, userID)
    if err != nil {
        return nil, err
    }
    if b.Status == model.BookingCancelled {
        return nil, ErrAlreadyCancelled
    }

    sess, err := e.sessions.GetSession(ctx, b.SessionID)
    if err != nil {
        return nil, err
    }

    untilStart := sess.StartsAt.Sub(e.now().UTC())
    if untilStart > 0 && untilStart < e.cancelWindow {
        return nil, ErrCancellationWindow
    }
    if untilStart <= 0 {
        return nil, ErrSessionStarted
    }

    if !b.Status.CanTransitionTo(model.BookingCancelled) {
        return nil, ErrInvalidTransition
    }
    if err := e.bookings.UpdateStatus(ctx, b.ID, b.Status, model.BookingCancelled); err != nil {
        return nil, err
    }
    b.Status = model.BookingCancelled
    return b, nil
}

// SetStatus applies an admin-driven transition (confirm, attended,
// no_show) to any booking.  The state machine is enforced here and the
// store makes the update conditional on the current status.
func (e *Engine) SetStatus(ctx context.Context, bookingID uint64, to model.BookingStatus) (*model.Booking, error) {
    if !to.Valid() {
        return nil, ErrInvalidTransition
    }
    b, err := e.bookings.GetBooking(ctx, bookingID)
    if err != nil {
        return nil, err
    }
    if !b.Status.CanTransitionTo(to) {
        return nil, ErrInvalidTransition
    }
    if err := e.bookings.UpdateStatus(ctx, b.ID, b.Status, to); err != nil {
        return nil, err
    }
    b.Status = to
    return b, nil
}

// ListBookings returns the member's bookings, newest first.
func (e *Engine) ListBookings(ctx context.Context, userID uint64) ([]*model.Booking, error) {
    items, err := e.bookings.ListByUser(ctx, userID)
    if err != nil {
        return nil, StoreError(err)
    }
    return items, nil
}
