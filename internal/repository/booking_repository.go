package repository

import (
    "context"
    "database/sql"
    "errors"
    "strings"
    "time"

    "github.com/iliyamo/gym-class-booking/internal/booking"
    "github.com/iliyamo/gym-class-booking/internal/model"
)

// occupyingStatuses is the status set that holds a capacity slot.
// Attended rows keep occupying the now-past slot; cancelled and no_show
// free it.
const occupyingStatuses = `'booked','confirmed','attended'`

// BookingRepo persists bookings.  It implements booking.BookingStore
// and the attendance-count side of checkin.AttendanceStore.
type BookingRepo struct {
    db *sql.DB
}

// NewBookingRepo returns a BookingRepo bound to the given database.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

const bookingCols = `id, user_id, session_id, status, created_at, updated_at`

func scanBooking(row interface{ Scan(...interface{}) error }) (*model.Booking, error) {
    var b model.Booking
    var status string
    if err := row.Scan(&b.ID, &b.UserID, &b.SessionID, &status, &b.CreatedAt, &b.UpdatedAt); err != nil {
        return nil, err
    }
    b.Status = model.BookingStatus(status)
    return &b, nil
}

// ActiveBookingExists reports whether the user already has a
// non-cancelled booking for the session.
func (r *BookingRepo) ActiveBookingExists(ctx context.Context, userID, sessionID uint64) (bool, error) {
    const q = `SELECT EXISTS(
                 SELECT 1 FROM bookings
                 WHERE user_id = ? AND session_id = ? AND status <> 'cancelled')`
    var exists bool
    if err := r.db.QueryRowContext(ctx, q, userID, sessionID).Scan(&exists); err != nil {
        return false, err
    }
    return exists, nil
}

// CountOccupying returns the number of slot-holding bookings for one
// session.
func (r *BookingRepo) CountOccupying(ctx context.Context, sessionID uint64) (int, error) {
    const q = `SELECT COUNT(*) FROM bookings WHERE session_id = ? AND status IN (` + occupyingStatuses + `)`
    var n int
    if err := r.db.QueryRowContext(ctx, q, sessionID).Scan(&n); err != nil {
        return 0, err
    }
    return n, nil
}

// CountOccupyingBatch counts slot-holding bookings for many sessions in
// a single grouped query.  Sessions with zero occupying bookings are
// absent from the map.
func (r *BookingRepo) CountOccupyingBatch(ctx context.Context, sessionIDs []uint64) (map[uint64]int, error) {
    out := make(map[uint64]int, len(sessionIDs))
    if len(sessionIDs) == 0 {
        return out, nil
    }
    placeholders := make([]string, 0, len(sessionIDs))
    args := make([]interface{}, 0, len(sessionIDs))
    for _, id := range sessionIDs {
        placeholders = append(placeholders, "?")
        args = append(args, id)
    }
    q := `SELECT session_id, COUNT(*) FROM bookings
          WHERE session_id IN (` + strings.Join(placeholders, ",") + `)
            AND status IN (` + occupyingStatuses + `)
          GROUP BY session_id`
    rows, err := r.db.QueryContext(ctx, q, args...)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    for rows.Next() {
        var id uint64
        var n int
        if err := rows.Scan(&id, &n); err != nil {
            return nil, err
        }
        out[id] = n
    }
    return out, rows.Err()
}

// InsertIfCapacity inserts a booking with status 'booked'.  When the
// session has a finite capacity the occupancy check and the insert run
// as ONE statement server-side, so two racing creates cannot both land
// in the last slot.  The count subquery is wrapped in a derived table
// because MySQL refuses to read the insert target directly inside an
// INSERT ... SELECT (error 1093).
func (r *BookingRepo) InsertIfCapacity(ctx context.Context, userID, sessionID uint64, capacity *int) (*model.Booking, error) {
    var (
        res sql.Result
        err error
    )
    if capacity == nil {
        const q = `INSERT INTO bookings (user_id, session_id, status) VALUES (?, ?, 'booked')`
        res, err = r.db.ExecContext(ctx, q, userID, sessionID)
    } else {
        const q = `INSERT INTO bookings (user_id, session_id, status)
                   SELECT ?, ?, 'booked' FROM DUAL
                   WHERE ? > (SELECT occupied FROM (
                       SELECT COUNT(*) AS occupied FROM bookings
                       WHERE session_id = ? AND status IN (` + occupyingStatuses + `)
                   ) AS o)`
        res, err = r.db.ExecContext(ctx, q, userID, sessionID, *capacity, sessionID)
    }
    if err != nil {
        return nil, booking.StoreError(err)
    }
    affected, err := res.RowsAffected()
    if err != nil {
        return nil, booking.StoreError(err)
    }
    if affected == 0 {
        return nil, booking.ErrSessionFull
    }
    id, err := res.LastInsertId()
    if err != nil {
        return nil, booking.StoreError(err)
    }
    b, err := r.GetBooking(ctx, uint64(id))
    if err != nil {
        return nil, booking.StoreError(err)
    }
    return b, nil
}

// GetBooking returns a booking by id or booking.ErrBookingNotFound.
func (r *BookingRepo) GetBooking(ctx context.Context, bookingID uint64) (*model.Booking, error) {
    const q = `SELECT ` + bookingCols + ` FROM bookings WHERE id = ?`
    b, err := scanBooking(r.db.QueryRowContext(ctx, q, bookingID))
    if err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return nil, booking.ErrBookingNotFound
        }
        return nil, booking.StoreError(err)
    }
    return b, nil
}

// GetBookingForUser returns the booking only when it belongs to the
// given user; foreign bookings are reported as not found rather than
// forbidden so ids cannot be probed.
func (r *BookingRepo) GetBookingForUser(ctx context.Context, bookingID, userID uint64) (*model.Booking, error) {
    const q = `SELECT ` + bookingCols + ` FROM bookings WHERE id = ? AND user_id = ?`
    b, err := scanBooking(r.db.QueryRowContext(ctx, q, bookingID, userID))
    if err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return nil, booking.ErrBookingNotFound
        }
        return nil, booking.StoreError(err)
    }
    return b, nil
}

// UpdateStatus moves a booking between statuses.  The WHERE clause pins
// the current status so concurrent transitions cannot stack; a miss is
// reported as an invalid transition.
func (r *BookingRepo) UpdateStatus(ctx context.Context, bookingID uint64, from, to model.BookingStatus) error {
    const q = `UPDATE bookings SET status = ? WHERE id = ? AND status = ?`
    res, err := r.db.ExecContext(ctx, q, string(to), bookingID, string(from))
    if err != nil {
        return booking.StoreError(err)
    }
    n, err := res.RowsAffected()
    if err != nil {
        return booking.StoreError(err)
    }
    if n == 0 {
        return booking.ErrInvalidTransition
    }
    return nil
}

// ListByUser returns the user's bookings, newest first.
func (r *BookingRepo) ListByUser(ctx context.Context, userID uint64) ([]*model.Booking, error) {
    const q = `SELECT ` + bookingCols + ` FROM bookings WHERE user_id = ? ORDER BY created_at DESC`
    rows, err := r.db.QueryContext(ctx, q, userID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    out := make([]*model.Booking, 0)
    for rows.Next() {
        b, err := scanBooking(rows)
        if err != nil {
            return nil, err
        }
        out = append(out, b)
    }
    return out, rows.Err()
}

// ListBySession returns all bookings for a session, newest first.  Used
// by the admin attendance view.
func (r *BookingRepo) ListBySession(ctx context.Context, sessionID uint64) ([]*model.Booking, error) {
    const q = `SELECT ` + bookingCols + ` FROM bookings WHERE session_id = ? ORDER BY created_at DESC`
    rows, err := r.db.QueryContext(ctx, q, sessionID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    out := make([]*model.Booking, 0)
    for rows.Next() {
        b, err := scanBooking(rows)
        if err != nil {
            return nil, err
        }
        out = append(out, b)
    }
    return out, rows.Err()
}

// CountAttendedSince counts the user's attended bookings created after
// the given instant.  Feeds the reward progress tracker.
func (r *BookingRepo) CountAttendedSince(ctx context.Context, userID uint64, since time.Time) (int, error) {
    const q = `SELECT COUNT(*) FROM bookings
               WHERE user_id = ? AND status = 'attended' AND created_at > ?`
    var n int
    if err := r.db.QueryRowContext(ctx, q, userID, since.UTC()).Scan(&n); err != nil {
        return 0, err
    }
    return n, nil
}
