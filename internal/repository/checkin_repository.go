package repository

import (
    "context"
    "database/sql"
    "time"

    "github.com/iliyamo/gym-class-booking/internal/checkin"
    "github.com/iliyamo/gym-class-booking/internal/model"
)

// CheckInRepo persists gym-floor visits.  It implements
// checkin.CheckInStore.
type CheckInRepo struct {
    db *sql.DB
}

// NewCheckInRepo returns a CheckInRepo bound to the given database.
func NewCheckInRepo(db *sql.DB) *CheckInRepo { return &CheckInRepo{db: db} }

const checkinCols = `id, user_id, checked_in_at, checked_out_at`

func scanCheckIn(row interface{ Scan(...interface{}) error }) (*model.CheckIn, error) {
    var c model.CheckIn
    var out sql.NullTime
    if err := row.Scan(&c.ID, &c.UserID, &c.CheckedInAt, &out); err != nil {
        return nil, err
    }
    if out.Valid {
        t := out.Time
        c.CheckedOutAt = &t
    }
    return &c, nil
}

// CreateCheckIn opens a visit.  Overlapping open visits for the same
// user are allowed by the schema; the protocol layer surfaces them to
// the operator instead of rejecting.
func (r *CheckInRepo) CreateCheckIn(ctx context.Context, userID uint64, at time.Time) (*model.CheckIn, error) {
    const q = `INSERT INTO checkins (user_id, checked_in_at) VALUES (?, ?)`
    res, err := r.db.ExecContext(ctx, q, userID, at.UTC())
    if err != nil {
        return nil, err
    }
    id, err := res.LastInsertId()
    if err != nil {
        return nil, err
    }
    return &model.CheckIn{ID: uint64(id), UserID: userID, CheckedInAt: at.UTC()}, nil
}

// CloseLatestOpen closes the user's most recent open check-in in a
// single conditional UPDATE, then reads the closed row back.  When the
// user has no open check-in nothing is mutated and
// checkin.ErrNoOpenCheckIn is returned.
func (r *CheckInRepo) CloseLatestOpen(ctx context.Context, userID uint64, at time.Time) (*model.CheckIn, error) {
    const upd = `UPDATE checkins SET checked_out_at = ?
                 WHERE user_id = ? AND checked_out_at IS NULL
                 ORDER BY checked_in_at DESC, id DESC
                 LIMIT 1`
    res, err := r.db.ExecContext(ctx, upd, at.UTC(), userID)
    if err != nil {
        return nil, err
    }
    n, err := res.RowsAffected()
    if err != nil {
        return nil, err
    }
    if n == 0 {
        return nil, checkin.ErrNoOpenCheckIn
    }
    const sel = `SELECT ` + checkinCols + ` FROM checkins
                 WHERE user_id = ? AND checked_out_at = ?
                 ORDER BY checked_in_at DESC, id DESC
                 LIMIT 1`
    return scanCheckIn(r.db.QueryRowContext(ctx, sel, userID, at.UTC()))
}

// CountOpen returns how many check-ins the user currently has open.
func (r *CheckInRepo) CountOpen(ctx context.Context, userID uint64) (int, error) {
    const q = `SELECT COUNT(*) FROM checkins WHERE user_id = ? AND checked_out_at IS NULL`
    var n int
    if err := r.db.QueryRowContext(ctx, q, userID).Scan(&n); err != nil {
        return 0, err
    }
    return n, nil
}

// SumClosedHoursSince sums the duration of closed visits started after
// the given instant, in exact hours.  Second precision is the
// granularity the check-in columns store.
func (r *CheckInRepo) SumClosedHoursSince(ctx context.Context, userID uint64, since time.Time) (float64, error) {
    const q = `SELECT COALESCE(SUM(TIMESTAMPDIFF(SECOND, checked_in_at, checked_out_at)), 0)
               FROM checkins
               WHERE user_id = ? AND checked_out_at IS NOT NULL AND checked_in_at > ?`
    var seconds float64
    if err := r.db.QueryRowContext(ctx, q, userID, since.UTC()).Scan(&seconds); err != nil {
        return 0, err
    }
    return seconds / 3600.0, nil
}

// ListByUser returns the user's check-ins, newest first.
func (r *CheckInRepo) ListByUser(ctx context.Context, userID uint64) ([]*model.CheckIn, error) {
    const q = `SELECT ` + checkinCols + ` FROM checkins WHERE user_id = ? ORDER BY checked_in_at DESC, id DESC`
    rows, err := r.db.QueryContext(ctx, q, userID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    out := make([]*model.CheckIn, 0)
    for rows.Next() {
        c, err := scanCheckIn(rows)
        if err != nil {
            return nil, err
        }
        out = append(out, c)
    }
    return out, rows.Err()
}
