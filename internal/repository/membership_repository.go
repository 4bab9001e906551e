package repository

import (
    "context"
    "database/sql"
    "time"

    "github.com/iliyamo/gym-class-booking/internal/model"
)

// MembershipRepo persists membership purchase history.  Validity is a
// server-side predicate over all of a user's rows, so it naturally
// evaluates against the most permissive matching record.
type MembershipRepo struct {
    db *sql.DB
}

// NewMembershipRepo returns a MembershipRepo bound to the given database.
func NewMembershipRepo(db *sql.DB) *MembershipRepo { return &MembershipRepo{db: db} }

// HasValidMembership reports whether any of the user's membership rows
// is active, paid and not yet past its end date at the given instant.
// This is the only membership question the booking engine asks; how the
// status and payment_status columns get set (payment provider webhooks)
// is outside this service.
func (r *MembershipRepo) HasValidMembership(ctx context.Context, userID uint64, at time.Time) (bool, error) {
    const q = `SELECT EXISTS(
                 SELECT 1 FROM memberships
                 WHERE user_id = ?
                   AND status = 'active'
                   AND payment_status = 'paid'
                   AND ends_at >= ?)`
    var ok bool
    if err := r.db.QueryRowContext(ctx, q, userID, at.UTC()).Scan(&ok); err != nil {
        return false, err
    }
    return ok, nil
}

const membershipCols = `id, user_id, plan, status, payment_status, price_cents, starts_at, ends_at, created_at`

func scanMembership(row interface{ Scan(...interface{}) error }) (*model.Membership, error) {
    var m model.Membership
    var status, payStatus string
    err := row.Scan(&m.ID, &m.UserID, &m.Plan, &status, &payStatus, &m.PriceCents, &m.StartsAt, &m.EndsAt, &m.CreatedAt)
    if err != nil {
        return nil, err
    }
    m.Status = model.MembershipStatus(status)
    m.PaymentStatus = model.PaymentStatus(payStatus)
    return &m, nil
}

// Create inserts a membership row.  New checkout-initiated memberships
// start active/pending; the payment provider's confirmation flips
// payment_status to paid.
func (r *MembershipRepo) Create(ctx context.Context, m *model.Membership) error {
    const q = `INSERT INTO memberships (user_id, plan, status, payment_status, price_cents, starts_at, ends_at)
               VALUES (?, ?, ?, ?, ?, ?, ?)`
    res, err := r.db.ExecContext(ctx, q,
        m.UserID, m.Plan, string(m.Status), string(m.PaymentStatus), m.PriceCents, m.StartsAt.UTC(), m.EndsAt.UTC())
    if err != nil {
        return err
    }
    id, err := res.LastInsertId()
    if err != nil {
        return err
    }
    m.ID = uint64(id)
    return r.db.QueryRowContext(ctx, `SELECT created_at FROM memberships WHERE id = ?`, m.ID).Scan(&m.CreatedAt)
}

// ListByUser returns the user's membership history, newest first.
func (r *MembershipRepo) ListByUser(ctx context.Context, userID uint64) ([]*model.Membership, error) {
    const q = `SELECT ` + membershipCols + ` FROM memberships WHERE user_id = ? ORDER BY created_at DESC`
    rows, err := r.db.QueryContext(ctx, q, userID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    out := make([]*model.Membership, 0)
    for rows.Next() {
        m, err := scanMembership(rows)
        if err != nil {
            return nil, err
        }
        out = append(out, m)
    }
    return out, rows.Err()
}

// UpdateStatus sets the lifecycle and payment statuses of one
// membership row.  Exposed to the admin surface; the payment provider
// integration drives the same columns in production.
func (r *MembershipRepo) UpdateStatus(ctx context.Context, id uint64, status model.MembershipStatus, pay model.PaymentStatus) error {
    const q = `UPDATE memberships SET status = ?, payment_status = ? WHERE id = ?`
    res, err := r.db.ExecContext(ctx, q, string(status), string(pay), id)
    if err != nil {
        return err
    }
    n, err := res.RowsAffected()
    if err != nil {
        return err
    }
    if n == 0 {
        return sql.ErrNoRows
    }
    return nil
}
