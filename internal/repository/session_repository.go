// Package repository: session persistence.  Sessions are the scheduled
// class occurrences members book against.  All timestamps are stored in
// UTC; the DSN uses parseTime so DATETIME columns scan into time.Time.
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

// SessionRepo manages persistence for class sessions.
type SessionRepo struct {
    db *sql.DB
}

// NewSessionRepo returns a SessionRepo bound to the given database.
func NewSessionRepo(db *sql.DB) *SessionRepo { return &SessionRepo{db: db} }

// DB exposes the underlying sql.DB.  It allows callers to begin
// transactions spanning multiple repositories.
func (r *SessionRepo) DB() *sql.DB { return r.db }

const sessionCols = `id, class_id, name, instructor, starts_at, ends_at, capacity, created_at, updated_at`

func scanSession(row interface{ Scan(...interface{}) error }) (*model.Session, error) {
    var (
        s          model.Session
        classID    sql.NullInt64
        instructor sql.NullString
        capacity   sql.NullInt64
    )
    err := row.Scan(&s.ID, &classID, &s.Name, &instructor, &s.StartsAt, &s.EndsAt, &capacity, &s.CreatedAt, &s.UpdatedAt)
    if err != nil {
        return nil, err
    }
    if classID.Valid {
        v := uint64(classID.Int64)
        s.ClassID = &v
    }
    if instructor.Valid {
        v := instructor.String
        s.Instructor = &v
    }
    if capacity.Valid {
        v := int(capacity.Int64)
        s.Capacity = &v
    }
    return &s, nil
}

// GetSession returns one session or booking.ErrSessionNotFound.
func (r *SessionRepo) GetSession(ctx context.Context, id uint64) (*model.Session, error) {
    const q = `SELECT ` + sessionCols + ` FROM sessions WHERE id = ?`
    s, err := scanSession(r.db.QueryRowContext(ctx, q, id))
    if err != nil {
        if errors.Is(err, sql.ErrNoRows) {
            return nil, booking.ErrSessionNotFound
        }
        return nil, err
    }
    return s, nil
}

// GetSessions returns the sessions matching the given ids in one query.
// Ids without a matching row are silently absent from the result.
func (r *SessionRepo) GetSessions(ctx context.Context, ids []uint64) ([]*model.Session, error) {
    if len(ids) == 0 {
        return []*model.Session{}, nil
    }
    placeholders := make([]string, 0, len(ids))
    args := make([]interface{}, 0, len(ids))
    for _, id := range ids {
        placeholders = append(placeholders, "?")
        args = append(args, id)
    }
    q := `SELECT ` + sessionCols + ` FROM sessions WHERE id IN (` + strings.Join(placeholders, ",") + `)`
    rows, err := r.db.QueryContext(ctx, q, args...)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    out := make([]*model.Session, 0, len(ids))
    for rows.Next() {
        s, err := scanSession(rows)
        if err != nil {
            return nil, err
        }
        out = append(out, s)
    }
    return out, rows.Err()
}

// ListBetween returns sessions starting inside [from, to), ordered by
// start time.  This backs the public schedule view.
func (r *SessionRepo) ListBetween(ctx context.Context, from, to time.Time) ([]*model.Session, error) {
    const q = `SELECT ` + sessionCols + ` FROM sessions
               WHERE starts_at >= ? AND starts_at < ?
               ORDER BY starts_at ASC`
    rows, err := r.db.QueryContext(ctx, q, from.UTC(), to.UTC())
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    out := make([]*model.Session, 0)
    for rows.Next() {
        s, err := scanSession(rows)
        if err != nil {
            return nil, err
        }
        out = append(out, s)
    }
    return out, rows.Err()
}

// Create inserts a session and populates generated fields on s.
func (r *SessionRepo) Create(ctx context.Context, s *model.Session) error {
    const q = `INSERT INTO sessions (class_id, name, instructor, starts_at, ends_at, capacity) VALUES (?, ?, ?, ?, ?, ?)`
    res, err := r.db.ExecContext(ctx, q, s.ClassID, s.Name, s.Instructor, s.StartsAt.UTC(), s.EndsAt.UTC(), s.Capacity)
    if err != nil {
        return err
    }
    id, err := res.LastInsertId()
    if err != nil {
        return err
    }
    s.ID = uint64(id)
    const sel = `SELECT created_at, updated_at FROM sessions WHERE id = ?`
    return r.db.QueryRowContext(ctx, sel, s.ID).Scan(&s.CreatedAt, &s.UpdatedAt)
}

// Update rewrites the mutable fields of a session.  It returns
// booking.ErrSessionNotFound when no row matches.
func (r *SessionRepo) Update(ctx context.Context, s *model.Session) error {
    const q = `UPDATE sessions SET class_id = ?, name = ?, instructor = ?, starts_at = ?, ends_at = ?, capacity = ? WHERE id = ?`
    res, err := r.db.ExecContext(ctx, q, s.ClassID, s.Name, s.Instructor, s.StartsAt.UTC(), s.EndsAt.UTC(), s.Capacity, s.ID)
    if err != nil {
        return err
    }
    n, err := res.RowsAffected()
    if err != nil {
        return err
    }
    if n == 0 {
        // Either missing or unchanged; distinguish so callers can 404.
        var exists bool
        if err := r.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM sessions WHERE id = ?)`, s.ID).Scan(&exists); err != nil {
            return err
        }
        if !exists {
            return booking.ErrSessionNotFound
        }
    }
    return nil
}

// Delete removes a session that has no occupying bookings.  Sessions
// with booked, confirmed or attended rows return ErrConflict; deletion
// must stay explicit while bookings reference the session.
func (r *SessionRepo) Delete(ctx context.Context, id uint64) error {
    const check = `SELECT COUNT(*) FROM bookings WHERE session_id = ? AND status IN ('booked','confirmed','attended')`
    var n int
    if err := r.db.QueryRowContext(ctx, check, id).Scan(&n); err != nil {
        return err
    }
    if n > 0 {
        return ErrConflict
    }
    res, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = ?`, id)
    if err != nil {
        return err
    }
    affected, err := res.RowsAffected()
    if err != nil {
        return err
    }
    if affected == 0 {
        return booking.ErrSessionNotFound
    }
    return nil
}
