package repository

import (
    "context"
    "database/sql"
    "errors"
    "strings"
    "time"

    "github.com/go-sql-driver/mysql"

    "github.com/iliyamo/gym-class-booking/internal/model"
)

// CouponRepo persists discount codes.  The booking core only consumes
// the IsValid predicate; admin CRUD lives alongside for the checkout
// surface.
type CouponRepo struct {
    db *sql.DB
}

// NewCouponRepo returns a CouponRepo bound to the given database.
func NewCouponRepo(db *sql.DB) *CouponRepo { return &CouponRepo{db: db} }

// IsValid reports whether the code can be applied right now.  Unknown
// codes are simply invalid, not errors.
func (r *CouponRepo) IsValid(ctx context.Context, code string, at time.Time) (bool, error) {
    const q = `SELECT EXISTS(
                 SELECT 1 FROM coupons
                 WHERE code = ? AND active = 1 AND expires_at > ?)`
    var ok bool
    if err := r.db.QueryRowContext(ctx, q, normalizeCode(code), at.UTC()).Scan(&ok); err != nil {
        return false, err
    }
    return ok, nil
}

// GetByCode returns the coupon or sql.ErrNoRows.
func (r *CouponRepo) GetByCode(ctx context.Context, code string) (*model.Coupon, error) {
    const q = `SELECT id, code, percent_off, active, expires_at, created_at FROM coupons WHERE code = ?`
    var c model.Coupon
    err := r.db.QueryRowContext(ctx, q, normalizeCode(code)).Scan(
        &c.ID, &c.Code, &c.PercentOff, &c.Active, &c.ExpiresAt, &c.CreatedAt)
    if err != nil {
        return nil, err
    }
    return &c, nil
}

// Create inserts a coupon; duplicate codes map to ErrCouponExists.
func (r *CouponRepo) Create(ctx context.Context, c *model.Coupon) error {
    const q = `INSERT INTO coupons (code, percent_off, active, expires_at) VALUES (?, ?, ?, ?)`
    c.Code = normalizeCode(c.Code)
    res, err := r.db.ExecContext(ctx, q, c.Code, c.PercentOff, c.Active, c.ExpiresAt.UTC())
    if err != nil {
        var me *mysql.MySQLError
        if errors.As(err, &me) && me.Number == mysqlDupEntry {
            return ErrCouponExists
        }
        return err
    }
    id, err := res.LastInsertId()
    if err != nil {
        return err
    }
    c.ID = uint64(id)
    return r.db.QueryRowContext(ctx, `SELECT created_at FROM coupons WHERE id = ?`, c.ID).Scan(&c.CreatedAt)
}

// SetActive toggles a coupon.
func (r *CouponRepo) SetActive(ctx context.Context, id uint64, active bool) error {
    res, err := r.db.ExecContext(ctx, `UPDATE coupons SET active = ? WHERE id = ?`, active, id)
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

// List returns all coupons, newest first.
func (r *CouponRepo) List(ctx context.Context) ([]*model.Coupon, error) {
    const q = `SELECT id, code, percent_off, active, expires_at, created_at FROM coupons ORDER BY created_at DESC`
    rows, err := r.db.QueryContext(ctx, q)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    out := make([]*model.Coupon, 0)
    for rows.Next() {
        var c model.Coupon
        if err := rows.Scan(&c.ID, &c.Code, &c.PercentOff, &c.Active, &c.ExpiresAt, &c.CreatedAt); err != nil {
            return nil, err
        }
        out = append(out, &c)
    }
    return out, rows.Err()
}

func normalizeCode(code string) string {
    return strings.ToUpper(strings.TrimSpace(code))
}
