package repository

import (
    "context"
    "database/sql"
    "errors"
    "time"

    "github.com/go-sql-driver/mysql"

    "github.com/iliyamo/gym-class-booking/internal/checkin"
    "github.com/iliyamo/gym-class-booking/internal/model"
)

// mysqlDupEntry is the MySQL error number for a unique key violation.
const mysqlDupEntry = 1062

// RewardRepo persists reward claims.  It implements checkin.ClaimStore.
// The reward_claims table carries
// UNIQUE KEY (user_id, token_issued_at_ms, token_salt); that index, not
// application logic, is what makes claims one-time.
type RewardRepo struct {
    db *sql.DB
}

// NewRewardRepo returns a RewardRepo bound to the given database.
func NewRewardRepo(db *sql.DB) *RewardRepo { return &RewardRepo{db: db} }

// LatestClaimTime returns the user's most recent claim time.  ok is
// false when the user has never claimed, in which case the progress
// tracker counts from the beginning of time.
func (r *RewardRepo) LatestClaimTime(ctx context.Context, userID uint64) (time.Time, bool, error) {
    const q = `SELECT MAX(claimed_at) FROM reward_claims WHERE user_id = ?`
    var t sql.NullTime
    if err := r.db.QueryRowContext(ctx, q, userID).Scan(&t); err != nil {
        return time.Time{}, false, err
    }
    if !t.Valid {
        return time.Time{}, false, nil
    }
    return t.Time.UTC(), true, nil
}

// InsertClaim inserts the claim row.  A duplicate of the claim key maps
// to checkin.ErrAlreadyClaimed: two near-simultaneous redemptions of
// the same displayed code produce exactly one row and one rejection.
func (r *RewardRepo) InsertClaim(ctx context.Context, claim *model.RewardClaim) error {
    const q = `INSERT INTO reward_claims (user_id, reward_type, token_issued_at_ms, token_salt, claimed_at)
               VALUES (?, ?, ?, ?, ?)`
    res, err := r.db.ExecContext(ctx, q,
        claim.UserID, claim.RewardType, claim.TokenIssuedAtMS, claim.TokenSalt, claim.ClaimedAt.UTC())
    if err != nil {
        var me *mysql.MySQLError
        if errors.As(err, &me) && me.Number == mysqlDupEntry {
            return checkin.ErrAlreadyClaimed
        }
        return err
    }
    id, err := res.LastInsertId()
    if err != nil {
        return err
    }
    claim.ID = uint64(id)
    return nil
}

// ListByUser returns the user's claims, newest first.
func (r *RewardRepo) ListByUser(ctx context.Context, userID uint64) ([]*model.RewardClaim, error) {
    const q = `SELECT id, user_id, reward_type, token_issued_at_ms, token_salt, claimed_at
               FROM reward_claims WHERE user_id = ? ORDER BY claimed_at DESC`
    rows, err := r.db.QueryContext(ctx, q, userID)
    if err != nil {
        return nil, err
    }
    defer rows.Close()
    out := make([]*model.RewardClaim, 0)
    for rows.Next() {
        var c model.RewardClaim
        if err := rows.Scan(&c.ID, &c.UserID, &c.RewardType, &c.TokenIssuedAtMS, &c.TokenSalt, &c.ClaimedAt); err != nil {
            return nil, err
        }
        out = append(out, &c)
    }
    return out, rows.Err()
}
