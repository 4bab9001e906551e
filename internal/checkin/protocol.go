package checkin

import (
    "context"
    "time"

    "github.com/iliyamo/gym-class-booking/internal/booking"
    "github.com/iliyamo/gym-class-booking/internal/model"
    "github.com/iliyamo/gym-class-booking/internal/qrtoken"
)

// Default reward thresholds.  Both must be met simultaneously for a
// reward token to be redeemable.
const (
    DefaultHoursTarget   = 15.0
    DefaultClassesTarget = 15
)

// CheckInStore persists gym-floor visits.
type CheckInStore interface {
    // CreateCheckIn opens a visit at the given instant.
    CreateCheckIn(ctx context.Context, userID uint64, at time.Time) (*model.CheckIn, error)

    // CloseLatestOpen sets the check-out time on the user's most recent
    // open check-in and returns it, or ErrNoOpenCheckIn when the user
    // has none.
    CloseLatestOpen(ctx context.Context, userID uint64, at time.Time) (*model.CheckIn, error)

    // CountOpen returns how many check-ins the user currently has open.
    CountOpen(ctx context.Context, userID uint64) (int, error)

    // SumClosedHoursSince returns the total duration, in exact hours,
    // of the user's closed check-ins that started after the given
    // instant.
    SumClosedHoursSince(ctx context.Context, userID uint64, since time.Time) (float64, error)

    // ListByUser returns the user's check-ins, newest first.
    ListByUser(ctx context.Context, userID uint64) ([]*model.CheckIn, error)
}

// ClaimStore persists reward claims.  InsertClaim must be backed by a
// unique index on (user, token timestamp, token salt): two
// near-simultaneous redemptions of the same displayed code must produce
// exactly one claim and one ErrAlreadyClaimed.  An application-level
// check-then-insert cannot provide that.
type ClaimStore interface {
    // LatestClaimTime returns the user's most recent claim time; ok is
    // false when the user has never claimed.
    LatestClaimTime(ctx context.Context, userID uint64) (t time.Time, ok bool, err error)

    // InsertClaim inserts the claim or returns ErrAlreadyClaimed when
    // the claim key already exists.
    InsertClaim(ctx context.Context, claim *model.RewardClaim) error
}

// AttendanceStore reads the booking history the progress tracker counts
// classes from.
type AttendanceStore interface {
    // CountAttendedSince returns how many of the user's bookings moved
    // to attended with a creation time after the given instant.
    CountAttendedSince(ctx context.Context, userID uint64, since time.Time) (int, error)
}

// ScanResult is what the front-desk scanner gets back for an entry or
// exit redemption.
type ScanResult struct {
    Action       qrtoken.Action `json:"action"`
    UserID       uint64         `json:"user_id"`
    CheckIn      *model.CheckIn `json:"-"`
    OpenCheckIns int            `json:"open_checkins"`
}

// Service is the check-in/reward-claim protocol.  Like the booking
// engine it is stateless between requests; every decision is a function
// of the token, the stores and the injected clock.
type Service struct {
    codec         *qrtoken.Codec
    checkins      CheckInStore
    claims        ClaimStore
    attendance    AttendanceStore
    hoursTarget   float64
    classesTarget int
    now           func() time.Time
}

// Option customises a Service.
type Option func(*Service)

// WithTargets overrides the reward thresholds.  Non-positive values
// keep the defaults.
func WithTargets(hours float64, classes int) Option {
    return func(s *Service) {
        if hours > 0 {
            s.hoursTarget = hours
        }
        if classes > 0 {
            s.classesTarget = classes
        }
    }
}

// WithClock injects a clock for tests.
func WithClock(now func() time.Time) Option {
    return func(s *Service) {
        if now != nil {
            s.now = now
        }
    }
}

// NewService constructs the protocol service.  All dependencies must be
// non-nil.
func NewService(codec *qrtoken.Codec, ci CheckInStore, cl ClaimStore, att AttendanceStore, opts ...Option) *Service {
    if codec == nil || ci == nil || cl == nil || att == nil {
        panic("nil dependency passed to checkin.NewService")
    }
    s := &Service{
        codec:         codec,
        checkins:      ci,
        claims:        cl,
        attendance:    att,
        hoursTarget:   DefaultHoursTarget,
        classesTarget: DefaultClassesTarget,
        now:           time.Now,
    }
    for _, opt := range opts {
        opt(s)
    }
    return s
}

// Codec exposes the token codec so handlers can issue tokens with the
// same secret and window the redemption path validates against.
func (s *Service) Codec() *qrtoken.Codec { return s.codec }

// Redeem turns a scanned entry or exit token into a check-in mutation.
// Liveness is checked before storage is touched.  Entry always opens a
// new check-in even when the member already has one open: overlapping
// check-ins are an operator-correctable anomaly, not a hard error, and
// the result carries the open count so the scanner UI can flag it.
// Reward tokens do not belong to this flow and are rejected as
// malformed input.
func (s *Service) Redeem(ctx context.Context, token string) (*ScanResult, error) {
    p, err := s.codec.Decode(token)
    if err != nil {
        return nil, err
    }
    if !s.codec.IsLive(p) {
        return nil, ErrTokenExpired
    }

    now := s.now().UTC()
    switch p.Action {
    case qrtoken.ActionEntry:
        ci, err := s.checkins.CreateCheckIn(ctx, p.UserID, now)
        if err != nil {
            return nil, booking.StoreError(err)
        }
        open, err := s.checkins.CountOpen(ctx, p.UserID)
        if err != nil {
            return nil, booking.StoreError(err)
        }
        return &ScanResult{Action: p.Action, UserID: p.UserID, CheckIn: ci, OpenCheckIns: open}, nil

    case qrtoken.ActionExit:
        ci, err := s.checkins.CloseLatestOpen(ctx, p.UserID, now)
        if err != nil {
            return nil, err
        }
        return &ScanResult{Action: p.Action, UserID: p.UserID, CheckIn: ci}, nil
    }
    return nil, qrtoken.ErrTokenMalformed
}

// ClaimReward redeems a reward token on behalf of the authenticated
// caller.  The order is fixed: liveness, owner match, goal gating, then
// the storage-enforced one-time insert.  The insert is the only step
// that needs a true atomic guarantee; everything before it is
// validation.
func (s *Service) ClaimReward(ctx context.Context, callerID uint64, token, rewardType string) (*model.RewardClaim, error) {
    p, err := s.codec.Decode(token)
    if err != nil {
        return nil, err
    }
    if p.Action != qrtoken.ActionReward {
        return nil, qrtoken.ErrTokenMalformed
    }
    if !s.codec.IsLive(p) {
        return nil, ErrTokenExpired
    }
    if p.UserID != callerID {
        return nil, ErrTokenUserMismatch
    }

    progress, err := s.Progress(ctx, callerID)
    if err != nil {
        return nil, err
    }
    if !s.Eligible(progress) {
        return nil, ErrGoalNotReached
    }

    if rewardType == "" {
        rewardType = "milestone"
    }
    claim := &model.RewardClaim{
        UserID:          callerID,
        RewardType:      rewardType,
        TokenIssuedAtMS: p.IssuedAt,
        TokenSalt:       p.SessionID,
        ClaimedAt:       s.now().UTC(),
    }
    if err := s.claims.InsertClaim(ctx, claim); err != nil {
        return nil, err
    }
    return claim, nil
}

// ListCheckIns returns the member's visit history, newest first.
func (s *Service) ListCheckIns(ctx context.Context, userID uint64) ([]*model.CheckIn, error) {
    items, err := s.checkins.ListByUser(ctx, userID)
    if err != nil {
        return nil, booking.StoreError(err)
    }
    return items, nil
}
