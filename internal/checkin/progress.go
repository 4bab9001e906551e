package checkin

import (
    "context"
    "math"
    "time"

    "github.com/iliyamo/gym-class-booking/internal/booking"
    "github.com/iliyamo/gym-class-booking/internal/model"
)

// progressFloor is the window start used when the member has never
// claimed.  The zero time (year 1) is below what a MySQL DATETIME can
// hold, so the all-history window starts at the column type's minimum
// instead.
var progressFloor = time.Date(1000, 1, 1, 0, 0, 0, 0, time.UTC)

// Progress derives the member's unclaimed effort since their most
// recent reward claim: the exact sum of closed check-in hours and the
// count of attended classes started in that window.  DisplayHours is
// the same hours value truncated to one decimal; the eligibility
// comparison always uses the exact sum.
func (s *Service) Progress(ctx context.Context, userID uint64) (model.RewardProgress, error) {
    since, ok, err := s.claims.LatestClaimTime(ctx, userID)
    if err != nil {
        return model.RewardProgress{}, booking.StoreError(err)
    }
    if !ok {
        since = progressFloor // count everything
    }

    hours, err := s.checkins.SumClosedHoursSince(ctx, userID, since)
    if err != nil {
        return model.RewardProgress{}, booking.StoreError(err)
    }
    classes, err := s.attendance.CountAttendedSince(ctx, userID, since)
    if err != nil {
        return model.RewardProgress{}, booking.StoreError(err)
    }

    return model.RewardProgress{
        Hours:        hours,
        DisplayHours: math.Trunc(hours*10) / 10,
        Classes:      classes,
    }, nil
}

// Eligible reports whether both reward thresholds are met.  Meeting
// only one of the two is not enough.
func (s *Service) Eligible(p model.RewardProgress) bool {
    return p.Hours >= s.hoursTarget && p.Classes >= s.classesTarget
}

// Targets returns the configured thresholds for display alongside
// progress.
func (s *Service) Targets() (hours float64, classes int) {
    return s.hoursTarget, s.classesTarget
}
