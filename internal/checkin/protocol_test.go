package checkin

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/gym-class-booking/internal/model"
	"github.com/iliyamo/gym-class-booking/internal/qrtoken"
)

// ----- in-memory stores -----

type fakeCheckIns struct {
	mu        sync.Mutex
	nextID    uint64
	items     []*model.CheckIn
	lastSince time.Time // window start of the most recent hours query
}

func (f *fakeCheckIns) CreateCheckIn(_ context.Context, userID uint64, at time.Time) (*model.CheckIn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	ci := &model.CheckIn{ID: f.nextID, UserID: userID, CheckedInAt: at}
	f.items = append(f.items, ci)
	cp := *ci
	return &cp, nil
}

func (f *fakeCheckIns) CloseLatestOpen(_ context.Context, userID uint64, at time.Time) (*model.CheckIn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var latest *model.CheckIn
	for _, ci := range f.items {
		if ci.UserID == userID && ci.CheckedOutAt == nil {
			if latest == nil || ci.CheckedInAt.After(latest.CheckedInAt) {
				latest = ci
			}
		}
	}
	if latest == nil {
		return nil, ErrNoOpenCheckIn
	}
	out := at
	latest.CheckedOutAt = &out
	cp := *latest
	return &cp, nil
}

func (f *fakeCheckIns) CountOpen(_ context.Context, userID uint64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, ci := range f.items {
		if ci.UserID == userID && ci.CheckedOutAt == nil {
			n++
		}
	}
	return n, nil
}

func (f *fakeCheckIns) SumClosedHoursSince(_ context.Context, userID uint64, since time.Time) (float64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastSince = since
	total := 0.0
	for _, ci := range f.items {
		if ci.UserID == userID && ci.CheckedOutAt != nil && ci.CheckedInAt.After(since) {
			total += ci.CheckedOutAt.Sub(ci.CheckedInAt).Hours()
		}
	}
	return total, nil
}

func (f *fakeCheckIns) ListByUser(_ context.Context, userID uint64) ([]*model.CheckIn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.CheckIn
	for i := len(f.items) - 1; i >= 0; i-- {
		if f.items[i].UserID == userID {
			cp := *f.items[i]
			out = append(out, &cp)
		}
	}
	return out, nil
}

// addVisit seeds one closed visit of the given length ending now.
func (f *fakeCheckIns) addVisit(userID uint64, at time.Time, length time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	end := at.Add(length)
	f.items = append(f.items, &model.CheckIn{
		ID: f.nextID, UserID: userID, CheckedInAt: at, CheckedOutAt: &end,
	})
}

type fakeClaims struct {
	mu     sync.Mutex
	nextID uint64
	byKey  map[string]*model.RewardClaim
}

func newFakeClaims() *fakeClaims {
	return &fakeClaims{byKey: map[string]*model.RewardClaim{}}
}

func (f *fakeClaims) LatestClaimTime(_ context.Context, userID uint64) (time.Time, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var latest time.Time
	found := false
	for _, cl := range f.byKey {
		if cl.UserID == userID && cl.ClaimedAt.After(latest) {
			latest = cl.ClaimedAt
			found = true
		}
	}
	return latest, found, nil
}

func (f *fakeClaims) InsertClaim(_ context.Context, claim *model.RewardClaim) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := fmt.Sprintf("%d|%d|%s", claim.UserID, claim.TokenIssuedAtMS, claim.TokenSalt)
	if _, dup := f.byKey[key]; dup {
		return ErrAlreadyClaimed
	}
	f.nextID++
	claim.ID = f.nextID
	cp := *claim
	f.byKey[key] = &cp
	return nil
}

type fakeAttendance struct {
	mu      sync.Mutex
	records map[uint64][]time.Time // userID -> booking creation times of attended classes
}

func (f *fakeAttendance) CountAttendedSince(_ context.Context, userID uint64, since time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, at := range f.records[userID] {
		if at.After(since) {
			n++
		}
	}
	return n, nil
}

func (f *fakeAttendance) attend(userID uint64, times ...time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[userID] = append(f.records[userID], times...)
}

// ----- fixtures -----

var scanNow = time.Date(2025, 6, 2, 18, 0, 0, 0, time.UTC)

type testEnv struct {
	svc      *Service
	codec    *qrtoken.Codec
	checkins *fakeCheckIns
	claims   *fakeClaims
	att      *fakeAttendance
}

func newTestEnv(t *testing.T, opts ...Option) *testEnv {
	t.Helper()
	// The codec and the service share the pinned clock so liveness and
	// the recorded check-in times agree.
	codec := qrtoken.New("test-secret", 0, qrtoken.WithClock(func() time.Time { return scanNow }))
	env := &testEnv{
		codec:    codec,
		checkins: &fakeCheckIns{},
		claims:   newFakeClaims(),
		att:      &fakeAttendance{records: map[uint64][]time.Time{}},
	}
	opts = append([]Option{WithClock(func() time.Time { return scanNow })}, opts...)
	env.svc = NewService(codec, env.checkins, env.claims, env.att, opts...)
	return env
}

// token mints a token issued at the given instant.
func (env *testEnv) token(t *testing.T, userID uint64, action qrtoken.Action, salt string, issuedAt time.Time) string {
	t.Helper()
	c := qrtoken.New("test-secret", 0)
	tok, _, err := c.IssueAt(userID, action, salt, issuedAt)
	require.NoError(t, err)
	return tok
}

// ----- Redeem -----

func TestRedeemEntry(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	res, err := env.svc.Redeem(ctx, env.token(t, 7, qrtoken.ActionEntry, "", scanNow))
	require.NoError(t, err)
	assert.Equal(t, qrtoken.ActionEntry, res.Action)
	assert.Equal(t, uint64(7), res.UserID)
	require.NotNil(t, res.CheckIn)
	assert.Nil(t, res.CheckIn.CheckedOutAt)
	assert.Equal(t, 1, res.OpenCheckIns)
}

func TestRedeemEntryWithOpenVisitFlagsAnomaly(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	_, err := env.svc.Redeem(ctx, env.token(t, 7, qrtoken.ActionEntry, "", scanNow))
	require.NoError(t, err)
	res, err := env.svc.Redeem(ctx, env.token(t, 7, qrtoken.ActionEntry, "", scanNow))
	require.NoError(t, err, "second entry is allowed, not an error")
	assert.Equal(t, 2, res.OpenCheckIns)
}

func TestRedeemExit(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	_, err := env.svc.Redeem(ctx, env.token(t, 7, qrtoken.ActionEntry, "", scanNow))
	require.NoError(t, err)

	res, err := env.svc.Redeem(ctx, env.token(t, 7, qrtoken.ActionExit, "", scanNow))
	require.NoError(t, err)
	require.NotNil(t, res.CheckIn)
	require.NotNil(t, res.CheckIn.CheckedOutAt)
	assert.Equal(t, scanNow, *res.CheckIn.CheckedOutAt)
}

func TestRedeemExitWithoutOpenVisit(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	_, err := env.svc.Redeem(ctx, env.token(t, 7, qrtoken.ActionExit, "", scanNow))
	assert.ErrorIs(t, err, ErrNoOpenCheckIn)
}

func TestRedeemTokenValidation(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)

	t.Run("expired", func(t *testing.T) {
		tok := env.token(t, 7, qrtoken.ActionEntry, "", scanNow.Add(-6*time.Minute))
		_, err := env.svc.Redeem(ctx, tok)
		assert.ErrorIs(t, err, ErrTokenExpired)
	})

	t.Run("expired exactly at the window boundary", func(t *testing.T) {
		tok := env.token(t, 7, qrtoken.ActionEntry, "", scanNow.Add(-5*time.Minute))
		_, err := env.svc.Redeem(ctx, tok)
		assert.ErrorIs(t, err, ErrTokenExpired)
	})

	t.Run("still live just before expiry", func(t *testing.T) {
		tok := env.token(t, 7, qrtoken.ActionEntry, "", scanNow.Add(-5*time.Minute+time.Millisecond))
		_, err := env.svc.Redeem(ctx, tok)
		assert.NoError(t, err)
	})

	t.Run("garbage", func(t *testing.T) {
		_, err := env.svc.Redeem(ctx, "not-a-token")
		assert.ErrorIs(t, err, qrtoken.ErrTokenMalformed)
	})

	t.Run("unsigned token rejected", func(t *testing.T) {
		tok, _, err := qrtoken.New("", 0).Issue(7, qrtoken.ActionEntry, "")
		require.NoError(t, err)
		_, err = env.svc.Redeem(ctx, tok)
		assert.ErrorIs(t, err, qrtoken.ErrTokenForged)
	})

	t.Run("reward token does not belong at the scanner", func(t *testing.T) {
		tok := env.token(t, 7, qrtoken.ActionReward, "s", scanNow)
		_, err := env.svc.Redeem(ctx, tok)
		assert.ErrorIs(t, err, qrtoken.ErrTokenMalformed)
	})

	// Nothing was persisted by any of the rejected scans.
	n, err := env.checkins.CountOpen(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, 1, n) // only the live-just-before-expiry entry
}

// ----- Progress / Eligible -----

func TestProgress(t *testing.T) {
	ctx := context.Background()

	t.Run("no history", func(t *testing.T) {
		env := newTestEnv(t)
		p, err := env.svc.Progress(ctx, 7)
		require.NoError(t, err)
		assert.Zero(t, p.Hours)
		assert.Zero(t, p.Classes)
		assert.False(t, env.svc.Eligible(p))
	})

	t.Run("counts hours and classes", func(t *testing.T) {
		env := newTestEnv(t)
		env.checkins.addVisit(7, scanNow.Add(-48*time.Hour), 90*time.Minute)
		env.checkins.addVisit(7, scanNow.Add(-24*time.Hour), 2*time.Hour)
		env.att.attend(7, scanNow.Add(-40*time.Hour), scanNow.Add(-20*time.Hour))

		p, err := env.svc.Progress(ctx, 7)
		require.NoError(t, err)
		assert.InDelta(t, 3.5, p.Hours, 1e-9)
		assert.Equal(t, 2, p.Classes)
	})

	t.Run("display hours truncate, eligibility uses exact", func(t *testing.T) {
		env := newTestEnv(t, WithTargets(2.95, 1))
		// 2.99 hours: displays as 2.9, still above a 2.95 target.
		env.checkins.addVisit(7, scanNow.Add(-24*time.Hour), time.Duration(2.99*float64(time.Hour)))
		env.att.attend(7, scanNow.Add(-20*time.Hour))

		p, err := env.svc.Progress(ctx, 7)
		require.NoError(t, err)
		assert.Equal(t, 2.9, p.DisplayHours)
		assert.True(t, env.svc.Eligible(p))
	})

	t.Run("never claimed counts everything from a datetime-safe floor", func(t *testing.T) {
		env := newTestEnv(t)
		// A visit decades back still counts before any claim exists.
		env.checkins.addVisit(7, time.Date(1990, 1, 1, 9, 0, 0, 0, time.UTC), time.Hour)

		p, err := env.svc.Progress(ctx, 7)
		require.NoError(t, err)
		assert.InDelta(t, 1.0, p.Hours, 1e-9)
		// The store never sees the zero time: year 1 is below the range
		// a MySQL DATETIME column accepts.
		assert.Equal(t, progressFloor, env.checkins.lastSince)
	})

	t.Run("open visits do not count", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.svc.Redeem(ctx, env.token(t, 7, qrtoken.ActionEntry, "", scanNow))
		require.NoError(t, err)
		p, err := env.svc.Progress(ctx, 7)
		require.NoError(t, err)
		assert.Zero(t, p.Hours)
	})
}

func TestEligibleBothGoalsRequired(t *testing.T) {
	env := newTestEnv(t)
	tests := []struct {
		name    string
		hours   float64
		classes int
		want    bool
	}{
		{name: "both short", hours: 10, classes: 10, want: false},
		{name: "hours short", hours: 14.9, classes: 16, want: false},
		{name: "classes short", hours: 20, classes: 14, want: false},
		{name: "both exactly met", hours: 15.0, classes: 15, want: true},
		{name: "both exceeded", hours: 16, classes: 16, want: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := env.svc.Eligible(model.RewardProgress{Hours: tt.hours, Classes: tt.classes})
			assert.Equal(t, tt.want, got)
		})
	}
}

// ----- ClaimReward -----

// seedEligibleFrom gives the user enough closed hours and attendance,
// all timestamped after start, to pass both default goals.
func seedEligibleFrom(env *testEnv, userID uint64, start time.Time) {
	for i := 0; i < 15; i++ {
		at := start.Add(time.Duration(i+1) * time.Minute)
		env.checkins.addVisit(userID, at, 65*time.Minute)
		env.att.attend(userID, at)
	}
}

// seedEligible seeds effort in the weeks before scanNow.
func seedEligible(env *testEnv, userID uint64) {
	seedEligibleFrom(env, userID, scanNow.Add(-30*24*time.Hour))
}

func TestClaimReward(t *testing.T) {
	ctx := context.Background()

	t.Run("happy path", func(t *testing.T) {
		env := newTestEnv(t)
		seedEligible(env, 7)

		tok := env.token(t, 7, qrtoken.ActionReward, "salt-a", scanNow)
		claim, err := env.svc.ClaimReward(ctx, 7, tok, "")
		require.NoError(t, err)
		assert.Equal(t, "milestone", claim.RewardType)
		assert.Equal(t, uint64(7), claim.UserID)
		assert.Equal(t, scanNow, claim.ClaimedAt)
	})

	t.Run("custom reward type", func(t *testing.T) {
		env := newTestEnv(t)
		seedEligible(env, 7)
		tok := env.token(t, 7, qrtoken.ActionReward, "salt-b", scanNow)
		claim, err := env.svc.ClaimReward(ctx, 7, tok, "free-smoothie")
		require.NoError(t, err)
		assert.Equal(t, "free-smoothie", claim.RewardType)
	})

	t.Run("entry token rejected as malformed", func(t *testing.T) {
		env := newTestEnv(t)
		seedEligible(env, 7)
		tok := env.token(t, 7, qrtoken.ActionEntry, "", scanNow)
		_, err := env.svc.ClaimReward(ctx, 7, tok, "")
		assert.ErrorIs(t, err, qrtoken.ErrTokenMalformed)
	})

	t.Run("expired", func(t *testing.T) {
		env := newTestEnv(t)
		seedEligible(env, 7)
		tok := env.token(t, 7, qrtoken.ActionReward, "s", scanNow.Add(-5*time.Minute))
		_, err := env.svc.ClaimReward(ctx, 7, tok, "")
		assert.ErrorIs(t, err, ErrTokenExpired)
	})

	t.Run("someone else's token", func(t *testing.T) {
		env := newTestEnv(t)
		seedEligible(env, 7)
		seedEligible(env, 8)
		tok := env.token(t, 8, qrtoken.ActionReward, "s", scanNow)
		_, err := env.svc.ClaimReward(ctx, 7, tok, "")
		assert.ErrorIs(t, err, ErrTokenUserMismatch)
	})

	t.Run("goal not reached", func(t *testing.T) {
		env := newTestEnv(t)
		// 14 visits and 16 classes: hours goal unmet.
		for i := 0; i < 14; i++ {
			env.checkins.addVisit(7, scanNow.Add(-time.Duration(i+2)*24*time.Hour), time.Hour)
		}
		env.att.attend(7, scanNow.Add(-48*time.Hour))

		tok := env.token(t, 7, qrtoken.ActionReward, "s", scanNow)
		_, err := env.svc.ClaimReward(ctx, 7, tok, "")
		assert.ErrorIs(t, err, ErrGoalNotReached)
	})

	t.Run("same token claims once", func(t *testing.T) {
		env := newTestEnv(t)
		seedEligible(env, 7)
		// A claim resets the counting window, so seed post-claim
		// effort too: the second attempt must pass the goal gate and
		// reach the storage guard.
		seedEligibleFrom(env, 7, scanNow)

		tok := env.token(t, 7, qrtoken.ActionReward, "salt-c", scanNow)
		_, err := env.svc.ClaimReward(ctx, 7, tok, "")
		require.NoError(t, err)
		_, err = env.svc.ClaimReward(ctx, 7, tok, "")
		assert.ErrorIs(t, err, ErrAlreadyClaimed)
	})

	t.Run("claim resets the counting window", func(t *testing.T) {
		env := newTestEnv(t)
		seedEligible(env, 7)

		tok := env.token(t, 7, qrtoken.ActionReward, "salt-d", scanNow)
		_, err := env.svc.ClaimReward(ctx, 7, tok, "")
		require.NoError(t, err)

		p, err := env.svc.Progress(ctx, 7)
		require.NoError(t, err)
		assert.Zero(t, p.Hours, "pre-claim visits no longer count")
		assert.Zero(t, p.Classes)
	})
}

func TestClaimRewardConcurrentRedemption(t *testing.T) {
	ctx := context.Background()
	env := newTestEnv(t)
	seedEligible(env, 7)
	// Post-claim effort keeps the losers on the storage guard rather
	// than the goal gate once the winner's claim resets the window.
	seedEligibleFrom(env, 7, scanNow)

	tok := env.token(t, 7, qrtoken.ActionReward, "salt-race", scanNow)

	const racers = 16
	var wg sync.WaitGroup
	results := make(chan error, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := env.svc.ClaimReward(ctx, 7, tok, "")
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	var wins, dups int
	for err := range results {
		switch {
		case err == nil:
			wins++
		case assert.ErrorIs(t, err, ErrAlreadyClaimed):
			dups++
		}
	}
	assert.Equal(t, 1, wins, "one displayed code produces exactly one claim")
	assert.Equal(t, racers-1, dups)
}
