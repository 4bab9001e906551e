package booking

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/gym-class-booking/internal/model"
)

// ----- in-memory stores -----

type fakeMemberships struct {
	valid map[uint64]bool
	err   error
}

func (f *fakeMemberships) HasValidMembership(_ context.Context, userID uint64, _ time.Time) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.valid[userID], nil
}

type fakeSessions struct {
	sessions map[uint64]*model.Session
}

func (f *fakeSessions) GetSession(_ context.Context, id uint64) (*model.Session, error) {
	s, ok := f.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *fakeSessions) GetSessions(_ context.Context, ids []uint64) ([]*model.Session, error) {
	out := make([]*model.Session, 0, len(ids))
	for _, id := range ids {
		if s, ok := f.sessions[id]; ok {
			cp := *s
			out = append(out, &cp)
		}
	}
	return out, nil
}

type fakeBookings struct {
	mu     sync.Mutex
	nextID uint64
	items  []*model.Booking
	now    func() time.Time
}

func newFakeBookings(now func() time.Time) *fakeBookings {
	return &fakeBookings{nextID: 1, now: now}
}

func (f *fakeBookings) ActiveBookingExists(_ context.Context, userID, sessionID uint64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.items {
		if b.UserID == userID && b.SessionID == sessionID && b.Status != model.BookingCancelled {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeBookings) countOccupyingLocked(sessionID uint64) int {
	n := 0
	for _, b := range f.items {
		if b.SessionID == sessionID && b.Status.Occupies() {
			n++
		}
	}
	return n
}

func (f *fakeBookings) CountOccupying(_ context.Context, sessionID uint64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.countOccupyingLocked(sessionID), nil
}

func (f *fakeBookings) CountOccupyingBatch(_ context.Context, sessionIDs []uint64) (map[uint64]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[uint64]int, len(sessionIDs))
	for _, id := range sessionIDs {
		if n := f.countOccupyingLocked(id); n > 0 {
			out[id] = n
		}
	}
	return out, nil
}

func (f *fakeBookings) InsertIfCapacity(_ context.Context, userID, sessionID uint64, capacity *int) (*model.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if capacity != nil && f.countOccupyingLocked(sessionID) >= *capacity {
		return nil, ErrSessionFull
	}
	now := f.now()
	b := &model.Booking{
		ID: f.nextID, UserID: userID, SessionID: sessionID,
		Status: model.BookingBooked, CreatedAt: now, UpdatedAt: now,
	}
	f.nextID++
	f.items = append(f.items, b)
	cp := *b
	return &cp, nil
}

func (f *fakeBookings) GetBookingForUser(_ context.Context, bookingID, userID uint64) (*model.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.items {
		if b.ID == bookingID && b.UserID == userID {
			cp := *b
			return &cp, nil
		}
	}
	return nil, ErrBookingNotFound
}

func (f *fakeBookings) GetBooking(_ context.Context, bookingID uint64) (*model.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.items {
		if b.ID == bookingID {
			cp := *b
			return &cp, nil
		}
	}
	return nil, ErrBookingNotFound
}

func (f *fakeBookings) UpdateStatus(_ context.Context, bookingID uint64, from, to model.BookingStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.items {
		if b.ID == bookingID && b.Status == from {
			b.Status = to
			b.UpdatedAt = f.now()
			return nil
		}
	}
	return ErrInvalidTransition
}

func (f *fakeBookings) ListByUser(_ context.Context, userID uint64) ([]*model.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*model.Booking
	for i := len(f.items) - 1; i >= 0; i-- {
		if f.items[i].UserID == userID {
			cp := *f.items[i]
			out = append(out, &cp)
		}
	}
	return out, nil
}

// ----- fixtures -----

var testNow = time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC)

func intp(n int) *int { return &n }

func newTestEngine(t *testing.T, sessions map[uint64]*model.Session, validUsers ...uint64) (*Engine, *fakeBookings) {
	t.Helper()
	valid := make(map[uint64]bool, len(validUsers))
	for _, u := range validUsers {
		valid[u] = true
	}
	clock := func() time.Time { return testNow }
	fb := newFakeBookings(clock)
	e := NewEngine(&fakeMemberships{valid: valid}, &fakeSessions{sessions: sessions}, fb, WithClock(clock))
	return e, fb
}

func futureSession(id uint64, startsIn time.Duration, capacity *int) *model.Session {
	return &model.Session{
		ID:       id,
		Name:     "Morning Yoga",
		StartsAt: testNow.Add(startsIn),
		EndsAt:   testNow.Add(startsIn + time.Hour),
		Capacity: capacity,
	}
}

// ----- CreateBooking -----

func TestCreateBooking(t *testing.T) {
	ctx := context.Background()

	t.Run("happy path", func(t *testing.T) {
		e, _ := newTestEngine(t, map[uint64]*model.Session{
			1: futureSession(1, 48*time.Hour, intp(20)),
		}, 10)

		b, err := e.CreateBooking(ctx, 10, 1)
		require.NoError(t, err)
		assert.Equal(t, model.BookingBooked, b.Status)
		assert.Equal(t, uint64(10), b.UserID)
		assert.Equal(t, uint64(1), b.SessionID)

		occ, err := e.GetOccupancy(ctx, []uint64{1})
		require.NoError(t, err)
		assert.Equal(t, 1, occ[1].Booked)
		assert.Equal(t, 19, occ[1].Available)
	})

	t.Run("membership invalid", func(t *testing.T) {
		e, _ := newTestEngine(t, map[uint64]*model.Session{
			1: futureSession(1, 48*time.Hour, intp(20)),
		}) // no valid users
		_, err := e.CreateBooking(ctx, 10, 1)
		assert.ErrorIs(t, err, ErrMembershipInvalid)
	})

	t.Run("membership checked before session existence", func(t *testing.T) {
		e, _ := newTestEngine(t, map[uint64]*model.Session{})
		_, err := e.CreateBooking(ctx, 10, 999)
		assert.ErrorIs(t, err, ErrMembershipInvalid)
	})

	t.Run("duplicate booking", func(t *testing.T) {
		e, _ := newTestEngine(t, map[uint64]*model.Session{
			1: futureSession(1, 48*time.Hour, intp(20)),
		}, 10)
		_, err := e.CreateBooking(ctx, 10, 1)
		require.NoError(t, err)
		_, err = e.CreateBooking(ctx, 10, 1)
		assert.ErrorIs(t, err, ErrDuplicateBooking)
	})

	t.Run("rebooking after cancel allowed", func(t *testing.T) {
		e, _ := newTestEngine(t, map[uint64]*model.Session{
			1: futureSession(1, 48*time.Hour, intp(20)),
		}, 10)
		b, err := e.CreateBooking(ctx, 10, 1)
		require.NoError(t, err)
		_, err = e.CancelBooking(ctx, 10, b.ID)
		require.NoError(t, err)
		_, err = e.CreateBooking(ctx, 10, 1)
		assert.NoError(t, err)
	})

	t.Run("session not found", func(t *testing.T) {
		e, _ := newTestEngine(t, map[uint64]*model.Session{}, 10)
		_, err := e.CreateBooking(ctx, 10, 999)
		assert.ErrorIs(t, err, ErrSessionNotFound)
	})

	t.Run("session already started", func(t *testing.T) {
		e, _ := newTestEngine(t, map[uint64]*model.Session{
			1: futureSession(1, -time.Minute, intp(20)),
		}, 10)
		_, err := e.CreateBooking(ctx, 1, 1)
		assert.ErrorIs(t, err, ErrMembershipInvalid) // user 1 has no membership

		_, err = e.CreateBooking(ctx, 10, 1)
		assert.ErrorIs(t, err, ErrSessionInPast)
	})

	t.Run("session starting this instant", func(t *testing.T) {
		e, _ := newTestEngine(t, map[uint64]*model.Session{
			1: futureSession(1, 0, intp(20)),
		}, 10)
		_, err := e.CreateBooking(ctx, 10, 1)
		assert.ErrorIs(t, err, ErrSessionInPast)
	})

	t.Run("session full", func(t *testing.T) {
		e, _ := newTestEngine(t, map[uint64]*model.Session{
			1: futureSession(1, 48*time.Hour, intp(1)),
		}, 10, 11)
		_, err := e.CreateBooking(ctx, 10, 1)
		require.NoError(t, err)
		_, err = e.CreateBooking(ctx, 11, 1)
		assert.ErrorIs(t, err, ErrSessionFull)
	})

	t.Run("unlimited capacity", func(t *testing.T) {
		e, _ := newTestEngine(t, map[uint64]*model.Session{
			1: futureSession(1, 48*time.Hour, nil),
		}, 10, 11, 12)
		for _, uid := range []uint64{10, 11, 12} {
			_, err := e.CreateBooking(ctx, uid, 1)
			require.NoError(t, err)
		}
		occ, err := e.GetOccupancy(ctx, []uint64{1})
		require.NoError(t, err)
		assert.Equal(t, 3, occ[1].Booked)
		assert.Equal(t, Unlimited, occ[1].Available)
	})
}

func TestCreateBookingCapacityRace(t *testing.T) {
	ctx := context.Background()
	const racers = 32

	userIDs := make([]uint64, racers)
	for i := range userIDs {
		userIDs[i] = uint64(100 + i)
	}
	e, fb := newTestEngine(t, map[uint64]*model.Session{
		1: futureSession(1, 48*time.Hour, intp(1)),
	}, userIDs...)

	var wg sync.WaitGroup
	results := make(chan error, racers)
	for _, uid := range userIDs {
		wg.Add(1)
		go func(uid uint64) {
			defer wg.Done()
			_, err := e.CreateBooking(ctx, uid, 1)
			results <- err
		}(uid)
	}
	wg.Wait()
	close(results)

	var wins, fulls int
	for err := range results {
		switch {
		case err == nil:
			wins++
		case assert.ErrorIs(t, err, ErrSessionFull):
			fulls++
		}
	}
	assert.Equal(t, 1, wins, "exactly one booking may land in the last slot")
	assert.Equal(t, racers-1, fulls)

	n, err := fb.CountOccupying(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

// ----- CancelBooking -----

func TestCancelBooking(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T, startsIn time.Duration) (*Engine, *model.Booking) {
		t.Helper()
		// Book while the session is far out, then move its start.
		sessions := map[uint64]*model.Session{
			1: futureSession(1, 30*24*time.Hour, intp(20)),
		}
		e, _ := newTestEngine(t, sessions, 10)
		b, err := e.CreateBooking(ctx, 10, 1)
		require.NoError(t, err)
		sessions[1].StartsAt = testNow.Add(startsIn)
		sessions[1].EndsAt = testNow.Add(startsIn + time.Hour)
		return e, b
	}

	t.Run("more than 24h before start", func(t *testing.T) {
		e, b := setup(t, 25*time.Hour)
		got, err := e.CancelBooking(ctx, 10, b.ID)
		require.NoError(t, err)
		assert.Equal(t, model.BookingCancelled, got.Status)
	})

	t.Run("exactly 24h before start", func(t *testing.T) {
		e, b := setup(t, 24*time.Hour)
		_, err := e.CancelBooking(ctx, 10, b.ID)
		assert.NoError(t, err)
	})

	t.Run("23h before start blocked", func(t *testing.T) {
		e, b := setup(t, 23*time.Hour)
		_, err := e.CancelBooking(ctx, 10, b.ID)
		assert.ErrorIs(t, err, ErrCancellationWindow)
	})

	t.Run("one second inside window blocked", func(t *testing.T) {
		e, b := setup(t, 24*time.Hour-time.Second)
		_, err := e.CancelBooking(ctx, 10, b.ID)
		assert.ErrorIs(t, err, ErrCancellationWindow)
	})

	t.Run("session started an hour ago", func(t *testing.T) {
		e, b := setup(t, -time.Hour)
		_, err := e.CancelBooking(ctx, 10, b.ID)
		assert.ErrorIs(t, err, ErrSessionStarted)
	})

	t.Run("session starting now", func(t *testing.T) {
		e, b := setup(t, 0)
		_, err := e.CancelBooking(ctx, 10, b.ID)
		assert.ErrorIs(t, err, ErrSessionStarted)
	})

	t.Run("already cancelled", func(t *testing.T) {
		e, b := setup(t, 48*time.Hour)
		_, err := e.CancelBooking(ctx, 10, b.ID)
		require.NoError(t, err)
		_, err = e.CancelBooking(ctx, 10, b.ID)
		assert.ErrorIs(t, err, ErrAlreadyCancelled)
	})

	t.Run("someone else's booking reads as not found", func(t *testing.T) {
		e, b := setup(t, 48*time.Hour)
		_, err := e.CancelBooking(ctx, 11, b.ID)
		assert.ErrorIs(t, err, ErrBookingNotFound)
	})

	t.Run("unknown booking", func(t *testing.T) {
		e, _ := newTestEngine(t, map[uint64]*model.Session{}, 10)
		_, err := e.CancelBooking(ctx, 10, 999)
		assert.ErrorIs(t, err, ErrBookingNotFound)
	})

	t.Run("cancel frees the slot", func(t *testing.T) {
		sessions := map[uint64]*model.Session{
			1: futureSession(1, 48*time.Hour, intp(1)),
		}
		e, _ := newTestEngine(t, sessions, 10, 11)
		b, err := e.CreateBooking(ctx, 10, 1)
		require.NoError(t, err)
		_, err = e.CreateBooking(ctx, 11, 1)
		require.ErrorIs(t, err, ErrSessionFull)

		_, err = e.CancelBooking(ctx, 10, b.ID)
		require.NoError(t, err)
		_, err = e.CreateBooking(ctx, 11, 1)
		assert.NoError(t, err)
	})
}

// ----- SetStatus -----

func TestSetStatus(t *testing.T) {
	ctx := context.Background()

	newBooking := func(t *testing.T) (*Engine, *model.Booking) {
		t.Helper()
		e, _ := newTestEngine(t, map[uint64]*model.Session{
			1: futureSession(1, 48*time.Hour, intp(20)),
		}, 10)
		b, err := e.CreateBooking(ctx, 10, 1)
		require.NoError(t, err)
		return e, b
	}

	t.Run("booked to attended", func(t *testing.T) {
		e, b := newBooking(t)
		got, err := e.SetStatus(ctx, b.ID, model.BookingAttended)
		require.NoError(t, err)
		assert.Equal(t, model.BookingAttended, got.Status)
	})

	t.Run("booked to confirmed to no_show", func(t *testing.T) {
		e, b := newBooking(t)
		_, err := e.SetStatus(ctx, b.ID, model.BookingConfirmed)
		require.NoError(t, err)
		got, err := e.SetStatus(ctx, b.ID, model.BookingNoShow)
		require.NoError(t, err)
		assert.Equal(t, model.BookingNoShow, got.Status)
	})

	t.Run("terminal states are final", func(t *testing.T) {
		e, b := newBooking(t)
		_, err := e.SetStatus(ctx, b.ID, model.BookingAttended)
		require.NoError(t, err)
		for _, next := range []model.BookingStatus{
			model.BookingBooked, model.BookingConfirmed, model.BookingCancelled, model.BookingNoShow,
		} {
			_, err := e.SetStatus(ctx, b.ID, next)
			assert.ErrorIs(t, err, ErrInvalidTransition, "attended -> %s", next)
		}
	})

	t.Run("unknown status", func(t *testing.T) {
		e, b := newBooking(t)
		_, err := e.SetStatus(ctx, b.ID, model.BookingStatus("vanished"))
		assert.ErrorIs(t, err, ErrInvalidTransition)
	})
}

// ----- error taxonomy -----

func TestUserMessageTotal(t *testing.T) {
	kinds := []error{
		ErrMembershipInvalid, ErrDuplicateBooking, ErrSessionNotFound,
		ErrSessionInPast, ErrSessionFull, ErrBookingNotFound,
		ErrAlreadyCancelled, ErrCancellationWindow, ErrSessionStarted,
		ErrInvalidTransition, ErrStoreUnavailable,
	}
	seen := make(map[string]error, len(kinds))
	for _, kind := range kinds {
		msg := UserMessage(kind)
		require.NotEmpty(t, msg)
		assert.NotEqual(t, "Something went wrong", msg, "error %v has no dedicated message", kind)
		if prev, dup := seen[msg]; dup {
			t.Errorf("errors %v and %v share message %q", prev, kind, msg)
		}
		seen[msg] = kind
	}

	// Wrapped store errors keep their mapping.
	wrapped := StoreError(context.DeadlineExceeded)
	assert.Equal(t, UserMessage(ErrStoreUnavailable), UserMessage(wrapped))
}
