package booking

import (
    "context"
)

// Unlimited is the Available sentinel for sessions without a capacity.
const Unlimited = -1

// Occupancy is the booked-vs-capacity answer for one session.
// Available is Unlimited (-1) when the session has no capacity set, and
// never goes below zero otherwise.
type Occupancy struct {
    Capacity  *int `json:"capacity"`
    Booked    int  `json:"booked"`
    Available int  `json:"available"`
}

// GetOccupancy computes occupancy for a batch of sessions in two
// queries regardless of batch size.  It is read-only and tolerant of
// seconds of staleness: the numbers are a hint for schedule rendering,
// not a lock.  The authoritative capacity check happens inside the
// CreateBooking insert.  Session ids with no matching session row are
// absent from the result.
func (e *Engine) GetOccupancy(ctx context.Context, sessionIDs []uint64) (map[uint64]Occupancy, error) {
    out := make(map[uint64]Occupancy, len(sessionIDs))
    if len(sessionIDs) == 0 {
        return out, nil
    }

    sessions, err := e.sessions.GetSessions(ctx, sessionIDs)
    if err != nil {
        return nil, StoreError(err)
    }
    counts, err := e.bookings.CountOccupyingBatch(ctx, sessionIDs)
    if err != nil {
        return nil, StoreError(err)
    }

    for _, s := range sessions {
        occ := Occupancy{Capacity: s.Capacity, Booked: counts[s.ID]}
        if s.Capacity == nil {
            occ.Available = Unlimited
        } else {
            occ.Available = *s.Capacity - occ.Booked
            if occ.Available < 0 {
                occ.Available = 0
            }
        }
        out[s.ID] = occ
    }
    return out, nil
}
