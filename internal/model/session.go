package model

import "time"

// Session represents one scheduled occurrence of a class on the gym
// timetable.  Members book against sessions; capacity (when set) caps
// how many non-cancelled bookings a session can hold.
//
// Fields:
//  ID         – primary key identifier.
//  ClassID    – optional reference to the class template this occurrence
//               was scheduled from.
//  Name       – display name shown on the schedule.
//  Instructor – optional instructor name.
//  StartsAt   – when the session begins (UTC).
//  EndsAt     – when the session ends (must be after StartsAt).
//  Capacity   – maximum attendees; nil means unlimited.
//  CreatedAt  – creation timestamp.
//  UpdatedAt  – last update timestamp.
type Session struct {
    ID         uint64     // sessions.id
    ClassID    *uint64    // sessions.class_id (nullable)
    Name       string     // sessions.name
    Instructor *string    // sessions.instructor (nullable)
    StartsAt   time.Time  // sessions.starts_at
    EndsAt     time.Time  // sessions.ends_at
    Capacity   *int       // sessions.capacity (nullable, positive when set)
    CreatedAt  time.Time  // sessions.created_at
    UpdatedAt  time.Time  // sessions.updated_at
}

// ClassTemplate is the reusable definition a session can be scheduled
// from.  Templates carry defaults only; the session row is authoritative
// for anything booking logic reads.
type ClassTemplate struct {
    ID          uint64    // classes.id
    Name        string    // classes.name
    Category    *string   // classes.category (nullable)
    Description *string   // classes.description (nullable)
    CreatedAt   time.Time // classes.created_at
}
