// Package repository contains the MySQL data access layer.  This file
// defines error values reused across multiple repositories.  Sentinels
// for domain rejections (session not found, booking not found, already
// claimed and so on) live with the components that own the semantics,
// in the booking and checkin packages; repositories return those
// directly so handlers and services only ever match one set of errors.
package repository

import "errors"

// ErrConflict is returned when a delete or update cannot be performed
// because of conflicting state, such as deleting a session that still
// has occupying bookings. Handlers should translate this into an HTTP
// 409 response.
var ErrConflict = errors.New("conflict")

// ErrEmailExists is returned when registering with an email that is
// already taken.
var ErrEmailExists = errors.New("email already exists")

// ErrCouponExists is returned when creating a coupon whose code is
// already in use.
var ErrCouponExists = errors.New("coupon code already exists")
