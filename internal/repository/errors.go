// Package repository contains the data access layer.  This file defines
// sentinel errors shared across repositories so handlers can translate
// failure modes into specific HTTP responses instead of generic 500s.
package repository

import "errors"

// ErrForbidden is returned when the caller attempts an operation on a
// resource outside their role/ownership scope.  Handlers translate this
// into an HTTP 403 response.
var ErrForbidden = errors.New("forbidden")

// ErrConflict is returned when an operation cannot proceed because of
// conflicting state.  Handlers translate this into an HTTP 409 response.
var ErrConflict = errors.New("conflict")

// ErrEmailExists is returned by user creation when the email is taken.
var ErrEmailExists = errors.New("email already exists")

// ErrUserNotFound indicates a user id did not resolve to a row.
var ErrUserNotFound = errors.New("user not found")

// ErrPolicyNotFound indicates a policy id did not resolve to a row.
var ErrPolicyNotFound = errors.New("policy not found")

// ErrClaimNotFound indicates a claim id did not resolve to a row.
var ErrClaimNotFound = errors.New("claim not found")

// ErrClaimNotDeletable is returned when deleting a claim that is no longer
// pending.  Only pending claims may be removed; everything else keeps its
// audit trail.
var ErrClaimNotDeletable = errors.New("only pending claims can be deleted")
