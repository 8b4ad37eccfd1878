// Package auth holds the core domain types of the sender-constrained token
// system: sessions, refresh records, and the wire claim shapes they produce.
package auth

import "errors"

// Domain-level errors for the auth bounded context.
var (
	// ErrSessionNotFound is returned when a session id has no matching row.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSessionRevoked is returned when an operation requires an active
	// session but the session's revoked_at is set.
	ErrSessionRevoked = errors.New("session revoked")

	// ErrBoundKeyAlreadySet is returned by SetBoundKeyThumbprint when the
	// session already carries a different thumbprint. The field is
	// write-once for the lifetime of the session.
	ErrBoundKeyAlreadySet = errors.New("bound key thumbprint already set")

	// ErrRefreshTokenNotFound is returned when no refresh record matches
	// the presented token hash. Revoked or expired records are still
	// returned by the lookup; callers check IsActive themselves.
	ErrRefreshTokenNotFound = errors.New("refresh token not found")

	// ErrRefreshTokenExpired is returned when a refresh record's
	// expires_at has passed.
	ErrRefreshTokenExpired = errors.New("refresh token expired")

	// ErrRefreshTokenUsed is returned when a refresh record's used_at is
	// already set — evidence of replay under the rotation scheme.
	ErrRefreshTokenUsed = errors.New("refresh token already used")

	// ErrRefreshTokenRevoked is returned when a refresh record's
	// revoked_at is already set.
	ErrRefreshTokenRevoked = errors.New("refresh token revoked")
)
