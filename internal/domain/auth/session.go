package auth

import (
	"time"

	"github.com/google/uuid"
)

// Session is the durable per-session record created at issue-time. Identity
// is an opaque UUID; the subject is the resource owner the session was
// minted for.
//
// Invariants (enforced by the repository, not just this struct):
//   - once RevokedAt is set it is never cleared.
//   - a session is active iff RevokedAt == nil.
//   - BoundKeyThumbprint, once non-nil, never changes for this session id.
type Session struct {
	ID                 uuid.UUID
	Subject            uuid.UUID
	BoundKeyThumbprint *string
	CreatedAt          time.Time
	LastUsedAt         *time.Time
	RevokedAt          *time.Time
}

// NewSession builds a fresh, unrevoked session for subject. boundThumbprint
// may be empty when the client did not present a DPoP key at issuance time.
func NewSession(subject uuid.UUID, boundThumbprint string, now time.Time) Session {
	s := Session{
		ID:        uuid.New(),
		Subject:   subject,
		CreatedAt: now,
	}
	if boundThumbprint != "" {
		s.BoundKeyThumbprint = &boundThumbprint
	}
	return s
}

// IsActive reports whether the session has not been revoked.
func (s Session) IsActive() bool {
	return s.RevokedAt == nil
}

// Revoke marks the session revoked at now. Revocation is irreversible:
// calling Revoke on an already-revoked session is a no-op that keeps the
// original RevokedAt.
func (s *Session) Revoke(now time.Time) {
	if s.RevokedAt != nil {
		return
	}
	s.RevokedAt = &now
}

// Touch records last_used_at. RefreshManager.Refresh does not call it, so
// a successful refresh leaves last_used_at unchanged.
func (s *Session) Touch(now time.Time) {
	s.LastUsedAt = &now
}

// SetBoundKeyThumbprint assigns the DPoP binding if none is set yet. It
// returns ErrBoundKeyAlreadySet if a different thumbprint was already
// recorded, enforcing the write-once invariant in-process; the repository
// enforces the same constraint at the storage layer.
func (s *Session) SetBoundKeyThumbprint(thumbprint string) error {
	if s.BoundKeyThumbprint != nil && *s.BoundKeyThumbprint != thumbprint {
		return ErrBoundKeyAlreadySet
	}
	s.BoundKeyThumbprint = &thumbprint
	return nil
}
