package auth

import (
	"time"

	"github.com/google/uuid"
)

// RefreshRecord is the durable row backing a presented opaque refresh
// token. The plaintext token is never stored — only its SHA-256 hash.
//
// Invariants:
//   - TokenHash is unique per live (non-revoked) record.
//   - ExpiresAt > IssuedAt.
//   - an active record has RevokedAt == nil && ExpiresAt after now.
//   - a revoked record may carry ReplacedBy pointing at its rotation
//     successor; the chain is acyclic.
type RefreshRecord struct {
	ID         uuid.UUID
	SessionID  uuid.UUID
	TokenHash  [32]byte
	IssuedAt   time.Time
	ExpiresAt  time.Time
	UsedAt     *time.Time
	RevokedAt  *time.Time
	ReplacedBy *uuid.UUID
}

// NewRefreshRecord builds a fresh record for sessionID, hashing nothing
// itself — callers compute TokenHash via HashRefreshToken.
func NewRefreshRecord(sessionID uuid.UUID, tokenHash [32]byte, issuedAt time.Time, ttl time.Duration) RefreshRecord {
	return RefreshRecord{
		ID:        uuid.New(),
		SessionID: sessionID,
		TokenHash: tokenHash,
		IssuedAt:  issuedAt,
		ExpiresAt: issuedAt.Add(ttl),
	}
}

// IsActive reports whether the record is usable at instant now: not
// revoked and not expired.
func (r RefreshRecord) IsActive(now time.Time) bool {
	return r.RevokedAt == nil && r.ExpiresAt.After(now)
}

// MarkUsed sets UsedAt, the signal the reserved rotation scheme inspects
// to detect replay (a second presentation observing UsedAt already set).
func (r *RefreshRecord) MarkUsed(now time.Time) {
	if r.UsedAt == nil {
		r.UsedAt = &now
	}
}

// Revoke marks the record revoked, optionally recording the record that
// replaced it in a rotation chain.
func (r *RefreshRecord) Revoke(now time.Time, replacedBy *uuid.UUID) {
	if r.RevokedAt != nil {
		return
	}
	r.RevokedAt = &now
	r.ReplacedBy = replacedBy
}
