// Package auth implements the token-issuance and refresh use cases: the
// application-layer orchestration between domain sessions/refresh
// records, EdDSA signing, and durable storage.
package auth

import (
	"context"
	"time"

	"github.com/google/uuid"

	domainauth "github.com/dpopcore/authcore/internal/domain/auth"
)

// SessionWriter is the full session-storage capability handed to
// TokenIssuer: create, fetch by id, bind a DPoP key, touch, and revoke.
// TokenIssuer itself only calls Create.
type SessionWriter interface {
	Create(ctx context.Context, session domainauth.Session) error
	GetByID(ctx context.Context, id uuid.UUID) (domainauth.Session, error)
	SetBoundKeyThumbprint(ctx context.Context, id uuid.UUID, thumbprint string) error
	Touch(ctx context.Context, id uuid.UUID, now time.Time) error
	Revoke(ctx context.Context, id uuid.UUID) error
}

// SessionLookup is the narrow capability RefreshManager needs: resolve a
// session id to the subject and bound-key thumbprint used to mint a new
// access token. Kept separate from SessionWriter so refresh-path tests
// can stub a minimal fake instead of a full repository.
type SessionLookup interface {
	GetByID(ctx context.Context, id uuid.UUID) (domainauth.Session, error)
}

// RefreshStore is the capability both TokenIssuer and RefreshManager need
// over refresh_tokens storage.
type RefreshStore interface {
	Create(ctx context.Context, record domainauth.RefreshRecord) error
	FindByHash(ctx context.Context, tokenHash [32]byte) (domainauth.RefreshRecord, error)
	MarkUsed(ctx context.Context, id uuid.UUID, now time.Time) error
	Revoke(ctx context.Context, id uuid.UUID, replacedBy *uuid.UUID) error
}

// AccessMinter is the capability both use cases need to mint a signed
// access token, satisfied by jwt.AccessIssuer.
type AccessMinter interface {
	Issue(subject uuid.UUID, boundKeyThumbprint string, now time.Time) (token string, jti string, err error)
	AccessTTLSeconds() int64
}
