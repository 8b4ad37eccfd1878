package auth

import (
	"context"
	"crypto/subtle"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	domainauth "github.com/dpopcore/authcore/internal/domain/auth"
	"github.com/dpopcore/authcore/internal/domain/shared"
)

// RefreshResult is the output of RefreshManager.Refresh.
type RefreshResult struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	ExpiresIn    int64
	SessionID    string
}

// RefreshManager validates a presented opaque refresh token and mints a
// new access token for the session it belongs to.
//
// Rotation (issuing a new refresh token and revoking the old one on use)
// is reserved per the design's tri-state rotation contract: mark used_at
// atomically at lookup, and treat a second presentation observing used_at
// already set as evidence of token theft. That contract is not wired in
// yet — Refresh currently returns the same refresh token string back
// unchanged, matching the forward-compatible default.
type RefreshManager struct {
	refreshStore RefreshStore
	sessions     SessionLookup
	access       AccessMinter
	logger       *zerolog.Logger
}

// NewRefreshManager constructs a RefreshManager.
func NewRefreshManager(refreshStore RefreshStore, sessions SessionLookup, access AccessMinter, logger *zerolog.Logger) *RefreshManager {
	return &RefreshManager{
		refreshStore: refreshStore,
		sessions:     sessions,
		access:       access,
		logger:       logger,
	}
}

// Refresh validates presentedToken and mints a new access token for the
// owning session's subject, inheriting its bound-key thumbprint so the
// sender constraint survives a refresh.
func (m *RefreshManager) Refresh(ctx context.Context, presentedToken string) (*RefreshResult, error) {
	now := shared.Now()
	hash := domainauth.HashRefreshToken(presentedToken)

	record, err := m.refreshStore.FindByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, domainauth.ErrRefreshTokenNotFound) {
			return nil, fmt.Errorf("%w: refresh token not found", ErrUnauthorized)
		}
		return nil, fmt.Errorf("lookup refresh record: %w", err)
	}

	// The store lookup already filters by hash equality; this compare is
	// defense-in-depth against a lookup implementation that isn't a strict
	// equality match, and runs in constant time so a non-matching record
	// can't be distinguished by timing.
	if subtle.ConstantTimeCompare(record.TokenHash[:], hash[:]) != 1 {
		return nil, fmt.Errorf("%w: refresh token not found", ErrUnauthorized)
	}

	if !record.IsActive(now) {
		return nil, fmt.Errorf("%w: refresh token inactive", ErrUnauthorized)
	}

	session, err := m.sessions.GetByID(ctx, record.SessionID)
	if err != nil {
		if errors.Is(err, domainauth.ErrSessionNotFound) {
			return nil, fmt.Errorf("%w: session not found", ErrUnauthorized)
		}
		return nil, fmt.Errorf("lookup session: %w", err)
	}
	if !session.IsActive() {
		return nil, fmt.Errorf("%w: session revoked", ErrUnauthorized)
	}

	boundThumbprint := ""
	if session.BoundKeyThumbprint != nil {
		boundThumbprint = *session.BoundKeyThumbprint
	}

	accessToken, _, err := m.access.Issue(session.Subject, boundThumbprint, now)
	if err != nil {
		return nil, fmt.Errorf("mint access token: %w", err)
	}

	m.logger.Info().
		Str("session_id", session.ID.String()).
		Msg("refreshed access token")

	return &RefreshResult{
		AccessToken:  accessToken,
		RefreshToken: presentedToken,
		TokenType:    "Bearer",
		ExpiresIn:    m.access.AccessTTLSeconds(),
		SessionID:    session.ID.String(),
	}, nil
}
