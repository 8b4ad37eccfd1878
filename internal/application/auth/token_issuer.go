package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	domainauth "github.com/dpopcore/authcore/internal/domain/auth"
	"github.com/dpopcore/authcore/internal/domain/shared"
)

// IssueResult is the output of TokenIssuer.Issue: everything the token
// endpoint needs to build a response body.
type IssueResult struct {
	AccessToken  string
	RefreshToken string
	TokenType    string
	ExpiresIn    int64
	SessionID    uuid.UUID
}

// TokenIssuer mints a fresh access/refresh token pair and the session
// record backing it.
type TokenIssuer struct {
	sessions     SessionWriter
	refreshStore RefreshStore
	access       AccessMinter
	refreshTTL   time.Duration
	logger       *zerolog.Logger
}

// NewTokenIssuer constructs a TokenIssuer. refreshTTL must be positive.
func NewTokenIssuer(sessions SessionWriter, refreshStore RefreshStore, access AccessMinter, refreshTTL time.Duration, logger *zerolog.Logger) (*TokenIssuer, error) {
	if refreshTTL <= 0 {
		return nil, fmt.Errorf("refresh token ttl must be positive")
	}
	return &TokenIssuer{
		sessions:     sessions,
		refreshStore: refreshStore,
		access:       access,
		refreshTTL:   refreshTTL,
		logger:       logger,
	}, nil
}

// Issue creates a session for subject, optionally bound to a DPoP key via
// boundKeyThumbprint, then mints an access token and an opaque refresh
// token. A failure to persist the refresh record after the session is
// created does not leave the access token usable: the caller is never
// handed the half-issued pair.
func (i *TokenIssuer) Issue(ctx context.Context, subject uuid.UUID, boundKeyThumbprint string) (*IssueResult, error) {
	now := shared.Now()

	session := domainauth.NewSession(subject, boundKeyThumbprint, now)
	if err := i.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}

	accessToken, _, err := i.access.Issue(subject, boundKeyThumbprint, now)
	if err != nil {
		return nil, fmt.Errorf("mint access token: %w", err)
	}

	refreshToken, err := domainauth.GenerateRefreshToken()
	if err != nil {
		return nil, fmt.Errorf("generate refresh token: %w", err)
	}
	tokenHash := domainauth.HashRefreshToken(refreshToken)

	record := domainauth.NewRefreshRecord(session.ID, tokenHash, now, i.refreshTTL)
	if err := i.refreshStore.Create(ctx, record); err != nil {
		i.logger.Error().
			Err(err).
			Str("session_id", session.ID.String()).
			Msg("failed to persist refresh record after minting access token; discarding issued pair")
		return nil, fmt.Errorf("create refresh record: %w", err)
	}

	i.logger.Info().
		Str("session_id", session.ID.String()).
		Str("subject", subject.String()).
		Bool("bound", boundKeyThumbprint != "").
		Msg("issued token pair")

	return &IssueResult{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
		ExpiresIn:    i.access.AccessTTLSeconds(),
		SessionID:    session.ID,
	}, nil
}
