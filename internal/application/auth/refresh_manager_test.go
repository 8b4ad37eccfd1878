package auth_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appauth "github.com/dpopcore/authcore/internal/application/auth"
	domainauth "github.com/dpopcore/authcore/internal/domain/auth"
)

func setupIssuedPair(t *testing.T) (*fakeSessionWriter, *fakeRefreshStore, *fakeAccessMinter, *appauth.IssueResult) {
	t.Helper()

	sessions := newFakeSessionWriter()
	refreshStore := newFakeRefreshStore()
	access := &fakeAccessMinter{ttlSeconds: 300}

	issuer, err := appauth.NewTokenIssuer(sessions, refreshStore, access, time.Hour, testLogger())
	require.NoError(t, err)

	result, err := issuer.Issue(context.Background(), uuid.New(), "thumb-1")
	require.NoError(t, err)

	return sessions, refreshStore, access, result
}

func TestRefreshManager_Refresh_Success(t *testing.T) {
	t.Parallel()

	sessions, refreshStore, access, issued := setupIssuedPair(t)
	manager := appauth.NewRefreshManager(refreshStore, sessions, access, testLogger())

	result, err := manager.Refresh(context.Background(), issued.RefreshToken)
	require.NoError(t, err)

	assert.NotEmpty(t, result.AccessToken)
	assert.Equal(t, issued.RefreshToken, result.RefreshToken)
	assert.Equal(t, "Bearer", result.TokenType)
	assert.Equal(t, int64(300), result.ExpiresIn)
	assert.Equal(t, issued.SessionID.String(), result.SessionID)
}

func TestRefreshManager_Refresh_UnknownToken(t *testing.T) {
	t.Parallel()

	sessions, refreshStore, access, _ := setupIssuedPair(t)
	manager := appauth.NewRefreshManager(refreshStore, sessions, access, testLogger())

	_, err := manager.Refresh(context.Background(), "this-token-was-never-issued")
	assert.ErrorIs(t, err, appauth.ErrUnauthorized)
}

func TestRefreshManager_Refresh_RevokedRefreshRecord(t *testing.T) {
	t.Parallel()

	sessions, refreshStore, access, issued := setupIssuedPair(t)
	manager := appauth.NewRefreshManager(refreshStore, sessions, access, testLogger())

	hash := domainauth.HashRefreshToken(issued.RefreshToken)
	record, err := refreshStore.FindByHash(context.Background(), hash)
	require.NoError(t, err)
	require.NoError(t, refreshStore.Revoke(context.Background(), record.ID, nil))

	_, err = manager.Refresh(context.Background(), issued.RefreshToken)
	assert.ErrorIs(t, err, appauth.ErrUnauthorized)
}

func TestRefreshManager_Refresh_RevokedSession(t *testing.T) {
	t.Parallel()

	sessions, refreshStore, access, issued := setupIssuedPair(t)
	manager := appauth.NewRefreshManager(refreshStore, sessions, access, testLogger())

	require.NoError(t, sessions.Revoke(context.Background(), issued.SessionID))

	_, err := manager.Refresh(context.Background(), issued.RefreshToken)
	assert.ErrorIs(t, err, appauth.ErrUnauthorized)
}

func TestRefreshManager_Refresh_InheritsBoundKeyThumbprint(t *testing.T) {
	t.Parallel()

	sessions := newFakeSessionWriter()
	refreshStore := newFakeRefreshStore()
	access := &fakeAccessMinter{ttlSeconds: 300}

	issuer, err := appauth.NewTokenIssuer(sessions, refreshStore, access, time.Hour, testLogger())
	require.NoError(t, err)

	result, err := issuer.Issue(context.Background(), uuid.New(), "bound-thumb")
	require.NoError(t, err)

	manager := appauth.NewRefreshManager(refreshStore, sessions, access, testLogger())
	refreshed, err := manager.Refresh(context.Background(), result.RefreshToken)
	require.NoError(t, err)
	assert.Contains(t, refreshed.AccessToken, "bound-thumb")
}
