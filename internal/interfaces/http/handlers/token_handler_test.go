package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appauth "github.com/dpopcore/authcore/internal/application/auth"
	"github.com/dpopcore/authcore/internal/interfaces/http/dto"
)

type fakeIssuer struct {
	result *appauth.IssueResult
	err    error
}

func (f *fakeIssuer) Issue(_ context.Context, _ uuid.UUID, _ string) (*appauth.IssueResult, error) {
	return f.result, f.err
}

type fakeRefresher struct {
	result *appauth.RefreshResult
	err    error
}

func (f *fakeRefresher) Refresh(_ context.Context, _ string) (*appauth.RefreshResult, error) {
	return f.result, f.err
}

func postToken(t *testing.T, handler *TokenHandler, body any) *httptest.ResponseRecorder {
	t.Helper()

	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/token", bytes.NewReader(raw))
	rec := httptest.NewRecorder()

	handler.IssueOrRefresh(rec, req)
	return rec
}

func TestTokenHandler_IssueOrRefresh_IssuesWhenGrantTypeAbsent(t *testing.T) {
	t.Parallel()

	subject := uuid.New()
	sessionID := uuid.New()
	issuer := &fakeIssuer{result: &appauth.IssueResult{
		AccessToken:  "access.jwt",
		RefreshToken: "refresh-opaque",
		TokenType:    "Bearer",
		ExpiresIn:    300,
		SessionID:    sessionID,
	}}
	handler := NewTokenHandler(issuer, &fakeRefresher{}, zerolog.Nop())

	rec := postToken(t, handler, dto.TokenRequest{Sub: subject.String(), Jkt: "thumb"})

	require.Equal(t, http.StatusOK, rec.Code)

	var resp dto.TokenResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "access.jwt", resp.AccessToken)
	assert.Equal(t, "Bearer", resp.TokenType)
	assert.Equal(t, int64(300), resp.ExpiresIn)
	assert.Equal(t, sessionID.String(), resp.SessionID)
}

func TestTokenHandler_IssueOrRefresh_RejectsMissingSub(t *testing.T) {
	t.Parallel()

	handler := NewTokenHandler(&fakeIssuer{}, &fakeRefresher{}, zerolog.Nop())

	rec := postToken(t, handler, dto.TokenRequest{})

	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var resp dto.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "invalid_request", resp.Error.Code)
}

func TestTokenHandler_IssueOrRefresh_RejectsNonUUIDSub(t *testing.T) {
	t.Parallel()

	handler := NewTokenHandler(&fakeIssuer{}, &fakeRefresher{}, zerolog.Nop())

	rec := postToken(t, handler, dto.TokenRequest{Sub: "not-a-uuid"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTokenHandler_IssueOrRefresh_RefreshesWhenGrantTypeIsRefreshToken(t *testing.T) {
	t.Parallel()

	refresher := &fakeRefresher{result: &appauth.RefreshResult{
		AccessToken:  "new.access.jwt",
		RefreshToken: "same-refresh-token",
		TokenType:    "Bearer",
		ExpiresIn:    300,
		SessionID:    uuid.New().String(),
	}}
	handler := NewTokenHandler(&fakeIssuer{}, refresher, zerolog.Nop())

	rec := postToken(t, handler, dto.TokenRequest{GrantType: "refresh_token", RefreshToken: "same-refresh-token"})

	require.Equal(t, http.StatusOK, rec.Code)

	var resp dto.TokenResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "new.access.jwt", resp.AccessToken)
}

func TestTokenHandler_IssueOrRefresh_RejectsMissingRefreshToken(t *testing.T) {
	t.Parallel()

	handler := NewTokenHandler(&fakeIssuer{}, &fakeRefresher{}, zerolog.Nop())

	rec := postToken(t, handler, dto.TokenRequest{GrantType: "refresh_token"})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestTokenHandler_IssueOrRefresh_UnauthorizedOnInvalidGrant(t *testing.T) {
	t.Parallel()

	refresher := &fakeRefresher{err: appauth.ErrUnauthorized}
	handler := NewTokenHandler(&fakeIssuer{}, refresher, zerolog.Nop())

	rec := postToken(t, handler, dto.TokenRequest{GrantType: "refresh_token", RefreshToken: "revoked-token"})

	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	var resp dto.ErrorResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Equal(t, "invalid_grant", resp.Error.Code)
}

func TestTokenHandler_IssueOrRefresh_MalformedBody(t *testing.T) {
	t.Parallel()

	handler := NewTokenHandler(&fakeIssuer{}, &fakeRefresher{}, zerolog.Nop())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/token", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()

	handler.IssueOrRefresh(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
