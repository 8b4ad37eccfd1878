package auth_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appauth "github.com/dpopcore/authcore/internal/application/auth"
	domainauth "github.com/dpopcore/authcore/internal/domain/auth"
)

type fakeSessionWriter struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]domainauth.Session
	createErr error
}

func newFakeSessionWriter() *fakeSessionWriter {
	return &fakeSessionWriter{sessions: make(map[uuid.UUID]domainauth.Session)}
}

func (f *fakeSessionWriter) Create(_ context.Context, session domainauth.Session) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions[session.ID] = session
	return nil
}

func (f *fakeSessionWriter) GetByID(_ context.Context, id uuid.UUID) (domainauth.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok {
		return domainauth.Session{}, domainauth.ErrSessionNotFound
	}
	return s, nil
}

func (f *fakeSessionWriter) SetBoundKeyThumbprint(_ context.Context, id uuid.UUID, thumbprint string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.sessions[id]
	if err := s.SetBoundKeyThumbprint(thumbprint); err != nil {
		return err
	}
	f.sessions[id] = s
	return nil
}

func (f *fakeSessionWriter) Touch(_ context.Context, id uuid.UUID, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.sessions[id]
	s.Touch(now)
	f.sessions[id] = s
	return nil
}

func (f *fakeSessionWriter) Revoke(_ context.Context, id uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := f.sessions[id]
	s.Revoke(time.Now().UTC())
	f.sessions[id] = s
	return nil
}

type fakeRefreshStore struct {
	mu        sync.Mutex
	records   map[[32]byte]domainauth.RefreshRecord
	createErr error
}

func newFakeRefreshStore() *fakeRefreshStore {
	return &fakeRefreshStore{records: make(map[[32]byte]domainauth.RefreshRecord)}
}

func (f *fakeRefreshStore) Create(_ context.Context, record domainauth.RefreshRecord) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[record.TokenHash] = record
	return nil
}

func (f *fakeRefreshStore) FindByHash(_ context.Context, tokenHash [32]byte) (domainauth.RefreshRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.records[tokenHash]
	if !ok {
		return domainauth.RefreshRecord{}, domainauth.ErrRefreshTokenNotFound
	}
	return r, nil
}

func (f *fakeRefreshStore) MarkUsed(_ context.Context, id uuid.UUID, now time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for k, r := range f.records {
		if r.ID == id {
			r.MarkUsed(now)
			f.records[k] = r
		}
	}
	return nil
}

func (f *fakeRefreshStore) Revoke(_ context.Context, id uuid.UUID, replacedBy *uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for k, r := range f.records {
		if r.ID == id {
			r.Revoke(time.Now().UTC(), replacedBy)
			f.records[k] = r
		}
	}
	return nil
}

type fakeAccessMinter struct {
	ttlSeconds int64
	issueErr   error
}

func (f *fakeAccessMinter) Issue(subject uuid.UUID, boundKeyThumbprint string, now time.Time) (string, string, error) {
	if f.issueErr != nil {
		return "", "", f.issueErr
	}
	jti := uuid.New().String()
	return fmt.Sprintf("signed.%s.%s.%d", subject, boundKeyThumbprint, now.Unix()), jti, nil
}

func (f *fakeAccessMinter) AccessTTLSeconds() int64 {
	return f.ttlSeconds
}

func testLogger() *zerolog.Logger {
	l := zerolog.Nop()
	return &l
}

func TestTokenIssuer_Issue_Success(t *testing.T) {
	t.Parallel()

	sessions := newFakeSessionWriter()
	refreshStore := newFakeRefreshStore()
	access := &fakeAccessMinter{ttlSeconds: 300}

	issuer, err := appauth.NewTokenIssuer(sessions, refreshStore, access, time.Hour, testLogger())
	require.NoError(t, err)

	subject := uuid.New()
	result, err := issuer.Issue(context.Background(), subject, "thumb-1")
	require.NoError(t, err)

	assert.NotEmpty(t, result.AccessToken)
	assert.NotEmpty(t, result.RefreshToken)
	assert.Equal(t, "Bearer", result.TokenType)
	assert.Equal(t, int64(300), result.ExpiresIn)
	assert.NotEqual(t, uuid.Nil, result.SessionID)

	stored, err := sessions.GetByID(context.Background(), result.SessionID)
	require.NoError(t, err)
	require.NotNil(t, stored.BoundKeyThumbprint)
	assert.Equal(t, "thumb-1", *stored.BoundKeyThumbprint)

	hash := domainauth.HashRefreshToken(result.RefreshToken)
	record, err := refreshStore.FindByHash(context.Background(), hash)
	require.NoError(t, err)
	assert.Equal(t, result.SessionID, record.SessionID)
}

func TestTokenIssuer_Issue_DiscardsPairWhenRefreshPersistFails(t *testing.T) {
	t.Parallel()

	sessions := newFakeSessionWriter()
	refreshStore := newFakeRefreshStore()
	refreshStore.createErr = errSimulatedStorageFailure

	access := &fakeAccessMinter{ttlSeconds: 300}
	issuer, err := appauth.NewTokenIssuer(sessions, refreshStore, access, time.Hour, testLogger())
	require.NoError(t, err)

	result, err := issuer.Issue(context.Background(), uuid.New(), "")
	assert.Error(t, err)
	assert.Nil(t, result)
}

func TestNewTokenIssuer_RejectsNonPositiveRefreshTTL(t *testing.T) {
	t.Parallel()

	_, err := appauth.NewTokenIssuer(newFakeSessionWriter(), newFakeRefreshStore(), &fakeAccessMinter{}, 0, testLogger())
	assert.Error(t, err)
}

var errSimulatedStorageFailure = fmt.Errorf("simulated storage failure")
