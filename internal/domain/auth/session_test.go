package auth_test

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dpopcore/authcore/internal/domain/auth"
)

func TestNewSession_Unbound(t *testing.T) {
	t.Parallel()

	subject := uuid.New()
	now := time.Now().UTC()

	s := auth.NewSession(subject, "", now)

	assert.NotEqual(t, uuid.Nil, s.ID)
	assert.Equal(t, subject, s.Subject)
	assert.Nil(t, s.BoundKeyThumbprint)
	assert.True(t, s.IsActive())
	assert.Equal(t, now, s.CreatedAt)
}

func TestNewSession_Bound(t *testing.T) {
	t.Parallel()

	s := auth.NewSession(uuid.New(), "thumbprint-1", time.Now().UTC())

	require.NotNil(t, s.BoundKeyThumbprint)
	assert.Equal(t, "thumbprint-1", *s.BoundKeyThumbprint)
}

func TestSession_Revoke_IsIrreversible(t *testing.T) {
	t.Parallel()

	s := auth.NewSession(uuid.New(), "", time.Now().UTC())
	first := time.Now().UTC()
	s.Revoke(first)
	require.False(t, s.IsActive())

	later := first.Add(time.Hour)
	s.Revoke(later)

	require.NotNil(t, s.RevokedAt)
	assert.Equal(t, first, *s.RevokedAt)
}

func TestSession_Touch_SetsLastUsedAt(t *testing.T) {
	t.Parallel()

	s := auth.NewSession(uuid.New(), "", time.Now().UTC())
	assert.Nil(t, s.LastUsedAt)

	now := time.Now().UTC()
	s.Touch(now)

	require.NotNil(t, s.LastUsedAt)
	assert.Equal(t, now, *s.LastUsedAt)
}

func TestSession_SetBoundKeyThumbprint(t *testing.T) {
	t.Parallel()

	t.Run("sets when unset", func(t *testing.T) {
		t.Parallel()
		s := auth.NewSession(uuid.New(), "", time.Now().UTC())
		err := s.SetBoundKeyThumbprint("thumb-a")
		require.NoError(t, err)
		require.NotNil(t, s.BoundKeyThumbprint)
		assert.Equal(t, "thumb-a", *s.BoundKeyThumbprint)
	})

	t.Run("idempotent for same value", func(t *testing.T) {
		t.Parallel()
		s := auth.NewSession(uuid.New(), "thumb-a", time.Now().UTC())
		err := s.SetBoundKeyThumbprint("thumb-a")
		require.NoError(t, err)
	})

	t.Run("rejects changing an existing binding", func(t *testing.T) {
		t.Parallel()
		s := auth.NewSession(uuid.New(), "thumb-a", time.Now().UTC())
		err := s.SetBoundKeyThumbprint("thumb-b")
		assert.ErrorIs(t, err, auth.ErrBoundKeyAlreadySet)
		assert.Equal(t, "thumb-a", *s.BoundKeyThumbprint)
	})
}
