package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/dpopcore/authcore/internal/domain/auth"
)

// SQL queries for session operations.
const (
	sqlInsertSession = `
		INSERT INTO auth_sessions (id, subject, bound_key_thumbprint, created_at)
		VALUES ($1, $2, $3, $4)
	`

	sqlSelectSessionByID = `
		SELECT id, subject, bound_key_thumbprint, created_at, last_used_at, revoked_at
		FROM auth_sessions
		WHERE id = $1
	`

	// sqlSetBoundKeyThumbprint only succeeds when no thumbprint is set yet,
	// enforcing write-once binding at the storage layer in addition to the
	// in-process check in auth.Session.SetBoundKeyThumbprint.
	sqlSetBoundKeyThumbprint = `
		UPDATE auth_sessions
		SET bound_key_thumbprint = $2
		WHERE id = $1 AND bound_key_thumbprint IS NULL
	`

	sqlTouchSession = `
		UPDATE auth_sessions
		SET last_used_at = $2
		WHERE id = $1 AND revoked_at IS NULL
	`

	sqlRevokeSession = `
		UPDATE auth_sessions
		SET revoked_at = $2
		WHERE id = $1 AND revoked_at IS NULL
	`
)

// sessionRow is the raw database shape of an auth_sessions row.
type sessionRow struct {
	ID                 string         `db:"id"`
	Subject            string         `db:"subject"`
	BoundKeyThumbprint sql.NullString `db:"bound_key_thumbprint"`
	CreatedAt          time.Time      `db:"created_at"`
	LastUsedAt         sql.NullTime   `db:"last_used_at"`
	RevokedAt          sql.NullTime   `db:"revoked_at"`
}

// SessionRepository persists auth.Session rows in PostgreSQL.
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository creates a new SessionRepository.
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Create inserts a new session.
func (r *SessionRepository) Create(ctx context.Context, session auth.Session) error {
	_, err := r.db.ExecContext(
		ctx,
		sqlInsertSession,
		session.ID.String(),
		session.Subject.String(),
		nullString(derefString(session.BoundKeyThumbprint)),
		session.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

// GetByID retrieves a session by its ID.
func (r *SessionRepository) GetByID(ctx context.Context, id uuid.UUID) (auth.Session, error) {
	var row sessionRow
	if err := r.db.GetContext(ctx, &row, sqlSelectSessionByID, id.String()); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return auth.Session{}, auth.ErrSessionNotFound
		}
		return auth.Session{}, fmt.Errorf("failed to get session by id: %w", err)
	}
	return rowToSession(row)
}

// SetBoundKeyThumbprint assigns the DPoP key binding if none is set yet.
// It returns auth.ErrBoundKeyAlreadySet when the update affects no rows
// because a different thumbprint was already present.
func (r *SessionRepository) SetBoundKeyThumbprint(ctx context.Context, id uuid.UUID, thumbprint string) error {
	result, err := r.db.ExecContext(ctx, sqlSetBoundKeyThumbprint, id.String(), thumbprint)
	if err != nil {
		return fmt.Errorf("failed to set bound key thumbprint: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		existing, getErr := r.GetByID(ctx, id)
		if getErr == nil && existing.BoundKeyThumbprint != nil && *existing.BoundKeyThumbprint == thumbprint {
			return nil
		}
		return auth.ErrBoundKeyAlreadySet
	}
	return nil
}

// Touch records last_used_at for an active session.
func (r *SessionRepository) Touch(ctx context.Context, id uuid.UUID, now time.Time) error {
	_, err := r.db.ExecContext(ctx, sqlTouchSession, id.String(), now)
	if err != nil {
		return fmt.Errorf("failed to touch session: %w", err)
	}
	return nil
}

// Revoke marks a session revoked.
func (r *SessionRepository) Revoke(ctx context.Context, id uuid.UUID) error {
	now := time.Now().UTC()
	result, err := r.db.ExecContext(ctx, sqlRevokeSession, id.String(), now)
	if err != nil {
		return fmt.Errorf("failed to revoke session: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return auth.ErrSessionNotFound
	}
	return nil
}

func rowToSession(row sessionRow) (auth.Session, error) {
	id, err := uuid.Parse(row.ID)
	if err != nil {
		return auth.Session{}, fmt.Errorf("invalid session id: %w", err)
	}
	subject, err := uuid.Parse(row.Subject)
	if err != nil {
		return auth.Session{}, fmt.Errorf("invalid subject: %w", err)
	}

	session := auth.Session{
		ID:        id,
		Subject:   subject,
		CreatedAt: row.CreatedAt,
	}
	if row.BoundKeyThumbprint.Valid {
		thumb := row.BoundKeyThumbprint.String
		session.BoundKeyThumbprint = &thumb
	}
	if row.LastUsedAt.Valid {
		t := row.LastUsedAt.Time
		session.LastUsedAt = &t
	}
	if row.RevokedAt.Valid {
		t := row.RevokedAt.Time
		session.RevokedAt = &t
	}

	return session, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: s, Valid: true}
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
