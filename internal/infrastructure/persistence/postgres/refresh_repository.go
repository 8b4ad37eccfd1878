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

const (
	sqlInsertRefreshToken = `
		INSERT INTO refresh_tokens (id, session_id, token_hash, issued_at, expires_at)
		VALUES ($1, $2, $3, $4, $5)
	`

	sqlSelectRefreshByHash = `
		SELECT id, session_id, token_hash, issued_at, expires_at, used_at, revoked_at, replaced_by
		FROM refresh_tokens
		WHERE token_hash = $1
	`

	sqlMarkRefreshUsed = `
		UPDATE refresh_tokens
		SET used_at = $2
		WHERE id = $1 AND used_at IS NULL
	`

	sqlRevokeRefresh = `
		UPDATE refresh_tokens
		SET revoked_at = $2, replaced_by = $3
		WHERE id = $1 AND revoked_at IS NULL
	`
)

// refreshRow is the raw database shape of a refresh_tokens row.
type refreshRow struct {
	ID         string         `db:"id"`
	SessionID  string         `db:"session_id"`
	TokenHash  []byte         `db:"token_hash"`
	IssuedAt   time.Time      `db:"issued_at"`
	ExpiresAt  time.Time      `db:"expires_at"`
	UsedAt     sql.NullTime   `db:"used_at"`
	RevokedAt  sql.NullTime   `db:"revoked_at"`
	ReplacedBy sql.NullString `db:"replaced_by"`
}

// RefreshRepository persists auth.RefreshRecord rows in PostgreSQL. Only
// the SHA-256 hash of a refresh token is ever stored or queried against;
// the plaintext token never reaches this layer.
type RefreshRepository struct {
	db *sqlx.DB
}

// NewRefreshRepository creates a new RefreshRepository.
func NewRefreshRepository(db *sqlx.DB) *RefreshRepository {
	return &RefreshRepository{db: db}
}

// Create inserts a new refresh record.
func (r *RefreshRepository) Create(ctx context.Context, record auth.RefreshRecord) error {
	_, err := r.db.ExecContext(
		ctx,
		sqlInsertRefreshToken,
		record.ID.String(),
		record.SessionID.String(),
		record.TokenHash[:],
		record.IssuedAt,
		record.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create refresh record: %w", err)
	}
	return nil
}

// FindByHash looks up the refresh record matching tokenHash.
func (r *RefreshRepository) FindByHash(ctx context.Context, tokenHash [32]byte) (auth.RefreshRecord, error) {
	var row refreshRow
	err := r.db.GetContext(ctx, &row, sqlSelectRefreshByHash, tokenHash[:])
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return auth.RefreshRecord{}, auth.ErrRefreshTokenNotFound
		}
		return auth.RefreshRecord{}, fmt.Errorf("failed to find refresh record: %w", err)
	}
	return rowToRefreshRecord(row)
}

// MarkUsed sets used_at on a refresh record, the signal the reserved
// rotation scheme uses to detect replay.
func (r *RefreshRepository) MarkUsed(ctx context.Context, id uuid.UUID, now time.Time) error {
	_, err := r.db.ExecContext(ctx, sqlMarkRefreshUsed, id.String(), now)
	if err != nil {
		return fmt.Errorf("failed to mark refresh record used: %w", err)
	}
	return nil
}

// Revoke marks a refresh record revoked, optionally linking to the record
// that replaced it in a rotation chain.
func (r *RefreshRepository) Revoke(ctx context.Context, id uuid.UUID, replacedBy *uuid.UUID) error {
	now := time.Now().UTC()

	var replacedByArg interface{}
	if replacedBy != nil {
		replacedByArg = replacedBy.String()
	}

	result, err := r.db.ExecContext(ctx, sqlRevokeRefresh, id.String(), now, replacedByArg)
	if err != nil {
		return fmt.Errorf("failed to revoke refresh record: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return auth.ErrRefreshTokenRevoked
	}
	return nil
}

func rowToRefreshRecord(row refreshRow) (auth.RefreshRecord, error) {
	id, err := uuid.Parse(row.ID)
	if err != nil {
		return auth.RefreshRecord{}, fmt.Errorf("invalid refresh record id: %w", err)
	}
	sessionID, err := uuid.Parse(row.SessionID)
	if err != nil {
		return auth.RefreshRecord{}, fmt.Errorf("invalid session id: %w", err)
	}
	if len(row.TokenHash) != 32 {
		return auth.RefreshRecord{}, fmt.Errorf("unexpected token hash length %d", len(row.TokenHash))
	}
	var hash [32]byte
	copy(hash[:], row.TokenHash)

	record := auth.RefreshRecord{
		ID:        id,
		SessionID: sessionID,
		TokenHash: hash,
		IssuedAt:  row.IssuedAt,
		ExpiresAt: row.ExpiresAt,
	}
	if row.UsedAt.Valid {
		t := row.UsedAt.Time
		record.UsedAt = &t
	}
	if row.RevokedAt.Valid {
		t := row.RevokedAt.Time
		record.RevokedAt = &t
	}
	if row.ReplacedBy.Valid {
		replacedID, err := uuid.Parse(row.ReplacedBy.String)
		if err != nil {
			return auth.RefreshRecord{}, fmt.Errorf("invalid replaced_by id: %w", err)
		}
		record.ReplacedBy = &replacedID
	}

	return record, nil
}
