package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/bookcadence/cadence/internal/models"
	"github.com/bookcadence/cadence/internal/shared"
)

// TokenRepository persists [models.TokenRecord] rows, one per user.
type TokenRepository struct {
	db *sql.DB
}

// NewTokenRepository creates a new [TokenRepository] with the given database connection
func NewTokenRepository(db *sql.DB) *TokenRepository {
	return &TokenRepository{db: db}
}

// Get retrieves the token record for a user.
//
// Returns [shared.ErrTokenNotFound] when no record exists.
func (r *TokenRepository) Get(ctx context.Context, userID string) (*models.TokenRecord, error) {
	query := `
		SELECT user_id, access_token, refresh_token, token_type, scopes, expiry
		FROM tokens
		WHERE user_id = ?
	`

	var (
		record models.TokenRecord
		scopes string
	)

	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&record.UserID,
		&record.AccessToken,
		&record.RefreshToken,
		&record.TokenType,
		&scopes,
		&record.Expiry,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", shared.ErrTokenNotFound, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query token: %w", err)
	}

	if scopes != "" {
		record.Scopes = strings.Fields(scopes)
	}

	return &record, nil
}

// Upsert writes the token record for record.UserID, overwriting any
// existing row. Calling it twice with the same user leaves one row.
func (r *TokenRepository) Upsert(ctx context.Context, record *models.TokenRecord) error {
	if record.UserID == "" {
		return fmt.Errorf("%w: token record missing user id", shared.ErrInvalidInput)
	}
	if record.AccessToken == "" {
		return fmt.Errorf("%w: token record missing access token", shared.ErrInvalidInput)
	}

	query := `
		INSERT INTO tokens (user_id, access_token, refresh_token, token_type, scopes, expiry, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			token_type = excluded.token_type,
			scopes = excluded.scopes,
			expiry = excluded.expiry,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, query,
		record.UserID,
		record.AccessToken,
		record.RefreshToken,
		record.TokenType,
		strings.Join(record.Scopes, " "),
		record.Expiry,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert token: %w", err)
	}

	return nil
}

// Delete removes the token record for a user. Deleting a missing record
// is not an error; invalidation must be idempotent.
func (r *TokenRepository) Delete(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM tokens WHERE user_id = ?", userID)
	if err != nil {
		return fmt.Errorf("failed to delete token: %w", err)
	}
	return nil
}
