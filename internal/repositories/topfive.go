package repositories

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bookcadence/cadence/internal/models"
	"github.com/bookcadence/cadence/internal/shared"
)

const topFiveLimit = 5

// TopFiveRepository persists each user's ranked favorite books as a
// JSON-encoded list, one row per user.
type TopFiveRepository struct {
	db *sql.DB
}

// NewTopFiveRepository creates a new [TopFiveRepository] with the given database connection
func NewTopFiveRepository(db *sql.DB) *TopFiveRepository {
	return &TopFiveRepository{db: db}
}

// Get retrieves the user's top-five list. A user with no saved list gets
// an empty one, not an error.
func (r *TopFiveRepository) Get(ctx context.Context, username string) (*models.TopFive, error) {
	var (
		items     string
		updatedAt time.Time
	)

	err := r.db.QueryRowContext(ctx,
		"SELECT items, updated_at FROM topfive WHERE username = ?", username,
	).Scan(&items, &updatedAt)
	if err == sql.ErrNoRows {
		return &models.TopFive{Username: username, Items: []string{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query topfive: %w", err)
	}

	topFive := models.TopFive{Username: username, UpdatedAt: updatedAt}
	if err := json.Unmarshal([]byte(items), &topFive.Items); err != nil {
		return nil, fmt.Errorf("failed to decode topfive items: %w", err)
	}

	return &topFive, nil
}

// Upsert replaces the user's top-five list.
func (r *TopFiveRepository) Upsert(ctx context.Context, username string, items []string) error {
	if username == "" {
		return fmt.Errorf("%w: topfive requires username", shared.ErrInvalidInput)
	}
	if len(items) > topFiveLimit {
		return fmt.Errorf("%w: at most %d items", shared.ErrInvalidInput, topFiveLimit)
	}
	if items == nil {
		items = []string{}
	}

	encoded, err := json.Marshal(items)
	if err != nil {
		return fmt.Errorf("failed to encode topfive items: %w", err)
	}

	query := `
		INSERT INTO topfive (username, items, updated_at)
		VALUES (?, ?, ?)
		ON CONFLICT(username) DO UPDATE SET
			items = excluded.items,
			updated_at = excluded.updated_at
	`

	if _, err := r.db.ExecContext(ctx, query, username, string(encoded), time.Now()); err != nil {
		return fmt.Errorf("failed to upsert topfive: %w", err)
	}

	return nil
}
