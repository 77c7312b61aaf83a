package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/bookcadence/cadence/internal/models"
	"github.com/bookcadence/cadence/internal/shared"
)

// LibraryRepository persists [models.LibraryEntry] rows, one per
// (username, work).
type LibraryRepository struct {
	db *sql.DB
}

// NewLibraryRepository creates a new [LibraryRepository] with the given database connection
func NewLibraryRepository(db *sql.DB) *LibraryRepository {
	return &LibraryRepository{db: db}
}

// Upsert adds a book to the user's shelf or updates the existing row for
// the same work.
func (r *LibraryRepository) Upsert(ctx context.Context, entry *models.LibraryEntry) error {
	if entry.Username == "" || entry.Book.OLID == "" {
		return fmt.Errorf("%w: library entry requires username and olid", shared.ErrInvalidInput)
	}
	if entry.Status == "" {
		entry.Status = models.StatusTBR
	}
	if !models.ValidStatus(entry.Status) {
		return fmt.Errorf("%w: unknown status %q", shared.ErrInvalidInput, entry.Status)
	}

	query := `
		INSERT INTO library (username, olid, title, author, cover_url, status, pages_read, total_pages, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(username, olid) DO UPDATE SET
			title = excluded.title,
			author = excluded.author,
			cover_url = excluded.cover_url,
			status = excluded.status,
			pages_read = excluded.pages_read,
			total_pages = excluded.total_pages,
			updated_at = excluded.updated_at
	`

	_, err := r.db.ExecContext(ctx, query,
		entry.Username,
		entry.Book.OLID,
		entry.Book.Title,
		entry.Book.Author,
		entry.Book.CoverURL,
		entry.Status,
		entry.PagesRead,
		entry.TotalPages,
		time.Now(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert library entry: %w", err)
	}

	return nil
}

// Get retrieves a single shelf entry.
func (r *LibraryRepository) Get(ctx context.Context, username, olid string) (*models.LibraryEntry, error) {
	query := `
		SELECT username, olid, title, author, cover_url, status, pages_read, total_pages, updated_at
		FROM library
		WHERE username = ? AND olid = ?
	`

	entry, err := scanEntry(r.db.QueryRowContext(ctx, query, username, olid))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", shared.ErrBookNotFound, olid)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query library entry: %w", err)
	}

	return entry, nil
}

// List retrieves the user's shelf, optionally filtered by status.
func (r *LibraryRepository) List(ctx context.Context, username, status string) ([]models.LibraryEntry, error) {
	query := `
		SELECT username, olid, title, author, cover_url, status, pages_read, total_pages, updated_at
		FROM library
		WHERE username = ?
	`
	args := []any{username}

	if status != "" {
		if !models.ValidStatus(status) {
			return nil, fmt.Errorf("%w: unknown status %q", shared.ErrInvalidInput, status)
		}
		query += " AND status = ?"
		args = append(args, status)
	}

	query += " ORDER BY updated_at DESC"

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query library: %w", err)
	}
	defer rows.Close()

	var entries []models.LibraryEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan library entry: %w", err)
		}
		entries = append(entries, *entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return entries, nil
}

// UpdateProgress sets the pages-read counter for a shelf entry.
func (r *LibraryRepository) UpdateProgress(ctx context.Context, username, olid string, pagesRead int) error {
	if pagesRead < 0 {
		return fmt.Errorf("%w: pages_read must be non-negative", shared.ErrInvalidInput)
	}
	return r.update(ctx, "UPDATE library SET pages_read = ?, updated_at = ? WHERE username = ? AND olid = ?",
		pagesRead, time.Now(), username, olid)
}

// UpdateStatus moves a shelf entry between reading statuses.
func (r *LibraryRepository) UpdateStatus(ctx context.Context, username, olid, status string) error {
	if !models.ValidStatus(status) {
		return fmt.Errorf("%w: unknown status %q", shared.ErrInvalidInput, status)
	}
	return r.update(ctx, "UPDATE library SET status = ?, updated_at = ? WHERE username = ? AND olid = ?",
		status, time.Now(), username, olid)
}

// Delete removes a book from the user's shelf.
func (r *LibraryRepository) Delete(ctx context.Context, username, olid string) error {
	return r.update(ctx, "DELETE FROM library WHERE username = ? AND olid = ?", username, olid)
}

func (r *LibraryRepository) update(ctx context.Context, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to update library: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: no matching shelf entry", shared.ErrBookNotFound)
	}

	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (*models.LibraryEntry, error) {
	var entry models.LibraryEntry
	err := row.Scan(
		&entry.Username,
		&entry.Book.OLID,
		&entry.Book.Title,
		&entry.Book.Author,
		&entry.Book.CoverURL,
		&entry.Status,
		&entry.PagesRead,
		&entry.TotalPages,
		&entry.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &entry, nil
}
