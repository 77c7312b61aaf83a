package repositories

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/bookcadence/cadence/internal/models"
	"github.com/bookcadence/cadence/internal/shared"
	tu "github.com/bookcadence/cadence/internal/testing"
)

func TestTokenRepository(t *testing.T) {
	ctx := context.Background()
	db := tu.MustOpenMemoryDB(t)
	repo := NewTokenRepository(db)

	record := &models.TokenRecord{
		UserID:       "alice",
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		TokenType:    "Bearer",
		Scopes:       []string{"playlist-modify-public", "user-read-private"},
		Expiry:       time.Now().Add(time.Hour).UTC(),
	}

	t.Run("get missing record", func(t *testing.T) {
		if _, err := repo.Get(ctx, "alice"); !errors.Is(err, shared.ErrTokenNotFound) {
			t.Errorf("error = %v, want ErrTokenNotFound", err)
		}
	})

	t.Run("upsert then get round-trips", func(t *testing.T) {
		if err := repo.Upsert(ctx, record); err != nil {
			t.Fatalf("Upsert() error = %v", err)
		}

		got, err := repo.Get(ctx, "alice")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if got.AccessToken != "access-1" || got.RefreshToken != "refresh-1" {
			t.Errorf("got %+v", got)
		}
		if len(got.Scopes) != 2 || got.Scopes[0] != "playlist-modify-public" {
			t.Errorf("Scopes = %v", got.Scopes)
		}
		if !got.Expiry.Equal(record.Expiry) {
			t.Errorf("Expiry = %v, want %v", got.Expiry, record.Expiry)
		}
	})

	t.Run("second upsert overwrites without duplicating", func(t *testing.T) {
		updated := *record
		updated.AccessToken = "access-2"
		if err := repo.Upsert(ctx, &updated); err != nil {
			t.Fatalf("Upsert() error = %v", err)
		}

		got, err := repo.Get(ctx, "alice")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if got.AccessToken != "access-2" {
			t.Errorf("AccessToken = %q, want access-2", got.AccessToken)
		}

		var count int
		if err := db.QueryRow("SELECT COUNT(*) FROM tokens WHERE user_id = ?", "alice").Scan(&count); err != nil {
			t.Fatalf("count query error = %v", err)
		}
		if count != 1 {
			t.Errorf("row count = %d, want 1", count)
		}
	})

	t.Run("upsert validation", func(t *testing.T) {
		if err := repo.Upsert(ctx, &models.TokenRecord{AccessToken: "a"}); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("missing user id: error = %v, want ErrInvalidInput", err)
		}
		if err := repo.Upsert(ctx, &models.TokenRecord{UserID: "bob"}); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("missing access token: error = %v, want ErrInvalidInput", err)
		}
	})

	t.Run("delete is idempotent", func(t *testing.T) {
		if err := repo.Delete(ctx, "alice"); err != nil {
			t.Fatalf("Delete() error = %v", err)
		}
		if err := repo.Delete(ctx, "alice"); err != nil {
			t.Errorf("second Delete() error = %v", err)
		}
		if _, err := repo.Get(ctx, "alice"); !errors.Is(err, shared.ErrTokenNotFound) {
			t.Errorf("error = %v, want ErrTokenNotFound after delete", err)
		}
	})
}

func TestLibraryRepository(t *testing.T) {
	ctx := context.Background()
	db := tu.MustOpenMemoryDB(t)
	repo := NewLibraryRepository(db)

	entry := &models.LibraryEntry{
		Username: "alice",
		Book: models.Book{
			OLID:     "OL123W",
			Title:    "Piranesi",
			Author:   "Susanna Clarke",
			CoverURL: "https://covers.example.com/p.jpg",
		},
		Status:     models.StatusReading,
		TotalPages: 272,
	}

	t.Run("upsert and get", func(t *testing.T) {
		if err := repo.Upsert(ctx, entry); err != nil {
			t.Fatalf("Upsert() error = %v", err)
		}

		got, err := repo.Get(ctx, "alice", "OL123W")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if got.Book.Title != "Piranesi" || got.Status != models.StatusReading {
			t.Errorf("got %+v", got)
		}
	})

	t.Run("re-shelving same work does not duplicate", func(t *testing.T) {
		again := *entry
		again.Status = models.StatusCompleted
		if err := repo.Upsert(ctx, &again); err != nil {
			t.Fatalf("Upsert() error = %v", err)
		}

		entries, err := repo.List(ctx, "alice", "")
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(entries) != 1 {
			t.Fatalf("got %d entries, want 1", len(entries))
		}
		if entries[0].Status != models.StatusCompleted {
			t.Errorf("Status = %q, want completed", entries[0].Status)
		}
	})

	t.Run("list filters by status", func(t *testing.T) {
		second := &models.LibraryEntry{
			Username: "alice",
			Book:     models.Book{OLID: "OL456W", Title: "The Dispossessed", Author: "Ursula K. Le Guin"},
			Status:   models.StatusTBR,
		}
		if err := repo.Upsert(ctx, second); err != nil {
			t.Fatalf("Upsert() error = %v", err)
		}

		tbr, err := repo.List(ctx, "alice", models.StatusTBR)
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(tbr) != 1 || tbr[0].Book.OLID != "OL456W" {
			t.Errorf("tbr = %+v", tbr)
		}

		if _, err := repo.List(ctx, "alice", "abandoned"); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("unknown status: error = %v, want ErrInvalidInput", err)
		}
	})

	t.Run("progress and status updates", func(t *testing.T) {
		if err := repo.UpdateProgress(ctx, "alice", "OL123W", 120); err != nil {
			t.Fatalf("UpdateProgress() error = %v", err)
		}
		if err := repo.UpdateStatus(ctx, "alice", "OL456W", models.StatusReading); err != nil {
			t.Fatalf("UpdateStatus() error = %v", err)
		}

		got, err := repo.Get(ctx, "alice", "OL123W")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if got.PagesRead != 120 {
			t.Errorf("PagesRead = %d, want 120", got.PagesRead)
		}

		if err := repo.UpdateProgress(ctx, "alice", "OL123W", -1); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("negative pages: error = %v, want ErrInvalidInput", err)
		}
		if err := repo.UpdateProgress(ctx, "alice", "OL999W", 10); !errors.Is(err, shared.ErrBookNotFound) {
			t.Errorf("missing entry: error = %v, want ErrBookNotFound", err)
		}
	})

	t.Run("entries are scoped per user", func(t *testing.T) {
		entries, err := repo.List(ctx, "bob", "")
		if err != nil {
			t.Fatalf("List() error = %v", err)
		}
		if len(entries) != 0 {
			t.Errorf("bob sees %d entries, want 0", len(entries))
		}
	})

	t.Run("delete", func(t *testing.T) {
		if err := repo.Delete(ctx, "alice", "OL456W"); err != nil {
			t.Fatalf("Delete() error = %v", err)
		}
		if err := repo.Delete(ctx, "alice", "OL456W"); !errors.Is(err, shared.ErrBookNotFound) {
			t.Errorf("second delete: error = %v, want ErrBookNotFound", err)
		}
	})
}

func TestTopFiveRepository(t *testing.T) {
	ctx := context.Background()
	db := tu.MustOpenMemoryDB(t)
	repo := NewTopFiveRepository(db)

	t.Run("missing list is empty not an error", func(t *testing.T) {
		topFive, err := repo.Get(ctx, "alice")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if len(topFive.Items) != 0 {
			t.Errorf("Items = %v, want empty", topFive.Items)
		}
	})

	t.Run("upsert replaces the whole list", func(t *testing.T) {
		if err := repo.Upsert(ctx, "alice", []string{"Piranesi", "Dune"}); err != nil {
			t.Fatalf("Upsert() error = %v", err)
		}
		if err := repo.Upsert(ctx, "alice", []string{"The Dispossessed"}); err != nil {
			t.Fatalf("Upsert() error = %v", err)
		}

		topFive, err := repo.Get(ctx, "alice")
		if err != nil {
			t.Fatalf("Get() error = %v", err)
		}
		if len(topFive.Items) != 1 || topFive.Items[0] != "The Dispossessed" {
			t.Errorf("Items = %v", topFive.Items)
		}
	})

	t.Run("more than five items rejected", func(t *testing.T) {
		items := []string{"a", "b", "c", "d", "e", "f"}
		if err := repo.Upsert(ctx, "alice", items); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("error = %v, want ErrInvalidInput", err)
		}
	})
}
