package main

import (
	"context"
	"fmt"
	"time"

	"github.com/bookcadence/cadence/internal/models"
	"github.com/bookcadence/cadence/internal/repositories"
	"github.com/bookcadence/cadence/internal/services"
	"github.com/bookcadence/cadence/internal/shared"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/urfave/cli/v3"
)

// LibraryList prints the user's shelf as a table, or JSON with --json.
func (r *Runner) LibraryList(ctx context.Context, cmd *cli.Command) error {
	r.reloadConfig(cmd)
	userID := cmd.String("user")
	if userID == "" {
		return fmt.Errorf("%w: --user is required", shared.ErrMissingArgument)
	}

	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	entries, err := repositories.NewLibraryRepository(db).List(ctx, userID, cmd.String("status"))
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(entries, true)
	}

	if len(entries) == 0 {
		return r.writePlain("Shelf is empty.\n")
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"OLID", "Title", "Author", "Status", "Progress", "Updated"})
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 5, Align: text.AlignRight},
	})

	for _, entry := range entries {
		tw.AppendRow(table.Row{
			entry.Book.OLID,
			entry.Book.Title,
			entry.Book.Author,
			entry.Status,
			formatProgress(entry),
			entry.UpdatedAt.Format(time.DateOnly),
		})
	}

	return r.writePlain("%s\n", tw.Render())
}

func formatProgress(entry models.LibraryEntry) string {
	if entry.TotalPages <= 0 {
		return fmt.Sprintf("%d p.", entry.PagesRead)
	}
	return fmt.Sprintf("%d/%d p.", entry.PagesRead, entry.TotalPages)
}

// LibraryAdd resolves book metadata from Open Library and shelves it.
func (r *Runner) LibraryAdd(ctx context.Context, cmd *cli.Command) error {
	r.reloadConfig(cmd)
	userID := cmd.String("user")
	olid := cmd.StringArg("olid")
	if userID == "" || olid == "" {
		return fmt.Errorf("%w: --user and an olid argument are required", shared.ErrMissingArgument)
	}

	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	catalog := services.NewOpenLibraryService(r.config.Playlist.ProviderTimeout(), openLibraryCacheTTL)
	defer catalog.Stop()

	book, err := catalog.GetBook(ctx, olid)
	if err != nil {
		return err
	}

	entry := &models.LibraryEntry{
		Username:   userID,
		Book:       *book,
		Status:     cmd.String("status"),
		TotalPages: book.PageCount,
	}
	if err := repositories.NewLibraryRepository(db).Upsert(ctx, entry); err != nil {
		return err
	}

	return r.writePlain("✓ Shelved %q by %s (%s)\n", book.Title, book.Author, entry.Status)
}

// LibraryProgress records pages read for a shelved book.
func (r *Runner) LibraryProgress(ctx context.Context, cmd *cli.Command) error {
	r.reloadConfig(cmd)
	userID := cmd.String("user")
	olid := cmd.StringArg("olid")
	if userID == "" || olid == "" {
		return fmt.Errorf("%w: --user and an olid argument are required", shared.ErrMissingArgument)
	}

	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	pages := int(cmd.Int("pages"))
	if err := repositories.NewLibraryRepository(db).UpdateProgress(ctx, userID, olid, pages); err != nil {
		return err
	}

	return r.writePlain("✓ Progress updated: %d pages\n", pages)
}

// LibraryStatus moves a shelved book between reading statuses.
func (r *Runner) LibraryStatus(ctx context.Context, cmd *cli.Command) error {
	r.reloadConfig(cmd)
	userID := cmd.String("user")
	olid := cmd.StringArg("olid")
	if userID == "" || olid == "" {
		return fmt.Errorf("%w: --user and an olid argument are required", shared.ErrMissingArgument)
	}

	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	status := cmd.String("to")
	if err := repositories.NewLibraryRepository(db).UpdateStatus(ctx, userID, olid, status); err != nil {
		return err
	}

	return r.writePlain("✓ Status set to %s\n", status)
}

// LibraryRemove removes a book from the shelf.
func (r *Runner) LibraryRemove(ctx context.Context, cmd *cli.Command) error {
	r.reloadConfig(cmd)
	userID := cmd.String("user")
	olid := cmd.StringArg("olid")
	if userID == "" || olid == "" {
		return fmt.Errorf("%w: --user and an olid argument are required", shared.ErrMissingArgument)
	}

	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	if err := repositories.NewLibraryRepository(db).Delete(ctx, userID, olid); err != nil {
		return err
	}

	return r.writePlain("✓ Removed %s\n", olid)
}

// TopFiveShow prints the user's ranked favorites.
func (r *Runner) TopFiveShow(ctx context.Context, cmd *cli.Command) error {
	r.reloadConfig(cmd)
	userID := cmd.String("user")
	if userID == "" {
		return fmt.Errorf("%w: --user is required", shared.ErrMissingArgument)
	}

	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	topFive, err := repositories.NewTopFiveRepository(db).Get(ctx, userID)
	if err != nil {
		return err
	}

	if len(topFive.Items) == 0 {
		return r.writePlain("No top five set.\n")
	}
	for i, item := range topFive.Items {
		r.writePlain("%d. %s\n", i+1, item)
	}
	return nil
}

// TopFiveSet replaces the user's ranked favorites.
func (r *Runner) TopFiveSet(ctx context.Context, cmd *cli.Command) error {
	r.reloadConfig(cmd)
	userID := cmd.String("user")
	titles := cmd.StringArgs("titles")
	if userID == "" || len(titles) == 0 {
		return fmt.Errorf("%w: --user and at least one title are required", shared.ErrMissingArgument)
	}

	db, err := r.openDatabase()
	if err != nil {
		return err
	}
	defer db.Close()

	if err := repositories.NewTopFiveRepository(db).Upsert(ctx, userID, titles); err != nil {
		return err
	}

	return r.writePlain("✓ Top five saved (%d items)\n", len(titles))
}
