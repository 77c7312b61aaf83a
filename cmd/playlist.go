package main

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/bookcadence/cadence/internal/services"
	"github.com/bookcadence/cadence/internal/shared"
	"github.com/bookcadence/cadence/internal/tasks"
	"github.com/urfave/cli/v3"
)

// PlaylistBuild runs the full book-to-playlist pipeline from the browser-
// less terminal, streaming progress messages as phases complete.
func (r *Runner) PlaylistBuild(ctx context.Context, cmd *cli.Command) error {
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

	manager, _, err := r.buildManager(db)
	if err != nil {
		return err
	}

	gemini, err := services.NewGeminiService(
		r.config.Credentials.Gemini.APIKey,
		r.config.Credentials.Gemini.Model,
		r.config.Playlist.LLMTimeout(),
	)
	if err != nil {
		return err
	}

	catalog := services.NewOpenLibraryService(r.config.Playlist.ProviderTimeout(), openLibraryCacheTTL)
	defer catalog.Stop()

	book, err := catalog.GetBook(ctx, olid)
	if err != nil {
		return err
	}
	r.writePlain("Building playlist for %q by %s\n", book.Title, book.Author)

	engine := tasks.NewPlaylistEngine(
		manager,
		tasks.NewRecommendationEngine(gemini, r.config.Playlist.TargetCount, r.logger),
		tasks.NewTrackResolver(r.config.Playlist.ResolverWorkers, r.config.Playlist.SearchRatePerSecond, r.logger),
		services.NewHTTPCoverSource(r.config.Playlist.ProviderTimeout()),
		r.logger,
	)

	progress := make(chan tasks.ProgressUpdate, 32)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for update := range progress {
			r.writePlain("%s\n", update.Message)
		}
	}()

	result, err := engine.BuildPlaylist(ctx, userID, book, progress)
	close(progress)
	wg.Wait()

	if errors.Is(err, shared.ErrAuthRequired) {
		return fmt.Errorf("%w: run `cadence auth login` first", shared.ErrAuthRequired)
	}
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(result, true)
	}

	r.writePlain("✓ Playlist created: %s\n", result.PlaylistID)
	r.writePlain("Tracks added: %d\n", result.TracksAdded)
	if result.TracksUnresolved > 0 {
		r.writePlain("Tracks that could not be matched: %d\n", result.TracksUnresolved)
	}
	return nil
}
