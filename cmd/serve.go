package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/bookcadence/cadence/internal/repositories"
	"github.com/bookcadence/cadence/internal/server"
	"github.com/bookcadence/cadence/internal/services"
	"github.com/bookcadence/cadence/internal/tasks"
	"github.com/urfave/cli/v3"
)

const openLibraryCacheTTL = 24 * time.Hour

// Serve wires the full application and runs the HTTP server until
// interrupted.
func (r *Runner) Serve(ctx context.Context, cmd *cli.Command) error {
	r.reloadConfig(cmd)

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

	engine := tasks.NewPlaylistEngine(
		manager,
		tasks.NewRecommendationEngine(gemini, r.config.Playlist.TargetCount, r.logger),
		tasks.NewTrackResolver(r.config.Playlist.ResolverWorkers, r.config.Playlist.SearchRatePerSecond, r.logger),
		services.NewHTTPCoverSource(r.config.Playlist.ProviderTimeout()),
		r.logger,
	)

	sessions, err := server.NewSessionCodec(r.config.Server.SessionSecret)
	if err != nil {
		return err
	}

	handler := server.NewServer(
		manager,
		engine,
		catalog,
		repositories.NewLibraryRepository(db),
		repositories.NewTopFiveRepository(db),
		sessions,
		r.logger,
	)

	httpServer := &http.Server{
		Addr:         r.config.Server.Addr(),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		r.logger.Info("listening", "addr", httpServer.Addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
		r.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
	}

	return nil
}
