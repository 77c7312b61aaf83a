package tasks

import (
	"context"
	"fmt"
	"sync"

	"github.com/bookcadence/cadence/internal/models"
	"github.com/bookcadence/cadence/internal/services"
	"github.com/bookcadence/cadence/internal/shared"
	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"
)

const (
	defaultResolverWorkers = 5
	defaultSearchRate      = 8
)

// TrackResolver resolves song candidates against the provider search API.
//
// Resolution is a best-effort batch: a candidate with no hit, or whose
// lookup errors, is dropped without affecting the rest. Lookups fan out
// across a small worker pool sharing one rate limiter so the batch stays
// under the provider's request ceiling.
type TrackResolver struct {
	workers int
	limiter *rate.Limiter
	logger  *log.Logger
}

// NewTrackResolver creates a resolver with the given pool size and
// searches-per-second ceiling.
func NewTrackResolver(workers, searchesPerSecond int, logger *log.Logger) *TrackResolver {
	if workers <= 0 {
		workers = defaultResolverWorkers
	}
	if searchesPerSecond <= 0 {
		searchesPerSecond = defaultSearchRate
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	return &TrackResolver{
		workers: workers,
		limiter: rate.NewLimiter(rate.Limit(searchesPerSecond), searchesPerSecond),
		logger:  logger,
	}
}

// Resolve looks up each candidate with a limit-1 track search and returns
// the resolved subset in input order.
func (r *TrackResolver) Resolve(ctx context.Context, client services.MusicClient, candidates []models.SongCandidate) []models.ResolvedTrack {
	if len(candidates) == 0 {
		return nil
	}

	results := make([]*models.ResolvedTrack, len(candidates))

	var wg sync.WaitGroup
	sem := make(chan struct{}, r.workers)

	for i, candidate := range candidates {
		wg.Add(1)
		go func(i int, candidate models.SongCandidate) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			results[i] = r.resolveOne(ctx, client, candidate)
		}(i, candidate)
	}

	wg.Wait()

	resolved := make([]models.ResolvedTrack, 0, len(candidates))
	for _, track := range results {
		if track != nil {
			resolved = append(resolved, *track)
		}
	}

	r.logger.Debug("track resolution finished", "candidates", len(candidates), "resolved", len(resolved))

	return resolved
}

// resolveOne performs one search. Any failure means "no hit" for this
// candidate; never an error for the batch.
func (r *TrackResolver) resolveOne(ctx context.Context, client services.MusicClient, candidate models.SongCandidate) *models.ResolvedTrack {
	if err := r.limiter.Wait(ctx); err != nil {
		return nil
	}

	query := fmt.Sprintf("track:%s artist:%s", candidate.Title, candidate.Artist)

	hits, err := client.SearchTrack(ctx, query, 1)
	if err != nil {
		r.logger.Debug("track search failed", "title", candidate.Title, "artist", candidate.Artist, "error", err)
		return nil
	}
	if len(hits) == 0 {
		r.logger.Debug("no results for track", "title", candidate.Title, "artist", candidate.Artist)
		return nil
	}

	return &models.ResolvedTrack{
		SongCandidate: candidate,
		TrackID:       hits[0].ID,
	}
}
