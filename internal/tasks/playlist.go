// package tasks implements the book-to-playlist pipeline.
//
// The core abstraction is PlaylistEngine, which chains authorization,
// song recommendation, track resolution, and playlist creation into one
// best-effort operation. Progress is emitted via channels for
// non-blocking status reporting to the CLI layer.
package tasks

import (
	"context"
	"errors"
	"fmt"

	"github.com/bookcadence/cadence/internal/models"
	"github.com/bookcadence/cadence/internal/services"
	"github.com/bookcadence/cadence/internal/shared"
	"github.com/charmbracelet/log"
)

// Authorizer supplies provider clients authenticated per user.
// Satisfied by auth.TokenManager.
type Authorizer interface {
	Client(ctx context.Context, userID string) (services.MusicClient, error)
}

// Recommender produces song candidates for a book.
type Recommender interface {
	Recommend(ctx context.Context, book *models.Book) ([]models.SongCandidate, error)
}

// Resolver resolves candidates to provider track identifiers.
type Resolver interface {
	Resolve(ctx context.Context, client services.MusicClient, candidates []models.SongCandidate) []models.ResolvedTrack
}

// PlaylistEngine orchestrates the playlist build pipeline.
type PlaylistEngine struct {
	authorizer  Authorizer
	recommender Recommender
	resolver    Resolver
	covers      services.CoverSource
	logger      *log.Logger
}

// NewPlaylistEngine creates a PlaylistEngine. covers may be nil, in which
// case playlists get no cover image.
func NewPlaylistEngine(authorizer Authorizer, recommender Recommender, resolver Resolver, covers services.CoverSource, logger *log.Logger) *PlaylistEngine {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	return &PlaylistEngine{
		authorizer:  authorizer,
		recommender: recommender,
		resolver:    resolver,
		covers:      covers,
		logger:      logger,
	}
}

// sendProgress sends a progress update through the channel without blocking.
func (e *PlaylistEngine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// BuildPlaylist builds a themed playlist for the book on the user's
// account.
//
// Failure semantics per step:
//   - no valid authorization aborts everything (shared.ErrAuthRequired)
//   - recommendation failure aborts before any playlist exists
//     (shared.ErrRecommendationFailed); a junk playlist is worse than none
//   - playlist creation failure aborts (shared.ErrPlaylistCreateFailed)
//   - unresolved candidates and a failed batch add degrade the result
//     counts but never abort: the playlist is already durable
//   - cover upload is cosmetic; failure is logged and not reported
func (e *PlaylistEngine) BuildPlaylist(ctx context.Context, userID string, book *models.Book, progress chan<- ProgressUpdate) (*models.PlaylistResult, error) {
	if book == nil || book.Title == "" {
		return nil, fmt.Errorf("%w: book required", shared.ErrInvalidInput)
	}

	e.sendProgress(progress, authorizeUpdate())

	client, err := e.authorizer.Client(ctx, userID)
	if err != nil {
		return nil, err
	}

	e.sendProgress(progress, recommendUpdate(book))

	candidates, err := e.recommender.Recommend(ctx, book)
	if err != nil {
		if errors.Is(err, shared.ErrRecommendationFailed) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", shared.ErrRecommendationFailed, err)
	}
	if len(candidates) == 0 {
		return nil, fmt.Errorf("%w: model returned no usable candidates", shared.ErrRecommendationFailed)
	}

	e.sendProgress(progress, candidatesUpdate(len(candidates)))

	name := fmt.Sprintf("cadence - %s", book.Title)
	description := fmt.Sprintf("Cadence recommended playlist for: %s by %s", book.Title, book.Author)

	e.sendProgress(progress, createPlaylistUpdate(name))

	playlistID, err := client.CreatePlaylist(ctx, userID, name, description, true)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrPlaylistCreateFailed, err)
	}

	result := &models.PlaylistResult{PlaylistID: playlistID}

	e.sendProgress(progress, searchTrackUpdate(0, len(candidates), models.SongCandidate{}))

	resolved := e.resolver.Resolve(ctx, client, candidates)
	result.TracksUnresolved = len(candidates) - len(resolved)

	if len(resolved) > 0 {
		uris := make([]string, len(resolved))
		for i, track := range resolved {
			uris[i] = track.URI()
		}

		e.sendProgress(progress, addTracksUpdate(len(uris)))

		// The playlist already exists on the provider; a failed add
		// leaves it empty (TracksAdded stays 0) rather than failing
		// the build.
		if err := client.AddTracks(ctx, playlistID, uris); err != nil {
			e.logger.Warn("failed to add tracks to playlist", "playlist", playlistID, "error", err)
		} else {
			result.TracksAdded = len(resolved)
		}
	}

	e.attachCover(ctx, client, playlistID, book, progress)

	e.logger.Info("playlist built",
		"user", userID,
		"book", book.Title,
		"playlist", playlistID,
		"added", result.TracksAdded,
		"unresolved", result.TracksUnresolved,
	)

	return result, nil
}

// attachCover uploads the book's cover as the playlist image. Optional:
// every failure path logs and returns.
func (e *PlaylistEngine) attachCover(ctx context.Context, client services.MusicClient, playlistID string, book *models.Book, progress chan<- ProgressUpdate) {
	if e.covers == nil || book.CoverURL == "" {
		return
	}

	e.sendProgress(progress, uploadCoverUpdate())

	encoded, err := e.covers.FetchJPEG(ctx, book.CoverURL)
	if err != nil {
		e.logger.Debug("cover fetch failed", "url", book.CoverURL, "error", err)
		return
	}

	if err := client.UploadCoverImage(ctx, playlistID, encoded); err != nil {
		e.logger.Debug("cover upload failed", "playlist", playlistID, "error", err)
	}
}
