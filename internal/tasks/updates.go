package tasks

import (
	"fmt"

	"github.com/bookcadence/cadence/internal/models"
)

// ProgressUpdate represents a progress event during a playlist build.
//
// Used to send real-time updates to the CLI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data
}

// Operation phase enumeration
type Phase int

const (
	Authorize Phase = iota
	Recommend
	CreatePlaylist
	SearchTracks
	AddTracks
	UploadCover
)

func (p Phase) String() string {
	switch p {
	case Authorize:
		return "authorize"
	case Recommend:
		return "recommend"
	case CreatePlaylist:
		return "create_playlist"
	case SearchTracks:
		return "search_tracks"
	case AddTracks:
		return "add_tracks"
	case UploadCover:
		return "upload_cover"
	default:
		return ""
	}
}

func authorizeUpdate() ProgressUpdate {
	return ProgressUpdate{
		Phase:   Authorize,
		Step:    1,
		Total:   1,
		Message: "Checking Spotify authorization...",
	}
}

func recommendUpdate(book *models.Book) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Recommend,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Asking for songs to match %q...", book.Title),
	}
}

func candidatesUpdate(count int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Recommend,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Received %d song candidates", count),
	}
}

func createPlaylistUpdate(name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   CreatePlaylist,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Creating playlist: %s", name),
	}
}

func searchTrackUpdate(step, total int, candidate models.SongCandidate) ProgressUpdate {
	return ProgressUpdate{
		Phase:   SearchTracks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s - %s", step, total, candidate.Artist, candidate.Title),
	}
}

func addTracksUpdate(count int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   AddTracks,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Adding %d tracks to playlist...", count),
	}
}

func uploadCoverUpdate() ProgressUpdate {
	return ProgressUpdate{
		Phase:   UploadCover,
		Step:    1,
		Total:   1,
		Message: "Uploading playlist cover...",
	}
}
