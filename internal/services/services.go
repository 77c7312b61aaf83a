// package services implements clients for the external HTTP APIs Cadence
// orchestrates
//
// Spotify (OAuth provider + music provider), Gemini (generative language),
// OpenLibrary (book metadata)
package services

import (
	"context"

	"github.com/bookcadence/cadence/internal/models"
	"golang.org/x/oauth2"
)

// OAuthProvider defines the authorization side of the music provider.
type OAuthProvider interface {
	// AuthCodeURL returns the provider authorization URL for the given CSRF state.
	AuthCodeURL(state string) string

	// Exchange trades a one-time authorization code for a token.
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)

	// Refresh obtains a fresh access token from a refresh token.
	Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error)
}

// MusicClient is a provider client authenticated as one user.
//
// Instances are bound to a single access token and request scope; callers
// obtain them from the token manager per request, never cache them.
type MusicClient interface {
	// CurrentUser retrieves the authenticated user's profile.
	CurrentUser(ctx context.Context) (*UserProfile, error)

	// SearchTrack runs a track search and returns up to limit hits in the
	// provider's relevance order.
	SearchTrack(ctx context.Context, query string, limit int) ([]TrackHit, error)

	// CreatePlaylist creates an empty playlist owned by userID.
	CreatePlaylist(ctx context.Context, userID, name, description string, public bool) (string, error)

	// AddTracks appends track URIs to a playlist in one batch call.
	AddTracks(ctx context.Context, playlistID string, uris []string) error

	// UploadCoverImage sets the playlist cover from base64-encoded JPEG data.
	UploadCoverImage(ctx context.Context, playlistID, base64JPEG string) error
}

// Generator produces raw text from a natural-language prompt.
//
// The response is a raw-text boundary: callers apply their own strict
// parse and must not assume the text is well-formed JSON.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// BookCatalog resolves a public catalog identifier to book metadata.
type BookCatalog interface {
	GetBook(ctx context.Context, olid string) (*models.Book, error)
}

// UserProfile is the provider's view of the authenticated user.
type UserProfile struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	ImageURL    string `json:"image_url,omitempty"`
}

// TrackHit is one search result.
type TrackHit struct {
	ID     string
	Name   string
	Artist string
	URI    string
}
