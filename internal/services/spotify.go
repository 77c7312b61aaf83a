// Spotify API implementation of [OAuthProvider] and [MusicClient]
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bookcadence/cadence/internal/shared"
	"golang.org/x/oauth2"
)

const (
	spotifyAuthURL  = "https://accounts.spotify.com/authorize"
	spotifyTokenURL = "https://accounts.spotify.com/api/token"
	spotifyBaseURL  = "https://api.spotify.com/v1"
)

// Scopes required by the playlist pipeline: profile read, playlist write,
// cover upload.
var spotifyScopes = []string{
	"user-read-private",
	"user-read-email",
	"playlist-modify-public",
	"ugc-image-upload",
}

// SpotifyImage represents an image resource.
type SpotifyImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// SpotifyUser represents a Spotify user profile.
type SpotifyUser struct {
	ID          string         `json:"id"`
	DisplayName string         `json:"display_name"`
	Email       string         `json:"email"`
	Images      []SpotifyImage `json:"images"`
}

// SpotifyArtist represents a Spotify artist.
type SpotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URI  string `json:"uri"`
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID      string          `json:"id"`
	Name    string          `json:"name"`
	Artists []SpotifyArtist `json:"artists"`
	URI     string          `json:"uri"`
}

type searchResponse struct {
	Tracks struct {
		Items []SpotifyTrack `json:"items"`
	} `json:"tracks"`
}

// SpotifyPlaylist represents a Spotify playlist.
type SpotifyPlaylist struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Public      bool   `json:"public"`
	URI         string `json:"uri"`
}

// SpotifyService holds the OAuth2 application credentials and implements
// [OAuthProvider]. Per-user [MusicClient] instances are derived from it
// via [SpotifyService.ClientFor].
type SpotifyService struct {
	config     *oauth2.Config
	httpClient *http.Client
}

// NewSpotifyService creates a new Spotify service with the given OAuth2 credentials.
func NewSpotifyService(credentials map[string]string, timeout time.Duration) (*SpotifyService, error) {
	clientID, ok := credentials["client_id"]
	if !ok || clientID == "" {
		return nil, fmt.Errorf("%w: missing client_id", shared.ErrMissingCredentials)
	}

	clientSecret, ok := credentials["client_secret"]
	if !ok || clientSecret == "" {
		return nil, fmt.Errorf("%w: missing client_secret", shared.ErrMissingCredentials)
	}

	redirectURI, ok := credentials["redirect_uri"]
	if !ok || redirectURI == "" {
		redirectURI = "http://127.0.0.1:3000/auth/callback"
	}

	config := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURI,
		Scopes:       spotifyScopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  spotifyAuthURL,
			TokenURL: spotifyTokenURL,
		},
	}

	if timeout <= 0 {
		timeout = 15 * time.Second
	}

	return &SpotifyService{
		config:     config,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// AuthCodeURL returns the OAuth2 authorization URL for user login.
func (s *SpotifyService) AuthCodeURL(state string) string {
	return s.config.AuthCodeURL(state, oauth2.AccessTypeOffline)
}

// Exchange trades an authorization code for tokens.
func (s *SpotifyService) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	token, err := s.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange auth code: %w", err)
	}
	return token, nil
}

// Refresh performs a refresh-token grant for the stored refresh token.
//
// Done through an explicit one-shot TokenSource rather than an
// auto-refreshing client so the caller decides when a refresh happens and
// can persist the result.
func (s *SpotifyService) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	if refreshToken == "" {
		return nil, fmt.Errorf("%w: no refresh token", shared.ErrMissingCredentials)
	}

	source := s.config.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken})
	token, err := source.Token()
	if err != nil {
		return nil, fmt.Errorf("token refresh failed: %w", err)
	}

	return token, nil
}

// ClientFor returns a [MusicClient] bound to the given access token.
func (s *SpotifyService) ClientFor(token *oauth2.Token) *SpotifyClient {
	return &SpotifyClient{
		token:      token,
		httpClient: s.httpClient,
	}
}

// SpotifyClient implements [MusicClient] for one authenticated user.
type SpotifyClient struct {
	token      *oauth2.Token
	httpClient *http.Client
}

// doRequest performs an authenticated HTTP request to the Spotify API.
//
// body of nil sends no payload; a []byte is sent raw with the given
// content type, anything else is JSON-encoded.
func (c *SpotifyClient) doRequest(ctx context.Context, method, endpoint, contentType string, body, result any) error {
	if c.token == nil || c.token.AccessToken == "" {
		return fmt.Errorf("%w: client has no access token", shared.ErrAuthRequired)
	}

	var reader *bytes.Reader
	switch payload := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case []byte:
		reader = bytes.NewReader(payload)
	default:
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
		contentType = "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, method, spotifyBaseURL+endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", "Bearer "+c.token.AccessToken)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: spotify status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

// CurrentUser retrieves the authenticated user's profile.
func (c *SpotifyClient) CurrentUser(ctx context.Context) (*UserProfile, error) {
	var user SpotifyUser
	if err := c.doRequest(ctx, http.MethodGet, "/me", "", nil, &user); err != nil {
		return nil, err
	}

	profile := UserProfile{ID: user.ID, DisplayName: user.DisplayName}
	if len(user.Images) > 0 {
		profile.ImageURL = user.Images[len(user.Images)-1].URL
	}

	return &profile, nil
}

// SearchTrack runs a track search, returning up to limit hits in the
// provider's relevance order.
func (c *SpotifyClient) SearchTrack(ctx context.Context, query string, limit int) ([]TrackHit, error) {
	if limit <= 0 {
		limit = 1
	}

	endpoint := fmt.Sprintf("/search?q=%s&type=track&limit=%d", url.QueryEscape(query), limit)

	var response searchResponse
	if err := c.doRequest(ctx, http.MethodGet, endpoint, "", nil, &response); err != nil {
		return nil, err
	}

	hits := make([]TrackHit, 0, len(response.Tracks.Items))
	for _, track := range response.Tracks.Items {
		hit := TrackHit{ID: track.ID, Name: track.Name, URI: track.URI}
		if len(track.Artists) > 0 {
			hit.Artist = track.Artists[0].Name
		}
		hits = append(hits, hit)
	}

	return hits, nil
}

// CreatePlaylist creates an empty public or private playlist for the user.
func (c *SpotifyClient) CreatePlaylist(ctx context.Context, userID, name, description string, public bool) (string, error) {
	payload := map[string]any{
		"name":        name,
		"description": description,
		"public":      public,
	}

	var playlist SpotifyPlaylist
	endpoint := fmt.Sprintf("/users/%s/playlists", url.PathEscape(userID))
	if err := c.doRequest(ctx, http.MethodPost, endpoint, "", payload, &playlist); err != nil {
		return "", err
	}
	if playlist.ID == "" {
		return "", fmt.Errorf("%w: create playlist returned no id", shared.ErrAPIRequest)
	}

	return playlist.ID, nil
}

// AddTracks appends the given track URIs to a playlist in a single batch
// call. Spotify caps one call at 100 items, enough for every playlist the
// pipeline produces.
func (c *SpotifyClient) AddTracks(ctx context.Context, playlistID string, uris []string) error {
	if len(uris) == 0 {
		return nil
	}
	if len(uris) > 100 {
		return fmt.Errorf("%w: at most 100 tracks per call", shared.ErrInvalidArgument)
	}

	payload := map[string]any{"uris": uris}
	endpoint := fmt.Sprintf("/playlists/%s/tracks", url.PathEscape(playlistID))
	return c.doRequest(ctx, http.MethodPost, endpoint, "", payload, nil)
}

// UploadCoverImage sets the playlist cover from base64-encoded JPEG data.
func (c *SpotifyClient) UploadCoverImage(ctx context.Context, playlistID, base64JPEG string) error {
	if strings.TrimSpace(base64JPEG) == "" {
		return fmt.Errorf("%w: empty cover image", shared.ErrInvalidArgument)
	}

	endpoint := fmt.Sprintf("/playlists/%s/images", url.PathEscape(playlistID))
	return c.doRequest(ctx, http.MethodPut, endpoint, "image/jpeg", []byte(base64JPEG), nil)
}
