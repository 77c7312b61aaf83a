// package models defines the data model for the Cadence reading tracker
package models

import (
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// TokenRecord is the persisted OAuth credential state for one user.
//
// A record with a refresh token is revivable forever; one without is
// terminal and the user must re-authenticate. Records are owned by the
// token repository and held by callers only for the duration of a single
// validate/refresh operation.
type TokenRecord struct {
	UserID       string    `json:"user_id"`
	AccessToken  string    `json:"-"`
	RefreshToken string    `json:"-"`
	TokenType    string    `json:"token_type"`
	Scopes       []string  `json:"scopes"`
	Expiry       time.Time `json:"expiry"`
}

// Valid reports whether the access token is still usable given the
// proactive refresh buffer.
func (t *TokenRecord) Valid(skew time.Duration) bool {
	if t.Expiry.IsZero() {
		return false
	}
	return time.Until(t.Expiry) >= skew
}

// Revivable reports whether the record can be refreshed without user
// interaction.
func (t *TokenRecord) Revivable() bool {
	return t.RefreshToken != ""
}

// OAuth2Token converts the record to the [oauth2.Token] form provider
// clients take.
func (t *TokenRecord) OAuth2Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		TokenType:    t.TokenType,
		Expiry:       t.Expiry,
	}
}

// RecordFromToken builds a TokenRecord for userID from a provider token.
//
// When the provider rotates refresh tokens the new one is taken; when it
// omits one, previous (the stored refresh token) is kept so the record
// stays revivable.
func RecordFromToken(userID string, tok *oauth2.Token, previous string) *TokenRecord {
	refresh := tok.RefreshToken
	if refresh == "" {
		refresh = previous
	}
	tokenType := tok.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}

	record := &TokenRecord{
		UserID:       userID,
		AccessToken:  tok.AccessToken,
		RefreshToken: refresh,
		TokenType:    tokenType,
		Expiry:       tok.Expiry,
	}

	if scope, ok := tok.Extra("scope").(string); ok && scope != "" {
		record.Scopes = strings.Fields(scope)
	}

	return record
}

// Book represents book metadata resolved from the public catalog.
type Book struct {
	OLID        string `json:"olid"`
	Title       string `json:"title"`
	Author      string `json:"author"`
	Description string `json:"description,omitempty"`
	CoverURL    string `json:"cover_url,omitempty"`
	PageCount   int    `json:"page_count,omitempty"`
}

// SongCandidate is an unresolved {title, artist} suggestion from the
// recommendation step. Ephemeral, never persisted.
type SongCandidate struct {
	Title  string `json:"song_title"`
	Artist string `json:"artist"`
}

// ResolvedTrack is a SongCandidate augmented with the provider-canonical
// track identifier.
type ResolvedTrack struct {
	SongCandidate
	TrackID string `json:"track_id"`
}

// URI returns the provider track URI used by batch add calls.
func (t ResolvedTrack) URI() string {
	return "spotify:track:" + t.TrackID
}

// PlaylistResult reports the outcome of one playlist build.
//
// PlaylistID is always set when playlist creation succeeded, even if no
// tracks could be added afterwards.
type PlaylistResult struct {
	PlaylistID       string `json:"playlist_id"`
	TracksAdded      int    `json:"count_tracks_added"`
	TracksUnresolved int    `json:"count_tracks_unresolved"`
}

// Reading statuses for library entries.
const (
	StatusTBR       = "tbr"
	StatusReading   = "reading"
	StatusCompleted = "completed"
	StatusDNF       = "dnf"
)

// ValidStatus reports whether s is a known reading status.
func ValidStatus(s string) bool {
	switch s {
	case StatusTBR, StatusReading, StatusCompleted, StatusDNF:
		return true
	}
	return false
}

// LibraryEntry is one book on a user's shelf.
type LibraryEntry struct {
	Username   string    `json:"username"`
	Book       Book      `json:"book"`
	Status     string    `json:"status"`
	PagesRead  int       `json:"pages_read"`
	TotalPages int       `json:"total_pages"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// TopFive is a user's ranked list of favorite books.
type TopFive struct {
	Username  string    `json:"username"`
	Items     []string  `json:"items"`
	UpdatedAt time.Time `json:"updated_at"`
}
