package tasks

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/bookcadence/cadence/internal/models"
	"github.com/bookcadence/cadence/internal/services"
	tu "github.com/bookcadence/cadence/internal/testing"
)

func TestResolve(t *testing.T) {
	ctx := context.Background()

	candidates := []models.SongCandidate{
		{Title: "Song 1", Artist: "Artist 1"},
		{Title: "Song 2", Artist: "Artist 2"},
		{Title: "Song 3", Artist: "Artist 3"},
		{Title: "Song 4", Artist: "Artist 4"},
		{Title: "Song 5", Artist: "Artist 5"},
	}

	t.Run("partial resolution keeps input order", func(t *testing.T) {
		client := &tu.MockMusicClient{
			SearchTrackFunc: func(ctx context.Context, query string, limit int) ([]services.TrackHit, error) {
				switch {
				case strings.Contains(query, "Song 2"):
					return nil, nil // no hit
				case strings.Contains(query, "Song 4"):
					return nil, errors.New("rate limited") // lookup failure
				case strings.Contains(query, "Song 1"):
					return []services.TrackHit{{ID: "id1"}}, nil
				case strings.Contains(query, "Song 3"):
					return []services.TrackHit{{ID: "id3"}}, nil
				default:
					return []services.TrackHit{{ID: "id5"}}, nil
				}
			},
		}

		resolver := NewTrackResolver(3, 100, nil)
		resolved := resolver.Resolve(ctx, client, candidates)

		if len(resolved) != 3 {
			t.Fatalf("resolved %d tracks, want 3", len(resolved))
		}
		wantIDs := []string{"id1", "id3", "id5"}
		for i, track := range resolved {
			if track.TrackID != wantIDs[i] {
				t.Errorf("resolved[%d].TrackID = %q, want %q", i, track.TrackID, wantIDs[i])
			}
		}
	})

	t.Run("queries use field filters and limit 1", func(t *testing.T) {
		var gotQuery string
		var gotLimit int
		client := &tu.MockMusicClient{
			SearchTrackFunc: func(ctx context.Context, query string, limit int) ([]services.TrackHit, error) {
				gotQuery = query
				gotLimit = limit
				return []services.TrackHit{{ID: "id"}}, nil
			},
		}

		resolver := NewTrackResolver(1, 100, nil)
		resolver.Resolve(ctx, client, candidates[:1])

		if gotQuery != "track:Song 1 artist:Artist 1" {
			t.Errorf("query = %q", gotQuery)
		}
		if gotLimit != 1 {
			t.Errorf("limit = %d, want 1", gotLimit)
		}
	})

	t.Run("all lookups failing yields empty result without error", func(t *testing.T) {
		client := &tu.MockMusicClient{
			SearchTrackFunc: func(ctx context.Context, query string, limit int) ([]services.TrackHit, error) {
				return nil, errors.New("service down")
			},
		}

		resolver := NewTrackResolver(2, 100, nil)
		if resolved := resolver.Resolve(ctx, client, candidates); len(resolved) != 0 {
			t.Errorf("resolved %d tracks, want 0", len(resolved))
		}
	})

	t.Run("empty candidate list short-circuits", func(t *testing.T) {
		client := &tu.MockMusicClient{}
		resolver := NewTrackResolver(2, 100, nil)

		if resolved := resolver.Resolve(ctx, client, nil); resolved != nil {
			t.Errorf("Resolve(nil) = %v, want nil", resolved)
		}
		if client.SearchCalls != 0 {
			t.Errorf("SearchCalls = %d, want 0", client.SearchCalls)
		}
	})

	t.Run("cancelled context stops lookups", func(t *testing.T) {
		cancelled, cancel := context.WithCancel(ctx)
		cancel()

		client := &tu.MockMusicClient{
			SearchTrackFunc: func(ctx context.Context, query string, limit int) ([]services.TrackHit, error) {
				return []services.TrackHit{{ID: "id"}}, nil
			},
		}

		resolver := NewTrackResolver(2, 100, nil)
		if resolved := resolver.Resolve(cancelled, client, candidates); len(resolved) != 0 {
			t.Errorf("resolved %d tracks with cancelled context, want 0", len(resolved))
		}
	})
}
