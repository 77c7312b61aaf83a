package tasks

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/bookcadence/cadence/internal/models"
	"github.com/bookcadence/cadence/internal/shared"
	tu "github.com/bookcadence/cadence/internal/testing"
)

func TestExtractCandidates(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    []models.SongCandidate
		wantErr error
	}{
		{
			name: "clean JSON array",
			raw:  `[{"song_title":"Clair de Lune","artist":"Debussy"},{"song_title":"Holocene","artist":"Bon Iver"}]`,
			want: []models.SongCandidate{
				{Title: "Clair de Lune", Artist: "Debussy"},
				{Title: "Holocene", Artist: "Bon Iver"},
			},
		},
		{
			name: "array wrapped in chatter",
			raw:  `Here you go: [{"song_title":"A","artist":"B"}] thanks`,
			want: []models.SongCandidate{{Title: "A", Artist: "B"}},
		},
		{
			name: "array inside markdown fence",
			raw:  "Sure! Here's a playlist:\n```json\n[{\"song_title\":\"A\",\"artist\":\"B\"}]\n```\nEnjoy!",
			want: []models.SongCandidate{{Title: "A", Artist: "B"}},
		},
		{
			name: "single object fallback",
			raw:  `The best match is {"song_title":"A","artist":"B"} for this book.`,
			want: []models.SongCandidate{{Title: "A", Artist: "B"}},
		},
		{
			name: "entries missing fields dropped",
			raw:  `[{"song_title":"A","artist":"B"},{"song_title":"C"},{"artist":"D"}]`,
			want: []models.SongCandidate{{Title: "A", Artist: "B"}},
		},
		{
			name: "empty array yields zero candidates",
			raw:  `[]`,
			want: []models.SongCandidate{},
		},
		{
			name:    "no structure at all",
			raw:     "I cannot help with that request.",
			wantErr: shared.ErrMalformedRecommendation,
		},
		{
			name:    "broken JSON inside brackets",
			raw:     `[{"song_title": "A", "artist": }]`,
			wantErr: shared.ErrMalformedRecommendation,
		},
		{
			name:    "empty string",
			raw:     "",
			wantErr: shared.ErrMalformedRecommendation,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ExtractCandidates(tt.raw)

			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ExtractCandidates() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ExtractCandidates() error = %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %d candidates, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("candidate[%d] = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestRecommend(t *testing.T) {
	ctx := context.Background()
	book := &models.Book{Title: "The Left Hand of Darkness", Author: "Ursula K. Le Guin", Description: "An envoy on a frozen planet."}

	t.Run("prompt carries book metadata and count", func(t *testing.T) {
		var prompt string
		generator := &tu.MockGenerator{
			GenerateFunc: func(ctx context.Context, p string) (string, error) {
				prompt = p
				return `[{"song_title":"A","artist":"B"}]`, nil
			},
		}

		engine := NewRecommendationEngine(generator, 12, nil)
		if _, err := engine.Recommend(ctx, book); err != nil {
			t.Fatalf("Recommend() error = %v", err)
		}

		for _, fragment := range []string{book.Title, book.Author, book.Description, "12 songs", "song_title"} {
			if !strings.Contains(prompt, fragment) {
				t.Errorf("prompt missing %q", fragment)
			}
		}
	})

	t.Run("generator failure wraps ErrRecommendationFailed", func(t *testing.T) {
		generator := &tu.MockGenerator{
			GenerateFunc: func(ctx context.Context, p string) (string, error) {
				return "", errors.New("quota exceeded")
			},
		}

		engine := NewRecommendationEngine(generator, 0, nil)
		_, err := engine.Recommend(ctx, book)
		if !errors.Is(err, shared.ErrRecommendationFailed) {
			t.Errorf("error = %v, want ErrRecommendationFailed", err)
		}
	})

	t.Run("malformed output surfaces as such", func(t *testing.T) {
		generator := &tu.MockGenerator{
			GenerateFunc: func(ctx context.Context, p string) (string, error) {
				return "sorry, no songs today", nil
			},
		}

		engine := NewRecommendationEngine(generator, 0, nil)
		_, err := engine.Recommend(ctx, book)
		if !errors.Is(err, shared.ErrMalformedRecommendation) {
			t.Errorf("error = %v, want ErrMalformedRecommendation", err)
		}
	})
}
