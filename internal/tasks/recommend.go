package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/bookcadence/cadence/internal/models"
	"github.com/bookcadence/cadence/internal/services"
	"github.com/bookcadence/cadence/internal/shared"
	"github.com/charmbracelet/log"
)

const defaultTargetCount = 20

// RecommendationEngine turns a book into song candidates via the
// generative-language service.
type RecommendationEngine struct {
	generator   services.Generator
	targetCount int
	logger      *log.Logger
}

// NewRecommendationEngine creates an engine requesting targetCount songs
// per book.
func NewRecommendationEngine(generator services.Generator, targetCount int, logger *log.Logger) *RecommendationEngine {
	if targetCount <= 0 {
		targetCount = defaultTargetCount
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	return &RecommendationEngine{
		generator:   generator,
		targetCount: targetCount,
		logger:      logger,
	}
}

// buildPrompt embeds the book's metadata and the desired count and mix.
func (e *RecommendationEngine) buildPrompt(book *models.Book) string {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Act as a music recommendation engine. Based on the following book: %q by %s", book.Title, book.Author)
	if book.Description != "" {
		fmt.Fprintf(&sb, " (%s)", book.Description)
	}
	fmt.Fprintf(&sb, ", please provide a list of %d songs that would fit the mood and themes of the book. ", e.targetCount)
	sb.WriteString("Make it a mix of well-known songs and ambient/non-vocal tracks. ")
	sb.WriteString("Provide the answer as a JSON array with each entry containing 'song_title' and 'artist'.")

	return sb.String()
}

// Recommend asks the generator for song candidates and strictly parses
// the free-form response.
//
// Upstream failures surface as [shared.ErrRecommendationFailed];
// unparseable output as [shared.ErrMalformedRecommendation]. No partial
// result accompanies either.
func (e *RecommendationEngine) Recommend(ctx context.Context, book *models.Book) ([]models.SongCandidate, error) {
	raw, err := e.generator.Generate(ctx, e.buildPrompt(book))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrRecommendationFailed, err)
	}

	candidates, err := ExtractCandidates(raw)
	if err != nil {
		return nil, err
	}

	e.logger.Debug("recommendation parsed", "book", book.Title, "candidates", len(candidates))

	return candidates, nil
}

// ExtractCandidates pulls song candidates out of free-form model output.
//
// The model is asked for a JSON array but replies conversationally, so
// extraction takes the substring between the first '[' and the last ']'
// and parses that; when no bracket pair exists it falls back to the first
// '{' / last '}' and treats the object as a single entry. Entries missing
// either field are dropped; a response yielding no structure at all is
// [shared.ErrMalformedRecommendation].
func ExtractCandidates(raw string) ([]models.SongCandidate, error) {
	var entries []models.SongCandidate

	if sub, ok := betweenRunes(raw, '[', ']'); ok {
		if err := json.Unmarshal([]byte(sub), &entries); err != nil {
			return nil, fmt.Errorf("%w: %v", shared.ErrMalformedRecommendation, err)
		}
	} else if sub, ok := betweenRunes(raw, '{', '}'); ok {
		var single models.SongCandidate
		if err := json.Unmarshal([]byte(sub), &single); err != nil {
			return nil, fmt.Errorf("%w: %v", shared.ErrMalformedRecommendation, err)
		}
		entries = []models.SongCandidate{single}
	} else {
		return nil, fmt.Errorf("%w: no JSON array or object in response", shared.ErrMalformedRecommendation)
	}

	candidates := make([]models.SongCandidate, 0, len(entries))
	for _, entry := range entries {
		if entry.Title == "" || entry.Artist == "" {
			continue
		}
		candidates = append(candidates, entry)
	}

	return candidates, nil
}

// betweenRunes returns the substring spanning the first opening and last
// closing rune, inclusive.
func betweenRunes(s string, opening, closing rune) (string, bool) {
	start := strings.IndexRune(s, opening)
	end := strings.LastIndex(s, string(closing))
	if start < 0 || end <= start {
		return "", false
	}
	return strings.TrimSpace(s[start : end+1]), true
}
