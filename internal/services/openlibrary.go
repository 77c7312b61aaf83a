// OpenLibrary implementation of [BookCatalog]
//
// Work, author, and edition shapes per https://openlibrary.org/dev/docs/api/books
package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/bookcadence/cadence/internal/models"
	"github.com/bookcadence/cadence/internal/shared"
	"github.com/jellydator/ttlcache/v3"
)

const openLibraryBaseURL = "https://openlibrary.org"

var pageNumberPattern = regexp.MustCompile(`\d+`)

type workResponse struct {
	Title       string          `json:"title"`
	Description json.RawMessage `json:"description"`
	Covers      []int           `json:"covers"`
	Authors     []struct {
		Author struct {
			Key string `json:"key"`
		} `json:"author"`
	} `json:"authors"`
}

type authorResponse struct {
	Name string `json:"name"`
}

type editionsResponse struct {
	Entries []struct {
		NumberOfPages int    `json:"number_of_pages"`
		Pagination    string `json:"pagination"`
	} `json:"entries"`
}

// OpenLibraryService implements [BookCatalog] with a TTL cache in front of
// the catalog, which is slow and aggressively rate limited.
type OpenLibraryService struct {
	baseURL    string
	httpClient *http.Client
	cache      *ttlcache.Cache[string, *models.Book]
}

// NewOpenLibraryService creates a catalog client caching lookups for ttl.
func NewOpenLibraryService(timeout, ttl time.Duration) *OpenLibraryService {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	if ttl <= 0 {
		ttl = time.Hour
	}

	cache := ttlcache.New(
		ttlcache.WithTTL[string, *models.Book](ttl),
		ttlcache.WithDisableTouchOnHit[string, *models.Book](),
	)
	go cache.Start()

	return &OpenLibraryService{
		baseURL:    openLibraryBaseURL,
		httpClient: &http.Client{Timeout: timeout},
		cache:      cache,
	}
}

// Stop shuts down the cache's expiration loop.
func (o *OpenLibraryService) Stop() {
	o.cache.Stop()
}

// GetBook resolves an OpenLibrary work identifier (bare "OL45883W" or full
// "/works/OL45883W" key) to book metadata.
func (o *OpenLibraryService) GetBook(ctx context.Context, olid string) (*models.Book, error) {
	olid = normalizeOLID(olid)
	if olid == "" {
		return nil, fmt.Errorf("%w: empty work identifier", shared.ErrInvalidArgument)
	}

	if item := o.cache.Get(olid); item != nil {
		return item.Value(), nil
	}

	var work workResponse
	if err := o.fetch(ctx, fmt.Sprintf("/works/%s.json", olid), &work); err != nil {
		return nil, err
	}
	if work.Title == "" {
		return nil, fmt.Errorf("%w: %s", shared.ErrBookNotFound, olid)
	}

	book := &models.Book{
		OLID:        olid,
		Title:       work.Title,
		Description: decodeDescription(work.Description),
	}

	if len(work.Covers) > 0 && work.Covers[0] > 0 {
		book.CoverURL = fmt.Sprintf("https://covers.openlibrary.org/b/id/%d-L.jpg", work.Covers[0])
	}

	// Author lookups are separate requests; a failed one degrades the
	// result instead of failing the book.
	var names []string
	for _, entry := range work.Authors {
		if entry.Author.Key == "" {
			continue
		}
		var author authorResponse
		if err := o.fetch(ctx, entry.Author.Key+".json", &author); err != nil {
			continue
		}
		if author.Name != "" {
			names = append(names, author.Name)
		}
	}
	book.Author = strings.Join(names, ", ")

	book.PageCount = o.pageCount(ctx, olid)

	o.cache.Set(olid, book, ttlcache.DefaultTTL)

	return book, nil
}

// pageCount derives a representative page count across editions: the most
// common direct number_of_pages wins, with pagination-string parsing as a
// fallback. Zero means unknown.
func (o *OpenLibraryService) pageCount(ctx context.Context, olid string) int {
	var editions editionsResponse
	if err := o.fetch(ctx, fmt.Sprintf("/works/%s/editions.json?limit=100", olid), &editions); err != nil {
		return 0
	}

	var counts []int
	for _, entry := range editions.Entries {
		if entry.NumberOfPages > 0 {
			counts = append(counts, entry.NumberOfPages)
			continue
		}

		// Pagination strings look like "xviii, 312 p."; the largest
		// numeric token is commonly the page count.
		best := 0
		for _, token := range pageNumberPattern.FindAllString(entry.Pagination, -1) {
			if n, err := strconv.Atoi(token); err == nil && n > best {
				best = n
			}
		}
		if best > 0 {
			counts = append(counts, best)
		}
	}

	if len(counts) == 0 {
		return 0
	}

	occurrences := make(map[int]int)
	for _, n := range counts {
		occurrences[n]++
	}

	mode, modeCount := 0, 0
	for n, c := range occurrences {
		if c > modeCount || (c == modeCount && n < mode) {
			mode, modeCount = n, c
		}
	}
	if modeCount > 1 {
		return mode
	}

	// No repeated value across editions; fall back to the median sample.
	sort.Ints(counts)
	return counts[len(counts)/2]
}

func (o *OpenLibraryService) fetch(ctx context.Context, path string, result any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, o.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := o.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("%w: %s", shared.ErrBookNotFound, path)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: openlibrary status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	return nil
}

// decodeDescription handles the catalog's two description encodings: a
// bare string or {"type": ..., "value": ...}.
func decodeDescription(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}

	var direct string
	if err := json.Unmarshal(raw, &direct); err == nil {
		return direct
	}

	var wrapped struct {
		Value string `json:"value"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil {
		return wrapped.Value
	}

	return ""
}

func normalizeOLID(olid string) string {
	olid = strings.TrimSpace(olid)
	olid = strings.TrimPrefix(olid, "/")
	olid = strings.TrimPrefix(olid, "works/")
	return olid
}
