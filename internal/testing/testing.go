// package testing contains shared testing utilities
package testing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"

	"github.com/bookcadence/cadence/internal/models"
	"github.com/bookcadence/cadence/internal/services"
	"github.com/bookcadence/cadence/internal/shared"
	"golang.org/x/oauth2"
)

// MockProvider is a test double for [services.OAuthProvider]. Each call
// delegates to the corresponding func field when set.
type MockProvider struct {
	AuthCodeURLFunc func(state string) string
	ExchangeFunc    func(ctx context.Context, code string) (*oauth2.Token, error)
	RefreshFunc     func(ctx context.Context, refreshToken string) (*oauth2.Token, error)

	RefreshCalls  int
	ExchangeCalls int
}

func (m *MockProvider) AuthCodeURL(state string) string {
	if m.AuthCodeURLFunc != nil {
		return m.AuthCodeURLFunc(state)
	}
	return "https://accounts.example.com/authorize?state=" + state
}

func (m *MockProvider) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	m.ExchangeCalls++
	if m.ExchangeFunc != nil {
		return m.ExchangeFunc(ctx, code)
	}
	return nil, errors.New("exchange not configured")
}

func (m *MockProvider) Refresh(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	m.RefreshCalls++
	if m.RefreshFunc != nil {
		return m.RefreshFunc(ctx, refreshToken)
	}
	return nil, errors.New("refresh not configured")
}

// MockMusicClient is a test double for [services.MusicClient]. Call
// counters are safe for concurrent use since track searches fan out.
type MockMusicClient struct {
	CurrentUserFunc    func(ctx context.Context) (*services.UserProfile, error)
	SearchTrackFunc    func(ctx context.Context, query string, limit int) ([]services.TrackHit, error)
	CreatePlaylistFunc func(ctx context.Context, userID, name, description string, public bool) (string, error)
	AddTracksFunc      func(ctx context.Context, playlistID string, uris []string) error
	UploadCoverFunc    func(ctx context.Context, playlistID, jpegBase64 string) error

	mu          sync.Mutex
	SearchCalls int
	AddCalls    int
	AddedURIs   []string
}

func (m *MockMusicClient) CurrentUser(ctx context.Context) (*services.UserProfile, error) {
	if m.CurrentUserFunc != nil {
		return m.CurrentUserFunc(ctx)
	}
	return &services.UserProfile{ID: "mock-user", DisplayName: "Mock User"}, nil
}

func (m *MockMusicClient) SearchTrack(ctx context.Context, query string, limit int) ([]services.TrackHit, error) {
	m.mu.Lock()
	m.SearchCalls++
	m.mu.Unlock()
	if m.SearchTrackFunc != nil {
		return m.SearchTrackFunc(ctx, query, limit)
	}
	return nil, nil
}

func (m *MockMusicClient) CreatePlaylist(ctx context.Context, userID, name, description string, public bool) (string, error) {
	if m.CreatePlaylistFunc != nil {
		return m.CreatePlaylistFunc(ctx, userID, name, description, public)
	}
	return "mock-playlist", nil
}

func (m *MockMusicClient) AddTracks(ctx context.Context, playlistID string, uris []string) error {
	m.mu.Lock()
	m.AddCalls++
	m.AddedURIs = append(m.AddedURIs, uris...)
	m.mu.Unlock()
	if m.AddTracksFunc != nil {
		return m.AddTracksFunc(ctx, playlistID, uris)
	}
	return nil
}

func (m *MockMusicClient) UploadCoverImage(ctx context.Context, playlistID, jpegBase64 string) error {
	if m.UploadCoverFunc != nil {
		return m.UploadCoverFunc(ctx, playlistID, jpegBase64)
	}
	return nil
}

// MockGenerator is a test double for [services.Generator].
type MockGenerator struct {
	GenerateFunc  func(ctx context.Context, prompt string) (string, error)
	GenerateCalls int
}

func (m *MockGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	m.GenerateCalls++
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, prompt)
	}
	return "[]", nil
}

// MockCatalog is a test double for [services.BookCatalog].
type MockCatalog struct {
	GetBookFunc func(ctx context.Context, olid string) (*models.Book, error)
}

func (m *MockCatalog) GetBook(ctx context.Context, olid string) (*models.Book, error) {
	if m.GetBookFunc != nil {
		return m.GetBookFunc(ctx, olid)
	}
	return &models.Book{OLID: olid, Title: "Mock Book", Author: "Mock Author"}, nil
}

// MemoryTokenStore is an in-memory [auth.TokenStore] that counts writes.
type MemoryTokenStore struct {
	mu      sync.Mutex
	records map[string]*models.TokenRecord

	GetErr  error
	Upserts int
	Deletes int
}

func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{records: make(map[string]*models.TokenRecord)}
}

func (s *MemoryTokenStore) Get(ctx context.Context, userID string) (*models.TokenRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.GetErr != nil {
		return nil, s.GetErr
	}
	record, ok := s.records[userID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", shared.ErrTokenNotFound, userID)
	}
	copied := *record
	return &copied, nil
}

func (s *MemoryTokenStore) Upsert(ctx context.Context, record *models.TokenRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Upserts++
	copied := *record
	s.records[record.UserID] = &copied
	return nil
}

func (s *MemoryTokenStore) Delete(ctx context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Deletes++
	delete(s.records, userID)
	return nil
}

// Stored returns the persisted record for userID, or nil.
func (s *MemoryTokenStore) Stored(userID string) *models.TokenRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.records[userID]
}

// FWriter always returns an error on Write
type FWriter struct{}

func (f *FWriter) Write(p []byte) (n int, err error) {
	return 0, errors.New("write failed")
}

// MockRoundTripper allows custom HTTP responses for testing
type MockRoundTripper struct {
	response *http.Response
	err      error
}

func NewMockRoundTripper(r *http.Response, e error) *MockRoundTripper {
	return &MockRoundTripper{response: r, err: e}
}

func (m *MockRoundTripper) RoundTrip(*http.Request) (*http.Response, error) {
	return m.response, m.err
}

// FCloser simulates a failure when reading response body
type FCloser struct{}

func (f *FCloser) Read(p []byte) (n int, err error) {
	return 0, errors.New("read failed")
}

func (f *FCloser) Close() error {
	return nil
}

// MustOpenMemoryDB opens an in-memory SQLite database and runs the
// migrations, failing the test on any error.
func MustOpenMemoryDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := shared.NewDatabase(shared.DatabaseConfig{Path: ":memory:"})
	if err != nil {
		t.Fatalf("Failed to open in-memory database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := shared.RunMigrations(db); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}
	return db
}
