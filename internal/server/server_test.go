package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bookcadence/cadence/internal/models"
	"github.com/bookcadence/cadence/internal/services"
	"github.com/bookcadence/cadence/internal/shared"
	"github.com/bookcadence/cadence/internal/tasks"
	tu "github.com/bookcadence/cadence/internal/testing"
)

type mockAuthFlow struct {
	authURL     string
	profile     *services.UserProfile
	completeErr error
	client      services.MusicClient
	clientErr   error
	signedOut   []string
}

func (m *mockAuthFlow) AuthURL(state string) string {
	return m.authURL + "?state=" + state
}

func (m *mockAuthFlow) CompleteAuthorization(ctx context.Context, code string) (*services.UserProfile, error) {
	if m.completeErr != nil {
		return nil, m.completeErr
	}
	return m.profile, nil
}

func (m *mockAuthFlow) Client(ctx context.Context, userID string) (services.MusicClient, error) {
	if m.clientErr != nil {
		return nil, m.clientErr
	}
	return m.client, nil
}

func (m *mockAuthFlow) SignOut(ctx context.Context, userID string) error {
	m.signedOut = append(m.signedOut, userID)
	return nil
}

type mockBuilder struct {
	result *models.PlaylistResult
	err    error
}

func (m *mockBuilder) BuildPlaylist(ctx context.Context, userID string, book *models.Book, progress chan<- tasks.ProgressUpdate) (*models.PlaylistResult, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.result, nil
}

type mockShelf struct {
	entries   []models.LibraryEntry
	upserted  []*models.LibraryEntry
	listErr   error
	updateErr error
}

func (m *mockShelf) Upsert(ctx context.Context, entry *models.LibraryEntry) error {
	m.upserted = append(m.upserted, entry)
	return m.updateErr
}

func (m *mockShelf) List(ctx context.Context, username, status string) ([]models.LibraryEntry, error) {
	if m.listErr != nil {
		return nil, m.listErr
	}
	return m.entries, nil
}

func (m *mockShelf) UpdateProgress(ctx context.Context, username, olid string, pagesRead int) error {
	return m.updateErr
}

func (m *mockShelf) UpdateStatus(ctx context.Context, username, olid, status string) error {
	return m.updateErr
}

func (m *mockShelf) Delete(ctx context.Context, username, olid string) error {
	return m.updateErr
}

type mockTopFives struct {
	topFive *models.TopFive
	items   []string
}

func (m *mockTopFives) Get(ctx context.Context, username string) (*models.TopFive, error) {
	if m.topFive != nil {
		return m.topFive, nil
	}
	return &models.TopFive{Username: username, Items: []string{}}, nil
}

func (m *mockTopFives) Upsert(ctx context.Context, username string, items []string) error {
	if len(items) > 5 {
		return fmt.Errorf("%w: at most 5 items", shared.ErrInvalidInput)
	}
	m.items = items
	return nil
}

type serverFixture struct {
	auth    *mockAuthFlow
	builder *mockBuilder
	catalog *tu.MockCatalog
	shelf   *mockShelf
	topFive *mockTopFives
	server  *Server
	codec   *SessionCodec
}

func newFixture(t *testing.T) *serverFixture {
	t.Helper()

	f := &serverFixture{
		auth: &mockAuthFlow{
			authURL: "https://accounts.example.com/authorize",
			profile: &services.UserProfile{ID: "alice", DisplayName: "Alice"},
			client:  &tu.MockMusicClient{},
		},
		builder: &mockBuilder{result: &models.PlaylistResult{PlaylistID: "pl1", TracksAdded: 15, TracksUnresolved: 5}},
		catalog: &tu.MockCatalog{},
		shelf:   &mockShelf{},
		topFive: &mockTopFives{},
		codec:   newCodec(t),
	}
	f.server = NewServer(f.auth, f.builder, f.catalog, f.shelf, f.topFive, f.codec, nil)
	return f
}

// do issues a request with a valid alice session attached.
func (f *serverFixture) do(method, target, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	req.AddCookie(&http.Cookie{Name: sessionCookie, Value: f.codec.Encode("alice")})

	recorder := httptest.NewRecorder()
	f.server.ServeHTTP(recorder, req)
	return recorder
}

func TestAuthRoutes(t *testing.T) {
	t.Run("login redirects with state cookie", func(t *testing.T) {
		f := newFixture(t)

		req := httptest.NewRequest(http.MethodGet, "/auth/login", nil)
		recorder := httptest.NewRecorder()
		f.server.ServeHTTP(recorder, req)

		if recorder.Code != http.StatusFound {
			t.Fatalf("status = %d, want 302", recorder.Code)
		}

		location := recorder.Header().Get("Location")
		var state string
		for _, cookie := range recorder.Result().Cookies() {
			if cookie.Name == stateCookie {
				state = cookie.Value
			}
		}
		if state == "" {
			t.Fatal("no state cookie set")
		}
		if !strings.Contains(location, "state="+state) {
			t.Errorf("redirect %q does not carry state %q", location, state)
		}
	})

	t.Run("callback with matching state starts session", func(t *testing.T) {
		f := newFixture(t)

		req := httptest.NewRequest(http.MethodGet, "/auth/callback?code=abc&state=xyz", nil)
		req.AddCookie(&http.Cookie{Name: stateCookie, Value: "xyz"})
		recorder := httptest.NewRecorder()
		f.server.ServeHTTP(recorder, req)

		if recorder.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", recorder.Code)
		}

		var session string
		stateCleared := false
		for _, cookie := range recorder.Result().Cookies() {
			switch cookie.Name {
			case sessionCookie:
				session = cookie.Value
			case stateCookie:
				stateCleared = cookie.MaxAge < 0
			}
		}
		if session == "" {
			t.Fatal("no session cookie set")
		}
		if userID, err := f.codec.Decode(session); err != nil || userID != "alice" {
			t.Errorf("session decodes to (%q, %v), want alice", userID, err)
		}
		if !stateCleared {
			t.Error("state cookie not expired after exchange")
		}
	})

	t.Run("callback with state mismatch rejected", func(t *testing.T) {
		f := newFixture(t)

		req := httptest.NewRequest(http.MethodGet, "/auth/callback?code=abc&state=evil", nil)
		req.AddCookie(&http.Cookie{Name: stateCookie, Value: "xyz"})
		recorder := httptest.NewRecorder()
		f.server.ServeHTTP(recorder, req)

		if recorder.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", recorder.Code)
		}
	})

	t.Run("callback exchange failure rejected", func(t *testing.T) {
		f := newFixture(t)
		f.auth.completeErr = fmt.Errorf("%w: bad code", shared.ErrAuthExchangeFailed)

		req := httptest.NewRequest(http.MethodGet, "/auth/callback?code=abc&state=xyz", nil)
		req.AddCookie(&http.Cookie{Name: stateCookie, Value: "xyz"})
		recorder := httptest.NewRecorder()
		f.server.ServeHTTP(recorder, req)

		if recorder.Code != http.StatusForbidden {
			t.Errorf("status = %d, want 403", recorder.Code)
		}
	})

	t.Run("logout clears session and credentials", func(t *testing.T) {
		f := newFixture(t)

		recorder := f.do(http.MethodPost, "/api/logout", "")
		if recorder.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", recorder.Code)
		}
		if len(f.auth.signedOut) != 1 || f.auth.signedOut[0] != "alice" {
			t.Errorf("signedOut = %v", f.auth.signedOut)
		}
	})
}

func TestRequireSession(t *testing.T) {
	f := newFixture(t)

	t.Run("missing session is 401", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/profile", nil)
		recorder := httptest.NewRecorder()
		f.server.ServeHTTP(recorder, req)

		if recorder.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", recorder.Code)
		}
	})

	t.Run("forged session is 401", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/profile", nil)
		req.AddCookie(&http.Cookie{Name: sessionCookie, Value: "mallory.deadbeef"})
		recorder := httptest.NewRecorder()
		f.server.ServeHTTP(recorder, req)

		if recorder.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", recorder.Code)
		}
	})
}

func TestBuildPlaylistRoute(t *testing.T) {
	t.Run("success returns counts", func(t *testing.T) {
		f := newFixture(t)

		recorder := f.do(http.MethodPost, "/api/playlists", `{"olid":"OL123W"}`)
		if recorder.Code != http.StatusCreated {
			t.Fatalf("status = %d, want 201: %s", recorder.Code, recorder.Body)
		}

		var result models.PlaylistResult
		if err := json.Unmarshal(recorder.Body.Bytes(), &result); err != nil {
			t.Fatalf("decode error = %v", err)
		}
		if result.PlaylistID != "pl1" || result.TracksAdded != 15 || result.TracksUnresolved != 5 {
			t.Errorf("result = %+v", result)
		}
	})

	t.Run("missing olid is 400", func(t *testing.T) {
		f := newFixture(t)
		if recorder := f.do(http.MethodPost, "/api/playlists", `{}`); recorder.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", recorder.Code)
		}
	})

	t.Run("expired authorization is 401 with login hint", func(t *testing.T) {
		f := newFixture(t)
		f.builder.err = fmt.Errorf("%w: refresh failed", shared.ErrAuthRequired)

		recorder := f.do(http.MethodPost, "/api/playlists", `{"olid":"OL123W"}`)
		if recorder.Code != http.StatusUnauthorized {
			t.Fatalf("status = %d, want 401", recorder.Code)
		}
		if !strings.Contains(recorder.Body.String(), "/auth/login") {
			t.Errorf("body = %s, want login hint", recorder.Body)
		}
	})

	t.Run("pipeline failure is 502", func(t *testing.T) {
		for _, sentinel := range []error{shared.ErrRecommendationFailed, shared.ErrPlaylistCreateFailed} {
			f := newFixture(t)
			f.builder.err = fmt.Errorf("%w: upstream", sentinel)

			recorder := f.do(http.MethodPost, "/api/playlists", `{"olid":"OL123W"}`)
			if recorder.Code != http.StatusBadGateway {
				t.Errorf("%v: status = %d, want 502", sentinel, recorder.Code)
			}
		}
	})

	t.Run("unknown book is 404", func(t *testing.T) {
		f := newFixture(t)
		f.catalog.GetBookFunc = func(ctx context.Context, olid string) (*models.Book, error) {
			return nil, fmt.Errorf("%w: %s", shared.ErrBookNotFound, olid)
		}

		if recorder := f.do(http.MethodPost, "/api/playlists", `{"olid":"OL404W"}`); recorder.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", recorder.Code)
		}
	})
}

func TestLibraryRoutes(t *testing.T) {
	t.Run("add resolves metadata before shelving", func(t *testing.T) {
		f := newFixture(t)
		f.catalog.GetBookFunc = func(ctx context.Context, olid string) (*models.Book, error) {
			return &models.Book{OLID: olid, Title: "Piranesi", Author: "Susanna Clarke", PageCount: 272}, nil
		}

		recorder := f.do(http.MethodPost, "/api/library", `{"olid":"OL123W","status":"reading"}`)
		if recorder.Code != http.StatusCreated {
			t.Fatalf("status = %d, want 201: %s", recorder.Code, recorder.Body)
		}
		if len(f.shelf.upserted) != 1 {
			t.Fatalf("upserted %d entries", len(f.shelf.upserted))
		}
		entry := f.shelf.upserted[0]
		if entry.Username != "alice" || entry.Book.Title != "Piranesi" || entry.TotalPages != 272 {
			t.Errorf("entry = %+v", entry)
		}
	})

	t.Run("list returns entries as JSON array", func(t *testing.T) {
		f := newFixture(t)
		f.shelf.entries = []models.LibraryEntry{
			{Username: "alice", Book: models.Book{OLID: "OL123W", Title: "Piranesi"}, Status: models.StatusReading},
		}

		recorder := f.do(http.MethodGet, "/api/library?status=reading", "")
		if recorder.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", recorder.Code)
		}

		var entries []models.LibraryEntry
		if err := json.Unmarshal(recorder.Body.Bytes(), &entries); err != nil {
			t.Fatalf("decode error = %v", err)
		}
		if len(entries) != 1 || entries[0].Book.Title != "Piranesi" {
			t.Errorf("entries = %+v", entries)
		}
	})

	t.Run("empty shelf serializes as empty array", func(t *testing.T) {
		f := newFixture(t)
		recorder := f.do(http.MethodGet, "/api/library", "")
		if got := strings.TrimSpace(recorder.Body.String()); got != "[]" {
			t.Errorf("body = %q, want []", got)
		}
	})

	t.Run("unknown shelf entry is 404", func(t *testing.T) {
		f := newFixture(t)
		f.shelf.updateErr = fmt.Errorf("%w: no matching shelf entry", shared.ErrBookNotFound)

		if recorder := f.do(http.MethodPatch, "/api/library/OL999W/progress", `{"pages_read":10}`); recorder.Code != http.StatusNotFound {
			t.Errorf("status = %d, want 404", recorder.Code)
		}
	})

	t.Run("invalid status is 400", func(t *testing.T) {
		f := newFixture(t)
		f.shelf.updateErr = fmt.Errorf("%w: unknown status", shared.ErrInvalidInput)

		if recorder := f.do(http.MethodPatch, "/api/library/OL123W/status", `{"status":"abandoned"}`); recorder.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", recorder.Code)
		}
	})
}

func TestTopFiveRoutes(t *testing.T) {
	f := newFixture(t)

	recorder := f.do(http.MethodPut, "/api/topfive", `{"items":["Piranesi","Dune"]}`)
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", recorder.Code, recorder.Body)
	}
	if len(f.topFive.items) != 2 {
		t.Errorf("items = %v", f.topFive.items)
	}

	if recorder := f.do(http.MethodPut, "/api/topfive", `{"items":["1","2","3","4","5","6"]}`); recorder.Code != http.StatusBadRequest {
		t.Errorf("oversize list: status = %d, want 400", recorder.Code)
	}

	f.topFive.topFive = &models.TopFive{Username: "alice", Items: []string{"Piranesi"}}
	recorder = f.do(http.MethodGet, "/api/topfive", "")
	if recorder.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", recorder.Code)
	}

	var topFive models.TopFive
	if err := json.Unmarshal(recorder.Body.Bytes(), &topFive); err != nil {
		t.Fatalf("decode error = %v", err)
	}
	if len(topFive.Items) != 1 || topFive.Items[0] != "Piranesi" {
		t.Errorf("topFive = %+v", topFive)
	}
}

func TestProfileRoute(t *testing.T) {
	t.Run("returns provider profile", func(t *testing.T) {
		f := newFixture(t)
		f.auth.client = &tu.MockMusicClient{
			CurrentUserFunc: func(ctx context.Context) (*services.UserProfile, error) {
				return &services.UserProfile{ID: "alice", DisplayName: "Alice"}, nil
			},
		}

		recorder := f.do(http.MethodGet, "/api/profile", "")
		if recorder.Code != http.StatusOK {
			t.Fatalf("status = %d, want 200", recorder.Code)
		}
		if !strings.Contains(recorder.Body.String(), "Alice") {
			t.Errorf("body = %s", recorder.Body)
		}
	})

	t.Run("expired token is 401", func(t *testing.T) {
		f := newFixture(t)
		f.auth.clientErr = fmt.Errorf("%w: refresh failed", shared.ErrAuthRequired)

		if recorder := f.do(http.MethodGet, "/api/profile", ""); recorder.Code != http.StatusUnauthorized {
			t.Errorf("status = %d, want 401", recorder.Code)
		}
	})
}
