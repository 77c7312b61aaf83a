// package server contains the HTTP surface for Cadence: the OAuth
// authorization flow, the session binding, and the JSON API over the
// playlist pipeline and the reading shelf.
package server

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/bookcadence/cadence/internal/models"
	"github.com/bookcadence/cadence/internal/services"
	"github.com/bookcadence/cadence/internal/shared"
	"github.com/bookcadence/cadence/internal/tasks"
	"github.com/charmbracelet/log"
	"github.com/gorilla/mux"
)

// AuthFlow is the slice of the token manager the HTTP layer needs.
type AuthFlow interface {
	AuthURL(state string) string
	CompleteAuthorization(ctx context.Context, code string) (*services.UserProfile, error)
	Client(ctx context.Context, userID string) (services.MusicClient, error)
	SignOut(ctx context.Context, userID string) error
}

// PlaylistBuilder runs the book-to-playlist pipeline.
type PlaylistBuilder interface {
	BuildPlaylist(ctx context.Context, userID string, book *models.Book, progress chan<- tasks.ProgressUpdate) (*models.PlaylistResult, error)
}

// Shelf is the library persistence surface used by the API handlers.
type Shelf interface {
	Upsert(ctx context.Context, entry *models.LibraryEntry) error
	List(ctx context.Context, username, status string) ([]models.LibraryEntry, error)
	UpdateProgress(ctx context.Context, username, olid string, pagesRead int) error
	UpdateStatus(ctx context.Context, username, olid, status string) error
	Delete(ctx context.Context, username, olid string) error
}

// TopFives is the favorites persistence surface used by the API handlers.
type TopFives interface {
	Get(ctx context.Context, username string) (*models.TopFive, error)
	Upsert(ctx context.Context, username string, items []string) error
}

// Server wires the HTTP routes to the application services.
type Server struct {
	auth     AuthFlow
	builder  PlaylistBuilder
	catalog  services.BookCatalog
	library  Shelf
	topFive  TopFives
	sessions *SessionCodec
	logger   *log.Logger
	router   *mux.Router
}

// NewServer creates the HTTP server and registers all routes.
func NewServer(authFlow AuthFlow, builder PlaylistBuilder, catalog services.BookCatalog, library Shelf, topFive TopFives, sessions *SessionCodec, logger *log.Logger) *Server {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	s := &Server{
		auth:     authFlow,
		builder:  builder,
		catalog:  catalog,
		library:  library,
		topFive:  topFive,
		sessions: sessions,
		logger:   logger,
		router:   mux.NewRouter(),
	}
	s.routes()

	return s
}

func (s *Server) routes() {
	s.router.Use(s.logRequests)

	// Public routes (no session required)
	s.router.HandleFunc("/auth/login", s.handleLogin).Methods(http.MethodGet)
	s.router.HandleFunc("/auth/callback", s.handleCallback).Methods(http.MethodGet)

	api := s.router.PathPrefix("/api").Subrouter()
	api.Use(s.requireSession)

	api.HandleFunc("/profile", s.handleProfile).Methods(http.MethodGet)
	api.HandleFunc("/logout", s.handleLogout).Methods(http.MethodPost)
	api.HandleFunc("/playlists", s.handleBuildPlaylist).Methods(http.MethodPost)
	api.HandleFunc("/books/{olid}", s.handleGetBook).Methods(http.MethodGet)
	api.HandleFunc("/library", s.handleListLibrary).Methods(http.MethodGet)
	api.HandleFunc("/library", s.handleAddToLibrary).Methods(http.MethodPost)
	api.HandleFunc("/library/{olid}", s.handleRemoveFromLibrary).Methods(http.MethodDelete)
	api.HandleFunc("/library/{olid}/progress", s.handleUpdateProgress).Methods(http.MethodPatch)
	api.HandleFunc("/library/{olid}/status", s.handleUpdateStatus).Methods(http.MethodPatch)
	api.HandleFunc("/topfive", s.handleGetTopFive).Methods(http.MethodGet)
	api.HandleFunc("/topfive", s.handlePutTopFive).Methods(http.MethodPut)
}

// ServeHTTP implements [http.Handler].
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// logRequests logs method, path, and remote for every request.
func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.logger.Debug("request", "method", r.Method, "path", r.URL.Path, "remote", r.RemoteAddr)
		next.ServeHTTP(w, r)
	})
}

type contextKey string

const userContextKey contextKey = "cadence_user"

// requireSession rejects requests without a verified session cookie and
// stores the bound user identity on the request context.
func (s *Server) requireSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := s.sessions.UserFromRequest(r)
		if err != nil {
			s.writeError(w, http.StatusUnauthorized, "authorization required")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), userContextKey, userID)))
	})
}

// requestUser returns the session user set by requireSession.
func requestUser(r *http.Request) string {
	userID, _ := r.Context().Value(userContextKey).(string)
	return userID
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, status int, message string) {
	s.writeJSON(w, status, map[string]string{"error": message})
}
