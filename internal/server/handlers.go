package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/bookcadence/cadence/internal/models"
	"github.com/bookcadence/cadence/internal/shared"
	"github.com/gorilla/mux"
)

// handleLogin starts the provider authorization flow: a random state is
// pinned in a short-lived cookie and the browser is sent to the provider.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	state := shared.GenerateID()

	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    state,
		Path:     "/auth",
		MaxAge:   600,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, s.auth.AuthURL(state), http.StatusFound)
}

// handleCallback completes the authorization flow: state check, code
// exchange, session binding.
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(stateCookie)
	if err != nil || cookie.Value == "" || r.URL.Query().Get("state") != cookie.Value {
		s.logger.Warn("oauth state mismatch", "remote", r.RemoteAddr)
		s.writeError(w, http.StatusBadRequest, "invalid state parameter")
		return
	}

	code := r.URL.Query().Get("code")
	if code == "" {
		s.writeError(w, http.StatusBadRequest, fmt.Sprintf(
			"authorization failed: %s - %s",
			r.URL.Query().Get("error"),
			r.URL.Query().Get("error_description"),
		))
		return
	}

	profile, err := s.auth.CompleteAuthorization(r.Context(), code)
	if err != nil {
		s.logger.Error("authorization exchange failed", "error", err)
		s.writeError(w, http.StatusForbidden, "could not complete authorization")
		return
	}

	// The state value is single-use; expire the cookie now that the
	// exchange consumed it.
	http.SetCookie(w, &http.Cookie{
		Name:     stateCookie,
		Value:    "",
		Path:     "/auth",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	s.sessions.SetSession(w, profile.ID)

	w.Header().Set("Content-Type", "text/html")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "<html><body><h1>Connected to Spotify</h1><p>Welcome, %s. You can close this window.</p></body></html>", profile.DisplayName)
}

// handleLogout discards the stored credentials and the session.
func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	userID := requestUser(r)

	if err := s.auth.SignOut(r.Context(), userID); err != nil {
		s.logger.Error("sign out failed", "user", userID, "error", err)
		s.writeError(w, http.StatusInternalServerError, "sign out failed")
		return
	}

	s.sessions.ClearSession(w)
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "signed out"})
}

// handleProfile returns the provider profile for the session user.
func (s *Server) handleProfile(w http.ResponseWriter, r *http.Request) {
	client, err := s.auth.Client(r.Context(), requestUser(r))
	if err != nil {
		s.respondAuthOrInternal(w, err)
		return
	}

	profile, err := client.CurrentUser(r.Context())
	if err != nil {
		s.logger.Error("profile fetch failed", "error", err)
		s.writeError(w, http.StatusBadGateway, "could not fetch profile")
		return
	}

	s.writeJSON(w, http.StatusOK, profile)
}

type buildPlaylistRequest struct {
	OLID string `json:"olid"`
}

// handleBuildPlaylist runs the pipeline for a book and reports either a
// typed failure or the (possibly partial) result.
func (s *Server) handleBuildPlaylist(w http.ResponseWriter, r *http.Request) {
	var req buildPlaylistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.OLID == "" {
		s.writeError(w, http.StatusBadRequest, "olid required")
		return
	}

	book, err := s.catalog.GetBook(r.Context(), req.OLID)
	if err != nil {
		s.respondCatalogError(w, err)
		return
	}

	result, err := s.builder.BuildPlaylist(r.Context(), requestUser(r), book, nil)
	switch {
	case err == nil:
		s.writeJSON(w, http.StatusCreated, result)
	case errors.Is(err, shared.ErrAuthRequired):
		s.writeJSON(w, http.StatusUnauthorized, map[string]string{
			"error": "authorization required",
			"login": "/auth/login",
		})
	case errors.Is(err, shared.ErrRecommendationFailed), errors.Is(err, shared.ErrPlaylistCreateFailed):
		s.logger.Error("playlist build failed", "book", book.Title, "error", err)
		s.writeError(w, http.StatusBadGateway, "could not build playlist")
	default:
		s.logger.Error("playlist build failed", "book", book.Title, "error", err)
		s.writeError(w, http.StatusInternalServerError, "could not build playlist")
	}
}

// handleGetBook resolves catalog metadata for a work.
func (s *Server) handleGetBook(w http.ResponseWriter, r *http.Request) {
	book, err := s.catalog.GetBook(r.Context(), mux.Vars(r)["olid"])
	if err != nil {
		s.respondCatalogError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, book)
}

// handleListLibrary returns the session user's shelf, optionally filtered
// by ?status=.
func (s *Server) handleListLibrary(w http.ResponseWriter, r *http.Request) {
	entries, err := s.library.List(r.Context(), requestUser(r), r.URL.Query().Get("status"))
	if err != nil {
		if errors.Is(err, shared.ErrInvalidInput) {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("library list failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "could not list library")
		return
	}
	if entries == nil {
		entries = []models.LibraryEntry{}
	}
	s.writeJSON(w, http.StatusOK, entries)
}

type addToLibraryRequest struct {
	OLID   string `json:"olid"`
	Status string `json:"status"`
}

// handleAddToLibrary resolves book metadata and upserts a shelf entry.
func (s *Server) handleAddToLibrary(w http.ResponseWriter, r *http.Request) {
	var req addToLibraryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.OLID == "" {
		s.writeError(w, http.StatusBadRequest, "olid required")
		return
	}

	book, err := s.catalog.GetBook(r.Context(), req.OLID)
	if err != nil {
		s.respondCatalogError(w, err)
		return
	}

	entry := &models.LibraryEntry{
		Username:   requestUser(r),
		Book:       *book,
		Status:     req.Status,
		TotalPages: book.PageCount,
	}

	if err := s.library.Upsert(r.Context(), entry); err != nil {
		if errors.Is(err, shared.ErrInvalidInput) {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("library upsert failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "could not save book")
		return
	}

	s.writeJSON(w, http.StatusCreated, entry)
}

// handleRemoveFromLibrary deletes a shelf entry.
func (s *Server) handleRemoveFromLibrary(w http.ResponseWriter, r *http.Request) {
	if err := s.library.Delete(r.Context(), requestUser(r), mux.Vars(r)["olid"]); err != nil {
		s.respondShelfError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}

type progressRequest struct {
	PagesRead int `json:"pages_read"`
}

// handleUpdateProgress sets the pages-read counter for a shelf entry.
func (s *Server) handleUpdateProgress(w http.ResponseWriter, r *http.Request) {
	var req progressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "pages_read required")
		return
	}

	if err := s.library.UpdateProgress(r.Context(), requestUser(r), mux.Vars(r)["olid"], req.PagesRead); err != nil {
		s.respondShelfError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

type statusRequest struct {
	Status string `json:"status"`
}

// handleUpdateStatus moves a shelf entry between reading statuses.
func (s *Server) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req statusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Status == "" {
		s.writeError(w, http.StatusBadRequest, "status required")
		return
	}

	if err := s.library.UpdateStatus(r.Context(), requestUser(r), mux.Vars(r)["olid"], req.Status); err != nil {
		s.respondShelfError(w, err)
		return
	}
	s.writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

// handleGetTopFive returns the session user's favorites list.
func (s *Server) handleGetTopFive(w http.ResponseWriter, r *http.Request) {
	topFive, err := s.topFive.Get(r.Context(), requestUser(r))
	if err != nil {
		s.logger.Error("topfive fetch failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "could not fetch top five")
		return
	}
	s.writeJSON(w, http.StatusOK, topFive)
}

type topFiveRequest struct {
	Items []string `json:"items"`
}

// handlePutTopFive replaces the session user's favorites list.
func (s *Server) handlePutTopFive(w http.ResponseWriter, r *http.Request) {
	var req topFiveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, http.StatusBadRequest, "items required")
		return
	}

	if err := s.topFive.Upsert(r.Context(), requestUser(r), req.Items); err != nil {
		if errors.Is(err, shared.ErrInvalidInput) {
			s.writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.logger.Error("topfive upsert failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "could not save top five")
		return
	}

	s.writeJSON(w, http.StatusOK, map[string]string{"status": "saved"})
}

func (s *Server) respondAuthOrInternal(w http.ResponseWriter, err error) {
	if errors.Is(err, shared.ErrAuthRequired) {
		s.writeJSON(w, http.StatusUnauthorized, map[string]string{
			"error": "authorization required",
			"login": "/auth/login",
		})
		return
	}
	s.logger.Error("request failed", "error", err)
	s.writeError(w, http.StatusInternalServerError, "internal error")
}

func (s *Server) respondCatalogError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrBookNotFound):
		s.writeError(w, http.StatusNotFound, "book not found")
	case errors.Is(err, shared.ErrInvalidArgument):
		s.writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error("catalog lookup failed", "error", err)
		s.writeError(w, http.StatusBadGateway, "could not reach book catalog")
	}
}

func (s *Server) respondShelfError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrBookNotFound):
		s.writeError(w, http.StatusNotFound, "book not on shelf")
	case errors.Is(err, shared.ErrInvalidInput):
		s.writeError(w, http.StatusBadRequest, err.Error())
	default:
		s.logger.Error("shelf update failed", "error", err)
		s.writeError(w, http.StatusInternalServerError, "could not update shelf")
	}
}
