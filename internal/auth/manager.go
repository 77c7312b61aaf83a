// package auth owns the per-user OAuth token lifecycle: acquisition,
// expiry detection, proactive refresh, and invalidation.
package auth

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/bookcadence/cadence/internal/models"
	"github.com/bookcadence/cadence/internal/services"
	"github.com/bookcadence/cadence/internal/shared"
	"github.com/charmbracelet/log"
	"golang.org/x/oauth2"
)

// TokenStore is the durable mapping from user identity to credential
// record. Implemented by repositories.TokenRepository.
type TokenStore interface {
	Get(ctx context.Context, userID string) (*models.TokenRecord, error)
	Upsert(ctx context.Context, record *models.TokenRecord) error
	Delete(ctx context.Context, userID string) error
}

// ClientFactory mints a provider client bound to one access token.
type ClientFactory func(token *oauth2.Token) services.MusicClient

// TokenManager validates, refreshes, and invalidates per-user tokens.
//
// Records pass through the manager for the duration of one operation and
// are written back immediately after mutation; nothing is cached between
// requests, so concurrent requests never observe a stale token.
type TokenManager struct {
	store    TokenStore
	provider services.OAuthProvider
	clients  ClientFactory
	skew     time.Duration
	logger   *log.Logger

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewTokenManager creates a TokenManager with the given refresh skew.
func NewTokenManager(store TokenStore, provider services.OAuthProvider, clients ClientFactory, skew time.Duration, logger *log.Logger) *TokenManager {
	if skew <= 0 {
		skew = 60 * time.Second
	}
	if logger == nil {
		logger = shared.NewLogger(nil)
	}

	return &TokenManager{
		store:    store,
		provider: provider,
		clients:  clients,
		skew:     skew,
		logger:   logger,
		locks:    make(map[string]*sync.Mutex),
	}
}

// userLock returns the mutex serializing refresh-and-persist for one user.
// Without it two concurrent refreshes can race and one overwrite the
// other's rotated refresh token, invalidating the loser's session.
func (m *TokenManager) userLock(userID string) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()

	lock, ok := m.locks[userID]
	if !ok {
		lock = &sync.Mutex{}
		m.locks[userID] = lock
	}
	return lock
}

// AuthURL returns the provider authorization URL for the given CSRF state.
func (m *TokenManager) AuthURL(state string) string {
	return m.provider.AuthCodeURL(state)
}

// GetValidToken returns a usable token record for the user, refreshing
// proactively when the access token is within the skew of expiry.
//
// A fresh record costs zero provider calls. A successful refresh performs
// exactly one store upsert; a failed refresh performs exactly one store
// delete and surfaces [shared.ErrAuthRequired].
func (m *TokenManager) GetValidToken(ctx context.Context, userID string) (*models.TokenRecord, error) {
	lock := m.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	record, err := m.store.Get(ctx, userID)
	if errors.Is(err, shared.ErrTokenNotFound) {
		return nil, fmt.Errorf("%w: %s", shared.ErrAuthRequired, userID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load token record: %w", err)
	}

	if record.Expiry.IsZero() || !record.Revivable() {
		// Terminal record; clear it so later calls short-circuit.
		if err := m.store.Delete(ctx, userID); err != nil {
			m.logger.Error("failed to clear terminal token record", "user", userID, "error", err)
		}
		return nil, fmt.Errorf("%w: stored token is terminal", shared.ErrAuthRequired)
	}

	if record.Valid(m.skew) {
		return record, nil
	}

	m.logger.Debug("refreshing access token", "user", userID, "expiry", record.Expiry)

	token, err := m.provider.Refresh(ctx, record.RefreshToken)
	if err != nil {
		m.logger.Warn("token refresh rejected, invalidating record", "user", userID, "error", err)
		if delErr := m.store.Delete(ctx, userID); delErr != nil {
			m.logger.Error("failed to invalidate token record", "user", userID, "error", delErr)
		}
		return nil, fmt.Errorf("%w: refresh failed", shared.ErrAuthRequired)
	}

	refreshed := models.RecordFromToken(userID, token, record.RefreshToken)
	refreshed.Scopes = record.Scopes

	if err := m.store.Upsert(ctx, refreshed); err != nil {
		return nil, fmt.Errorf("failed to persist refreshed token: %w", err)
	}

	m.logger.Debug("access token refreshed",
		"user", userID,
		"token", shared.Redact(refreshed.AccessToken),
		"expiry", refreshed.Expiry,
	)

	return refreshed, nil
}

// Client returns a provider client authenticated as the user.
func (m *TokenManager) Client(ctx context.Context, userID string) (services.MusicClient, error) {
	record, err := m.GetValidToken(ctx, userID)
	if err != nil {
		return nil, err
	}
	return m.clients(record.OAuth2Token()), nil
}

// CompleteAuthorization exchanges a one-time authorization code for an
// initial token record, derives the user's identity from the provider
// profile, and persists the record keyed by it.
func (m *TokenManager) CompleteAuthorization(ctx context.Context, code string) (*services.UserProfile, error) {
	if code == "" {
		return nil, fmt.Errorf("%w: empty authorization code", shared.ErrAuthExchangeFailed)
	}

	token, err := m.provider.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrAuthExchangeFailed, err)
	}

	profile, err := m.clients(token).CurrentUser(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: could not resolve profile: %v", shared.ErrAuthExchangeFailed, err)
	}

	record := models.RecordFromToken(profile.ID, token, "")
	if err := m.store.Upsert(ctx, record); err != nil {
		return nil, fmt.Errorf("failed to persist token: %w", err)
	}

	m.logger.Info("authorization completed",
		"user", profile.ID,
		"token", shared.Redact(record.AccessToken),
		"revivable", record.Revivable(),
	)

	return profile, nil
}

// SignOut discards the user's stored credentials. The next call for this
// user fails with [shared.ErrAuthRequired].
func (m *TokenManager) SignOut(ctx context.Context, userID string) error {
	lock := m.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	if err := m.store.Delete(ctx, userID); err != nil {
		return fmt.Errorf("failed to delete token record: %w", err)
	}

	m.logger.Info("signed out", "user", userID)
	return nil
}
