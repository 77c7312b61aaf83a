package server

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"strings"

	"github.com/bookcadence/cadence/internal/shared"
)

const (
	sessionCookie = "cadence_session"
	stateCookie   = "cadence_oauth_state"
)

// SessionCodec signs and verifies the session cookie binding a browser to
// a provider user identity.
//
// The cookie carries the identity in the clear plus an HMAC-SHA256 tag;
// it is a binding, not a secret. Tokens themselves never leave the
// server-side store.
type SessionCodec struct {
	secret []byte
}

// NewSessionCodec creates a codec from the configured signing secret.
func NewSessionCodec(secret string) (*SessionCodec, error) {
	if len(secret) < 16 {
		return nil, fmt.Errorf("%w: session secret must be at least 16 bytes", shared.ErrInvalidConfig)
	}
	return &SessionCodec{secret: []byte(secret)}, nil
}

func (c *SessionCodec) sign(value string) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write([]byte(value))
	return hex.EncodeToString(mac.Sum(nil))
}

// Encode produces the signed cookie value for a user identity.
func (c *SessionCodec) Encode(userID string) string {
	return userID + "." + c.sign(userID)
}

// Decode verifies a cookie value and returns the bound user identity.
func (c *SessionCodec) Decode(value string) (string, error) {
	idx := strings.LastIndex(value, ".")
	if idx <= 0 {
		return "", fmt.Errorf("%w: malformed session", shared.ErrAuthRequired)
	}

	userID, tag := value[:idx], value[idx+1:]
	if !hmac.Equal([]byte(tag), []byte(c.sign(userID))) {
		return "", fmt.Errorf("%w: session signature mismatch", shared.ErrAuthRequired)
	}

	return userID, nil
}

// SetSession writes the session cookie for a user.
func (c *SessionCodec) SetSession(w http.ResponseWriter, userID string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    c.Encode(userID),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearSession expires the session cookie.
func (c *SessionCodec) ClearSession(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
}

// UserFromRequest extracts and verifies the session bound to the request.
func (c *SessionCodec) UserFromRequest(r *http.Request) (string, error) {
	cookie, err := r.Cookie(sessionCookie)
	if err != nil {
		return "", fmt.Errorf("%w: no session", shared.ErrAuthRequired)
	}
	return c.Decode(cookie.Value)
}
