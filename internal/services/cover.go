package services

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bookcadence/cadence/internal/shared"
)

// Spotify rejects cover uploads over 256KB of encoded payload.
const maxCoverBytes = 190 * 1024

// CoverSource fetches artwork for a playlist cover as base64-encoded JPEG.
type CoverSource interface {
	FetchJPEG(ctx context.Context, url string) (string, error)
}

// HTTPCoverSource implements [CoverSource] against any public image URL,
// typically an OpenLibrary cover.
type HTTPCoverSource struct {
	httpClient *http.Client
}

// NewHTTPCoverSource creates a cover fetcher with the given timeout.
func NewHTTPCoverSource(timeout time.Duration) *HTTPCoverSource {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &HTTPCoverSource{httpClient: &http.Client{Timeout: timeout}}
}

// FetchJPEG downloads the image and returns it base64 encoded. Only JPEG
// responses within the provider's size limit are accepted.
func (s *HTTPCoverSource) FetchJPEG(ctx context.Context, url string) (string, error) {
	if url == "" {
		return "", fmt.Errorf("%w: no cover url", shared.ErrInvalidArgument)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: cover fetch status %d", shared.ErrAPIRequest, resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType != "" && !strings.Contains(contentType, "image/jpeg") {
		return "", fmt.Errorf("%w: cover is %s, want image/jpeg", shared.ErrInvalidInput, contentType)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxCoverBytes+1))
	if err != nil {
		return "", fmt.Errorf("failed to read cover: %w", err)
	}
	if len(data) > maxCoverBytes {
		return "", fmt.Errorf("%w: cover exceeds %d bytes", shared.ErrInvalidInput, maxCoverBytes)
	}

	return base64.StdEncoding.EncodeToString(data), nil
}
