package shared

import "fmt"

var (
	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Token lifecycle errors
	//
	// ErrAuthRequired means there is no usable token for the user: none
	// stored, a terminal record without a refresh token, or a refresh the
	// provider rejected. The only way forward is the authorization flow.
	ErrAuthRequired       = fmt.Errorf("authorization required")
	ErrAuthExchangeFailed = fmt.Errorf("authorization code exchange failed")
	ErrTokenNotFound      = fmt.Errorf("no token stored for user")

	// Pipeline errors
	ErrMalformedRecommendation = fmt.Errorf("recommendation response unparseable")
	ErrRecommendationFailed    = fmt.Errorf("recommendation request failed")
	ErrPlaylistCreateFailed    = fmt.Errorf("playlist creation failed")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrBookNotFound       = fmt.Errorf("book not found")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
