package shared

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication errors
	ErrMissingToken    = fmt.Errorf("missing bearer token")
	ErrTokenExpired    = fmt.Errorf("access token expired")
	ErrRefreshFailed   = fmt.Errorf("token refresh failed")
	ErrNotAuthorized   = fmt.Errorf("not authorized")
	ErrRateLimited     = fmt.Errorf("rate limited")
	ErrDeadlineReached = fmt.Errorf("deadline reached")

	// Input validation errors
	ErrValidation       = fmt.Errorf("validation failed")
	ErrInvalidCatalogID = fmt.Errorf("%w: identifier is not catalog-shaped", ErrValidation)
	ErrNoCurrentTrack   = fmt.Errorf("%w: no current track", ErrValidation)
	ErrNoPrimaryArtist  = fmt.Errorf("%w: current track has no primary artist", ErrValidation)

	// Upstream and persistence errors
	ErrUpstreamUnavailable = fmt.Errorf("catalog unavailable")
	ErrNotFound            = fmt.Errorf("not found")
	ErrPersistence         = fmt.Errorf("persistence failure")
)

// StatusCode maps an error from the round pipeline to the HTTP status it should surface as.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, ErrMissingToken), errors.Is(err, ErrNotAuthorized), errors.Is(err, ErrTokenExpired):
		return http.StatusUnauthorized
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrUpstreamUnavailable), errors.Is(err, ErrRateLimited):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
