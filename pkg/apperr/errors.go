// Package apperr holds the error taxonomy shared by the sync pipeline and the
// HTTP layer, and maps each kind to a status and a machine-readable code.
package apperr

import (
	"errors"
	"net/http"
)

var (
	ErrEmailRequired          = errors.New("email is required")
	ErrUserNotFound           = errors.New("user not found")
	ErrAuthenticationRequired = errors.New("authentication required")
	ErrAuthExpired            = errors.New("access token rejected by provider")
	ErrInvalidGrant           = errors.New("refresh token rejected by provider")
	ErrRefreshFailed          = errors.New("token refresh failed")
	ErrNoRefreshToken         = errors.New("no refresh token stored")
	ErrInvalidRefreshToken    = errors.New("stored refresh token is no longer valid")
	ErrInsufficientScope      = errors.New("insufficient authentication scopes")
	ErrQuotaExceeded          = errors.New("quota exceeded")
	ErrDuplicate              = errors.New("certificate already exists")
	ErrExtraction             = errors.New("certificate extraction failed")
	ErrInvalidState           = errors.New("invalid oauth state")
	ErrQueryRequired          = errors.New("search query is required")
	ErrSearchUnavailable      = errors.New("semantic search is not configured")
	ErrEnrichmentUnavailable  = errors.New("enrichment is not configured")
	ErrPushUnavailable        = errors.New("push notifications are not configured")

	// OAuth provider error codes returned on the callback.
	ErrAccessDenied   = errors.New("access denied by user")
	ErrInvalidRequest = errors.New("invalid oauth request")
	ErrInvalidClient  = errors.New("invalid oauth client")
	ErrOAuth          = errors.New("oauth error")
)

// Classified is the client-facing view of an error.
type Classified struct {
	Status  int
	Code    string
	Message string
}

type rule struct {
	target error
	Classified
}

// Order matters: wrapped errors can match more than one sentinel, so the more
// specific kinds come first.
var rules = []rule{
	{ErrEmailRequired, Classified{http.StatusBadRequest, "EMAIL_REQUIRED", "Email parameter is required"}},
	{ErrUserNotFound, Classified{http.StatusNotFound, "USER_NOT_FOUND", "User not found. Please authenticate first."}},
	{ErrInvalidState, Classified{http.StatusBadRequest, "INVALID_STATE", "OAuth state is missing, expired or tampered with"}},
	{ErrNoRefreshToken, Classified{http.StatusBadRequest, "NO_REFRESH_TOKEN", "No refresh token available. Please sign in again."}},
	{ErrInvalidRefreshToken, Classified{http.StatusUnauthorized, "INVALID_REFRESH_TOKEN", "Refresh token is invalid or expired. Please sign in again."}},
	{ErrInvalidGrant, Classified{http.StatusUnauthorized, "INVALID_GRANT", "Google rejected the stored refresh token. Please sign in again."}},
	{ErrAuthenticationRequired, Classified{http.StatusUnauthorized, "AUTHENTICATION_REQUIRED", "Please re-authenticate with Google"}},
	{ErrAuthExpired, Classified{http.StatusUnauthorized, "AUTHENTICATION_REQUIRED", "Google rejected the access token. Please re-authenticate."}},
	{ErrInsufficientScope, Classified{http.StatusUnauthorized, "INSUFFICIENT_SCOPE", "Insufficient Gmail permissions. Please re-authenticate with proper scopes."}},
	{ErrQuotaExceeded, Classified{http.StatusTooManyRequests, "QUOTA_EXCEEDED", "Gmail API quota exceeded. Please try again later."}},
	{ErrRefreshFailed, Classified{http.StatusBadGateway, "REFRESH_FAILED", "Could not refresh Google credentials. Please try again."}},
	{ErrAccessDenied, Classified{http.StatusForbidden, "ACCESS_DENIED", "Access was denied. Please grant the requested permissions."}},
	{ErrInvalidRequest, Classified{http.StatusBadRequest, "INVALID_REQUEST", "The OAuth request was malformed"}},
	{ErrInvalidClient, Classified{http.StatusUnauthorized, "INVALID_CLIENT", "OAuth client configuration is invalid"}},
	{ErrOAuth, Classified{http.StatusInternalServerError, "OAUTH_ERROR", "OAuth authentication failed"}},
	{ErrQueryRequired, Classified{http.StatusBadRequest, "QUERY_REQUIRED", "Search query parameter q is required"}},
	{ErrSearchUnavailable, Classified{http.StatusServiceUnavailable, "SEARCH_UNAVAILABLE", "Semantic search is not available"}},
	{ErrEnrichmentUnavailable, Classified{http.StatusServiceUnavailable, "ENRICHMENT_UNAVAILABLE", "No enrichment provider is configured"}},
	{ErrPushUnavailable, Classified{http.StatusServiceUnavailable, "PUSH_UNAVAILABLE", "Gmail push notifications are not configured"}},
}

// Classify maps err onto its taxonomy entry. Unknown errors get fallbackCode
// with a 500 status.
func Classify(err error, fallbackCode string) Classified {
	for _, r := range rules {
		if errors.Is(err, r.target) {
			return r.Classified
		}
	}
	return Classified{
		Status:  http.StatusInternalServerError,
		Code:    fallbackCode,
		Message: "An unexpected error occurred",
	}
}

// OAuthError converts an OAuth 2.0 error code (RFC 6749 §5.2 or the callback
// "error" parameter) into a sentinel.
func OAuthError(code string) error {
	switch code {
	case "access_denied":
		return ErrAccessDenied
	case "invalid_request":
		return ErrInvalidRequest
	case "invalid_grant":
		return ErrInvalidGrant
	case "invalid_client":
		return ErrInvalidClient
	default:
		return ErrOAuth
	}
}
