package gmail

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"certhub-backend/pkg/apperr"

	"google.golang.org/api/googleapi"
)

var quotaReasons = map[string]bool{
	"rateLimitExceeded":     true,
	"userRateLimitExceeded": true,
	"quotaExceeded":         true,
	"dailyLimitExceeded":    true,
}

// classifyError maps Google API failures onto the shared taxonomy. Anything
// unrecognised is returned wrapped but unclassified.
func classifyError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, apperr.ErrRefreshFailed) {
		return err
	}

	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		switch {
		case gerr.Code == http.StatusUnauthorized:
			return fmt.Errorf("%w: %v", apperr.ErrAuthExpired, err)
		case gerr.Code == http.StatusTooManyRequests || hasReason(gerr, quotaReasons):
			return fmt.Errorf("%w: %v", apperr.ErrQuotaExceeded, err)
		case gerr.Code == http.StatusForbidden && isScopeError(gerr):
			return fmt.Errorf("%w: %v", apperr.ErrInsufficientScope, err)
		}
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "insufficient authentication scopes"):
		return fmt.Errorf("%w: %v", apperr.ErrInsufficientScope, err)
	case strings.Contains(msg, "quota exceeded"):
		return fmt.Errorf("%w: %v", apperr.ErrQuotaExceeded, err)
	}
	return fmt.Errorf("gmail api: %w", err)
}

func hasReason(gerr *googleapi.Error, reasons map[string]bool) bool {
	for _, item := range gerr.Errors {
		if reasons[item.Reason] {
			return true
		}
	}
	return false
}

func isScopeError(gerr *googleapi.Error) bool {
	if strings.Contains(strings.ToLower(gerr.Message), "insufficient authentication scopes") {
		return true
	}
	for _, item := range gerr.Errors {
		if item.Reason == "insufficientPermissions" || item.Reason == "ACCESS_TOKEN_SCOPE_INSUFFICIENT" {
			return true
		}
	}
	return false
}
