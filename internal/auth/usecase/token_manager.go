package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	authdomain "certhub-backend/internal/auth/domain"
	authdto "certhub-backend/internal/auth/dto"
	"certhub-backend/pkg/apperr"
	"certhub-backend/pkg/gmail"

	"golang.org/x/oauth2"
)

// ExpiryBuffer is how long before its expiry an access token is already
// treated as expired.
const ExpiryBuffer = 5 * time.Minute

// TokenProvider is the OAuth side of the mailbox client.
type TokenProvider interface {
	ValidateToken(ctx context.Context, accessToken string) error
	RefreshToken(ctx context.Context, refreshToken string) (*oauth2.Token, error)
}

// IsExpired reports whether expiry falls within ExpiryBuffer of now.
func IsExpired(expiry, now time.Time) bool {
	return expiry.Sub(now) <= ExpiryBuffer
}

type TokenManager struct {
	provider TokenProvider
	now      func() time.Time
}

func NewTokenManager(provider TokenProvider) *TokenManager {
	return &TokenManager{provider: provider, now: time.Now}
}

// EnsureValid returns a usable credential. A known expiry inside the buffer
// goes straight to refresh; otherwise the access token is probed and only a
// rejected token is refreshed. The bool reports whether a refresh happened, in
// which case the caller must persist the new pair.
func (m *TokenManager) EnsureValid(ctx context.Context, cred authdomain.Credential) (authdomain.Credential, bool, error) {
	if cred.Empty() {
		return cred, false, apperr.ErrAuthenticationRequired
	}

	if cred.AccessToken == "" || (!cred.Expiry.IsZero() && IsExpired(cred.Expiry, m.now())) {
		return m.refreshOrFail(ctx, cred, "access token expired")
	}

	err := m.provider.ValidateToken(ctx, cred.AccessToken)
	switch {
	case err == nil:
		return cred, false, nil
	case errors.Is(err, apperr.ErrAuthExpired):
		return m.refreshOrFail(ctx, cred, "access token rejected")
	default:
		return cred, false, err
	}
}

func (m *TokenManager) refreshOrFail(ctx context.Context, cred authdomain.Credential, reason string) (authdomain.Credential, bool, error) {
	if !cred.HasRefreshToken() {
		log.Printf("[Token] %s and no refresh token stored", reason)
		return cred, false, apperr.ErrAuthenticationRequired
	}
	log.Printf("[Token] %s, refreshing", reason)
	next, err := m.Refresh(ctx, cred.RefreshToken)
	if err != nil {
		return cred, false, err
	}
	return next, true, nil
}

// Refresh exchanges refreshToken for a new pair. When the provider does not
// rotate the refresh token the old one is kept.
func (m *TokenManager) Refresh(ctx context.Context, refreshToken string) (authdomain.Credential, error) {
	if refreshToken == "" {
		return authdomain.Credential{}, apperr.ErrNoRefreshToken
	}
	tok, err := m.provider.RefreshToken(ctx, refreshToken)
	if err != nil {
		log.Printf("[Token] Refresh failed: %v", err)
		return authdomain.Credential{}, err
	}
	if tok == nil || tok.AccessToken == "" {
		return authdomain.Credential{}, fmt.Errorf("%w: provider returned no access token", apperr.ErrRefreshFailed)
	}

	next := authdomain.Credential{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Expiry:       tok.Expiry,
	}
	if next.RefreshToken == "" {
		next.RefreshToken = refreshToken
	}
	return next, nil
}

// FormatToken renders cred for API clients.
func FormatToken(cred authdomain.Credential, now time.Time) authdto.TokenInfo {
	var expiresIn int64
	if !cred.Expiry.IsZero() {
		if d := cred.Expiry.Sub(now); d > 0 {
			expiresIn = int64(d / time.Second)
		}
	}
	return authdto.TokenInfo{
		AccessToken: cred.AccessToken,
		ExpiresIn:   expiresIn,
		TokenType:   "Bearer",
		Scope:       strings.Join(gmail.Scopes, " "),
	}
}
