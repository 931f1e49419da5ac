package gmail

import (
	"context"
	"errors"
	"fmt"

	"certhub-backend/pkg/apperr"

	"golang.org/x/oauth2"
	oauth2api "google.golang.org/api/oauth2/v2"
)

// UserInfo is the Google account profile returned after consent.
type UserInfo struct {
	Email   string
	Name    string
	Picture string
}

// AuthCodeURL builds the consent URL. Offline access plus a forced consent
// prompt makes Google return a refresh token on every login.
func (s *Service) AuthCodeURL(state string) string {
	return s.oauthConfig.AuthCodeURL(state,
		oauth2.AccessTypeOffline,
		oauth2.SetAuthURLParam("prompt", "consent"),
		oauth2.SetAuthURLParam("include_granted_scopes", "true"),
	)
}

// Exchange trades an authorization code for a token pair.
func (s *Service) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	tok, err := s.oauthConfig.Exchange(s.httpContext(ctx), code)
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) && re.ErrorCode != "" {
			return nil, fmt.Errorf("%w: %s", apperr.OAuthError(re.ErrorCode), re.ErrorDescription)
		}
		return nil, fmt.Errorf("%w: %v", apperr.ErrOAuth, err)
	}
	return tok, nil
}

// UserInfo fetches the account email and profile for token.
func (s *Service) UserInfo(ctx context.Context, token *oauth2.Token) (*UserInfo, error) {
	httpCtx := s.httpContext(ctx)
	svc, err := oauth2api.NewService(ctx, s.apiOptions(s.oauthConfig.Client(httpCtx, token))...)
	if err != nil {
		return nil, fmt.Errorf("unable to create userinfo service: %w", err)
	}
	info, err := svc.Userinfo.Get().Context(ctx).Do()
	if err != nil {
		return nil, classifyError(err)
	}
	if info.Email == "" {
		return nil, errors.New("google did not return an email address")
	}
	return &UserInfo{Email: info.Email, Name: info.Name, Picture: info.Picture}, nil
}

// RefreshToken exchanges a refresh token for a fresh access token. Google
// usually omits the refresh token in the response; callers keep the old one.
func (s *Service) RefreshToken(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	src := s.oauthConfig.TokenSource(s.httpContext(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, classifyRefreshError(err)
	}
	return tok, nil
}

// classifyRefreshError separates a revoked or expired grant, which needs a new
// login, from transient failures.
func classifyRefreshError(err error) error {
	if err == nil || errors.Is(err, apperr.ErrRefreshFailed) {
		return err
	}
	var re *oauth2.RetrieveError
	if errors.As(err, &re) && re.ErrorCode == "invalid_grant" {
		return fmt.Errorf("%w: %w", apperr.ErrRefreshFailed, apperr.ErrInvalidGrant)
	}
	return fmt.Errorf("%w: %v", apperr.ErrRefreshFailed, err)
}
