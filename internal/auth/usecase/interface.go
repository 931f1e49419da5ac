package usecase

import (
	"context"

	authdomain "certhub-backend/internal/auth/domain"
	authdto "certhub-backend/internal/auth/dto"
	"certhub-backend/pkg/gmail"
	"certhub-backend/pkg/imap"

	"golang.org/x/oauth2"
)

// AuthUsecase covers the Google OAuth login flow, IMAP account connection and
// the stored credential lifecycle.
type AuthUsecase interface {
	LoginURL() (string, error)
	Callback(ctx context.Context, code, state string) (*authdomain.User, error)

	// EnsureAuthenticated resolves the user and returns a usable credential,
	// persisting it first when it had to be refreshed. IMAP users get an
	// empty credential.
	EnsureAuthenticated(ctx context.Context, email string) (*authdomain.User, authdomain.Credential, bool, error)
	// PersistCredential stores a pair refreshed outside EnsureAuthenticated.
	PersistCredential(userID string, cred authdomain.Credential) error

	Status(ctx context.Context, email string) (*authdto.StatusResponse, error)
	Logout(email string) error
	Refresh(ctx context.Context, email string) (*authdto.TokenInfo, error)
	TestConnection(ctx context.Context, email string) (*authdto.ConnectionResponse, error)

	ConnectIMAP(ctx context.Context, req *authdto.IMAPConnectRequest) (*authdomain.User, error)

	RegisterDevice(email, token, deviceInfo string) error
	UnregisterDevice(email, token string) error
}

// OAuthProvider is the Google side of login and token upkeep.
type OAuthProvider interface {
	TokenProvider
	AuthCodeURL(state string) string
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
	UserInfo(ctx context.Context, token *oauth2.Token) (*gmail.UserInfo, error)
	GetProfile(ctx context.Context, accessToken string) (*gmail.Profile, error)
}

// IMAPVerifier checks app-password credentials.
type IMAPVerifier interface {
	Verify(ctx context.Context, acct imap.Account) error
}
