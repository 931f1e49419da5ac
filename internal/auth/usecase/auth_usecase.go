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
	"certhub-backend/internal/auth/repository"
	"certhub-backend/pkg/apperr"
	"certhub-backend/pkg/config"
	"certhub-backend/pkg/imap"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const stateSubject = "oauth_state"

// authUsecase implements AuthUsecase interface
type authUsecase struct {
	userRepo   repository.UserRepository
	deviceRepo repository.DeviceTokenRepository
	oauth      OAuthProvider
	tokens     *TokenManager
	imap       IMAPVerifier
	config     *config.Config
	now        func() time.Time
}

// NewAuthUsecase creates a new instance of authUsecase
func NewAuthUsecase(
	userRepo repository.UserRepository,
	deviceRepo repository.DeviceTokenRepository,
	oauth OAuthProvider,
	imapVerifier IMAPVerifier,
	cfg *config.Config,
) AuthUsecase {
	return &authUsecase{
		userRepo:   userRepo,
		deviceRepo: deviceRepo,
		oauth:      oauth,
		tokens:     NewTokenManager(oauth),
		imap:       imapVerifier,
		config:     cfg,
		now:        time.Now,
	}
}

func (u *authUsecase) LoginURL() (string, error) {
	state, err := u.newState()
	if err != nil {
		return "", err
	}
	return u.oauth.AuthCodeURL(state), nil
}

// newState signs a short-lived random state so the callback can be checked
// without server-side storage.
func (u *authUsecase) newState() (string, error) {
	now := u.now()
	claims := jwt.RegisteredClaims{
		ID:        uuid.New().String(),
		Subject:   stateSubject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(u.config.OAuthStateTTL)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(u.config.OAuthStateSecret))
}

func (u *authUsecase) verifyState(state string) error {
	if state == "" {
		return fmt.Errorf("%w: missing state", apperr.ErrInvalidState)
	}
	token, err := jwt.ParseWithClaims(state, &jwt.RegisteredClaims{},
		func(token *jwt.Token) (interface{}, error) {
			return []byte(u.config.OAuthStateSecret), nil
		},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithSubject(stateSubject),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(u.now),
	)
	if err != nil {
		return fmt.Errorf("%w: %v", apperr.ErrInvalidState, err)
	}
	if !token.Valid {
		return apperr.ErrInvalidState
	}
	return nil
}

func (u *authUsecase) Callback(ctx context.Context, code, state string) (*authdomain.User, error) {
	if err := u.verifyState(state); err != nil {
		return nil, err
	}
	if code == "" {
		return nil, fmt.Errorf("%w: missing authorization code", apperr.ErrInvalidRequest)
	}

	tok, err := u.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, err
	}
	info, err := u.oauth.UserInfo(ctx, tok)
	if err != nil {
		return nil, err
	}
	if info.Email == "" {
		return nil, fmt.Errorf("%w: google account has no email", apperr.ErrOAuth)
	}

	user := &authdomain.User{
		Email:     info.Email,
		Name:      info.Name,
		AvatarURL: info.Picture,
		Provider:  authdomain.ProviderGoogle,
	}
	cred := authdomain.Credential{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		Expiry:       tok.Expiry,
	}
	// Google omits the refresh token on repeat consent; keep the stored one.
	if !cred.HasRefreshToken() {
		existing, err := u.userRepo.FindByEmail(info.Email)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			cred.RefreshToken = existing.RefreshToken
		}
	}
	user.ApplyCredential(cred)

	saved, err := u.userRepo.Upsert(user)
	if err != nil {
		return nil, fmt.Errorf("failed to store user: %w", err)
	}
	log.Printf("[Auth] %s signed in with Google", saved.Email)
	return saved, nil
}

func (u *authUsecase) findUser(email string) (*authdomain.User, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return nil, apperr.ErrEmailRequired
	}
	user, err := u.userRepo.FindByEmail(email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, apperr.ErrUserNotFound
	}
	return user, nil
}

func (u *authUsecase) EnsureAuthenticated(ctx context.Context, email string) (*authdomain.User, authdomain.Credential, bool, error) {
	user, err := u.findUser(email)
	if err != nil {
		return nil, authdomain.Credential{}, false, err
	}

	if user.IsIMAP() {
		if user.IMAPPassword == "" {
			return user, authdomain.Credential{}, false, apperr.ErrAuthenticationRequired
		}
		return user, authdomain.Credential{}, false, nil
	}

	cred, refreshed, err := u.tokens.EnsureValid(ctx, user.Credential())
	if err != nil {
		return user, authdomain.Credential{}, false, err
	}
	if refreshed {
		if err := u.PersistCredential(user.ID, cred); err != nil {
			return user, cred, true, err
		}
		user.ApplyCredential(cred)
	}
	return user, cred, refreshed, nil
}

func (u *authUsecase) PersistCredential(userID string, cred authdomain.Credential) error {
	if err := u.userRepo.UpdateTokens(userID, cred); err != nil {
		return fmt.Errorf("failed to persist refreshed tokens: %w", err)
	}
	log.Printf("[Token] Stored refreshed credential for user %s", userID)
	return nil
}

func (u *authUsecase) Status(ctx context.Context, email string) (*authdto.StatusResponse, error) {
	user, _, refreshed, err := u.EnsureAuthenticated(ctx, email)
	if err != nil {
		return nil, err
	}
	return &authdto.StatusResponse{
		Success:       true,
		Authenticated: true,
		TokensValid:   true,
		Refreshed:     refreshed,
		User:          user,
	}, nil
}

func (u *authUsecase) Logout(email string) error {
	user, err := u.findUser(email)
	if err != nil {
		return err
	}
	if err := u.userRepo.ClearTokens(user.ID); err != nil {
		return err
	}
	if err := u.deviceRepo.DeleteTokensByUserID(user.ID); err != nil {
		log.Printf("[Auth] Failed to drop device tokens for %s: %v", user.Email, err)
	}
	log.Printf("[Auth] %s logged out", user.Email)
	return nil
}

func (u *authUsecase) Refresh(ctx context.Context, email string) (*authdto.TokenInfo, error) {
	user, err := u.findUser(email)
	if err != nil {
		return nil, err
	}
	if !user.Credential().HasRefreshToken() {
		return nil, apperr.ErrNoRefreshToken
	}

	cred, err := u.tokens.Refresh(ctx, user.RefreshToken)
	if err != nil {
		if errors.Is(err, apperr.ErrInvalidGrant) {
			return nil, fmt.Errorf("%w: %w", apperr.ErrInvalidRefreshToken, err)
		}
		return nil, err
	}
	if err := u.PersistCredential(user.ID, cred); err != nil {
		return nil, err
	}

	info := FormatToken(cred, u.now())
	return &info, nil
}

func (u *authUsecase) TestConnection(ctx context.Context, email string) (*authdto.ConnectionResponse, error) {
	user, cred, _, err := u.EnsureAuthenticated(ctx, email)
	if err != nil {
		return nil, err
	}

	if user.IsIMAP() {
		if err := u.imap.Verify(ctx, IMAPAccount(user)); err != nil {
			return nil, fmt.Errorf("%w: %v", apperr.ErrAuthenticationRequired, err)
		}
		return &authdto.ConnectionResponse{
			Success:      true,
			Provider:     authdomain.ProviderIMAP,
			EmailAddress: user.Email,
			Message:      "IMAP connection is working",
		}, nil
	}

	profile, err := u.oauth.GetProfile(ctx, cred.AccessToken)
	if err != nil {
		return nil, err
	}
	return &authdto.ConnectionResponse{
		Success:       true,
		Provider:      authdomain.ProviderGoogle,
		EmailAddress:  profile.EmailAddress,
		MessagesTotal: profile.MessagesTotal,
		Message:       "Gmail connection is working",
	}, nil
}

func (u *authUsecase) ConnectIMAP(ctx context.Context, req *authdto.IMAPConnectRequest) (*authdomain.User, error) {
	user := &authdomain.User{
		Email:        req.Email,
		Name:         req.Name,
		Provider:     authdomain.ProviderIMAP,
		IMAPServer:   req.Server,
		IMAPPort:     req.Port,
		IMAPPassword: req.Password,
	}
	if user.IMAPPort == 0 {
		user.IMAPPort = 993
	}

	if err := u.imap.Verify(ctx, IMAPAccount(user)); err != nil {
		log.Printf("[Auth] IMAP login failed for %s: %v", req.Email, err)
		return nil, fmt.Errorf("%w: %v", apperr.ErrAuthenticationRequired, err)
	}

	saved, err := u.userRepo.Upsert(user)
	if err != nil {
		return nil, fmt.Errorf("failed to store user: %w", err)
	}
	log.Printf("[Auth] %s connected over IMAP (%s)", saved.Email, saved.IMAPServer)
	return saved, nil
}

// IMAPAccount is the mailbox login stored for an IMAP user.
func IMAPAccount(user *authdomain.User) imap.Account {
	return imap.Account{
		Server:   user.IMAPServer,
		Port:     user.IMAPPort,
		Username: user.Email,
		Password: user.IMAPPassword,
	}
}

func (u *authUsecase) RegisterDevice(email, token, deviceInfo string) error {
	user, err := u.findUser(email)
	if err != nil {
		return err
	}
	return u.deviceRepo.SaveToken(user.ID, token, deviceInfo)
}

func (u *authUsecase) UnregisterDevice(email, token string) error {
	user, err := u.findUser(email)
	if err != nil {
		return err
	}
	return u.deviceRepo.DeleteUserToken(user.ID, token)
}
