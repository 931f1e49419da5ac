package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"testing"
	"time"

	authdomain "certhub-backend/internal/auth/domain"
	authdto "certhub-backend/internal/auth/dto"
	"certhub-backend/pkg/apperr"
	"certhub-backend/pkg/config"
	"certhub-backend/pkg/gmail"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

type authFixture struct {
	uc      *authUsecase
	users   *memUserRepo
	devices *memDeviceRepo
	oauth   *fakeOAuth
	imap    *fakeIMAP
}

func newAuthFixture(t *testing.T, users ...*authdomain.User) *authFixture {
	t.Helper()
	f := &authFixture{
		users:   newMemUserRepo(users...),
		devices: newMemDeviceRepo(),
		oauth:   &fakeOAuth{},
		imap:    &fakeIMAP{},
	}
	cfg := &config.Config{OAuthStateSecret: "state-secret", OAuthStateTTL: 10 * time.Minute}
	f.uc = NewAuthUsecase(f.users, f.devices, f.oauth, f.imap, cfg).(*authUsecase)
	f.uc.now = func() time.Time { return clock }
	f.uc.tokens.now = func() time.Time { return clock }
	return f
}

func stateFrom(t *testing.T, authURL string) string {
	t.Helper()
	u, err := url.Parse(authURL)
	require.NoError(t, err)
	return u.Query().Get("state")
}

func TestCallback_CreatesUserWithTokens(t *testing.T) {
	f := newAuthFixture(t)
	f.oauth.exchangeTok = &oauth2.Token{AccessToken: "a1", RefreshToken: "r1", Expiry: clock.Add(time.Hour)}
	f.oauth.info = &gmail.UserInfo{Email: "Learner@Example.com", Name: "Learner", Picture: "https://pic"}

	loginURL, err := f.uc.LoginURL()
	require.NoError(t, err)

	user, err := f.uc.Callback(context.Background(), "code", stateFrom(t, loginURL))
	require.NoError(t, err)
	assert.Equal(t, "learner@example.com", user.Email)
	assert.Equal(t, authdomain.ProviderGoogle, user.Provider)

	stored, _ := f.users.FindByEmail("learner@example.com")
	require.NotNil(t, stored)
	assert.Equal(t, "a1", stored.AccessToken)
	assert.Equal(t, "r1", stored.RefreshToken)
}

func TestCallback_KeepsStoredRefreshToken(t *testing.T) {
	f := newAuthFixture(t, &authdomain.User{Email: "learner@example.com", RefreshToken: "r-old", Provider: authdomain.ProviderGoogle})
	f.oauth.exchangeTok = &oauth2.Token{AccessToken: "a2"}
	f.oauth.info = &gmail.UserInfo{Email: "learner@example.com"}

	state, err := f.uc.newState()
	require.NoError(t, err)
	_, err = f.uc.Callback(context.Background(), "code", state)
	require.NoError(t, err)

	stored, _ := f.users.FindByEmail("learner@example.com")
	assert.Equal(t, "a2", stored.AccessToken)
	assert.Equal(t, "r-old", stored.RefreshToken)
}

func TestCallback_RejectsBadState(t *testing.T) {
	f := newAuthFixture(t)

	_, err := f.uc.Callback(context.Background(), "code", "")
	assert.ErrorIs(t, err, apperr.ErrInvalidState)

	_, err = f.uc.Callback(context.Background(), "code", "not-a-jwt")
	assert.ErrorIs(t, err, apperr.ErrInvalidState)

	state, err := f.uc.newState()
	require.NoError(t, err)
	f.uc.now = func() time.Time { return clock.Add(11 * time.Minute) }
	_, err = f.uc.Callback(context.Background(), "code", state)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)
}

func TestCallback_StateSignedWithOtherSecret(t *testing.T) {
	other := newAuthFixture(t)
	other.uc.config = &config.Config{OAuthStateSecret: "someone-else", OAuthStateTTL: time.Minute}
	state, err := other.uc.newState()
	require.NoError(t, err)

	_, err = newAuthFixture(t).uc.Callback(context.Background(), "code", state)
	assert.ErrorIs(t, err, apperr.ErrInvalidState)
}

func TestCallback_ProviderError(t *testing.T) {
	f := newAuthFixture(t)
	f.oauth.exchangeErr = fmt.Errorf("%w: code already used", apperr.ErrInvalidGrant)

	state, _ := f.uc.newState()
	_, err := f.uc.Callback(context.Background(), "code", state)
	assert.ErrorIs(t, err, apperr.ErrInvalidGrant)
}

func TestEnsureAuthenticated_RefreshesAndPersists(t *testing.T) {
	expired := clock.Add(-time.Hour)
	f := newAuthFixture(t, &authdomain.User{
		Email:        "learner@example.com",
		Provider:     authdomain.ProviderGoogle,
		AccessToken:  "a-old",
		RefreshToken: "r1",
		TokenExpiry:  &expired,
	})
	f.oauth.refreshTok = &oauth2.Token{AccessToken: "a-new", Expiry: clock.Add(time.Hour)}

	user, cred, refreshed, err := f.uc.EnsureAuthenticated(context.Background(), "learner@example.com")

	require.NoError(t, err)
	assert.True(t, refreshed)
	assert.Equal(t, "a-new", cred.AccessToken)
	assert.Equal(t, "a-new", user.AccessToken)
	require.Len(t, f.users.updates, 1)
	assert.Equal(t, "a-new", f.users.updates[0].AccessToken)
	assert.Equal(t, "r1", f.users.updates[0].RefreshToken)
}

func TestEnsureAuthenticated_UserErrors(t *testing.T) {
	f := newAuthFixture(t)

	_, _, _, err := f.uc.EnsureAuthenticated(context.Background(), "  ")
	assert.ErrorIs(t, err, apperr.ErrEmailRequired)

	_, _, _, err = f.uc.EnsureAuthenticated(context.Background(), "ghost@example.com")
	assert.ErrorIs(t, err, apperr.ErrUserNotFound)
}

func TestEnsureAuthenticated_IMAPUser(t *testing.T) {
	f := newAuthFixture(t,
		&authdomain.User{Email: "imap@example.com", Provider: authdomain.ProviderIMAP, IMAPPassword: "pw"},
		&authdomain.User{Email: "gone@example.com", Provider: authdomain.ProviderIMAP},
	)

	user, cred, _, err := f.uc.EnsureAuthenticated(context.Background(), "imap@example.com")
	require.NoError(t, err)
	assert.True(t, user.IsIMAP())
	assert.True(t, cred.Empty())
	assert.Equal(t, 0, f.oauth.validateCalls)

	_, _, _, err = f.uc.EnsureAuthenticated(context.Background(), "gone@example.com")
	assert.ErrorIs(t, err, apperr.ErrAuthenticationRequired)
}

func TestStatus(t *testing.T) {
	future := clock.Add(time.Hour)
	f := newAuthFixture(t, &authdomain.User{
		Email: "learner@example.com", AccessToken: "a1", RefreshToken: "r1", TokenExpiry: &future,
	})

	resp, err := f.uc.Status(context.Background(), "learner@example.com")
	require.NoError(t, err)
	assert.True(t, resp.Authenticated)
	assert.True(t, resp.TokensValid)
	assert.False(t, resp.Refreshed)
}

func TestLogout_ClearsTokensKeepsUser(t *testing.T) {
	f := newAuthFixture(t, &authdomain.User{Email: "learner@example.com", AccessToken: "a1", RefreshToken: "r1"})
	stored, _ := f.users.FindByEmail("learner@example.com")
	require.NoError(t, f.devices.SaveToken(stored.ID, "fcm-1", "pixel"))

	require.NoError(t, f.uc.Logout("learner@example.com"))

	after, _ := f.users.FindByEmail("learner@example.com")
	require.NotNil(t, after)
	assert.True(t, after.Credential().Empty())
	assert.Empty(t, f.devices.tokens)
}

func TestRefresh(t *testing.T) {
	f := newAuthFixture(t,
		&authdomain.User{Email: "learner@example.com", AccessToken: "a1", RefreshToken: "r1"},
		&authdomain.User{Email: "norefresh@example.com", AccessToken: "a1"},
	)

	f.oauth.refreshTok = &oauth2.Token{AccessToken: "a2", Expiry: clock.Add(30 * time.Minute)}
	info, err := f.uc.Refresh(context.Background(), "learner@example.com")
	require.NoError(t, err)
	assert.Equal(t, "a2", info.AccessToken)
	assert.Equal(t, int64(1800), info.ExpiresIn)

	_, err = f.uc.Refresh(context.Background(), "norefresh@example.com")
	assert.ErrorIs(t, err, apperr.ErrNoRefreshToken)

	f.oauth.refreshTok = nil
	f.oauth.refreshErr = fmt.Errorf("%w: %w", apperr.ErrRefreshFailed, apperr.ErrInvalidGrant)
	_, err = f.uc.Refresh(context.Background(), "learner@example.com")
	assert.ErrorIs(t, err, apperr.ErrInvalidRefreshToken)
	assert.Equal(t, "INVALID_REFRESH_TOKEN", apperr.Classify(err, "REFRESH_ERROR").Code)
}

func TestTestConnection_Gmail(t *testing.T) {
	future := clock.Add(time.Hour)
	f := newAuthFixture(t, &authdomain.User{
		Email: "learner@example.com", AccessToken: "a1", RefreshToken: "r1", TokenExpiry: &future,
	})
	f.oauth.profile = &gmail.Profile{EmailAddress: "learner@example.com", MessagesTotal: 42}

	resp, err := f.uc.TestConnection(context.Background(), "learner@example.com")
	require.NoError(t, err)
	assert.Equal(t, int64(42), resp.MessagesTotal)
	assert.Equal(t, authdomain.ProviderGoogle, resp.Provider)
}

func TestConnectIMAP(t *testing.T) {
	f := newAuthFixture(t)
	req := &authdto.IMAPConnectRequest{Email: "imap@example.com", Server: "imap.example.com", Password: "app-pw"}

	user, err := f.uc.ConnectIMAP(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, authdomain.ProviderIMAP, user.Provider)
	assert.Equal(t, 993, user.IMAPPort)
	require.Len(t, f.imap.accounts, 1)
	assert.Equal(t, "imap@example.com", f.imap.accounts[0].Username)

	f.imap.err = errors.New("LOGIN failed")
	_, err = f.uc.ConnectIMAP(context.Background(), &authdto.IMAPConnectRequest{Email: "bad@example.com", Server: "s", Password: "x"})
	assert.ErrorIs(t, err, apperr.ErrAuthenticationRequired)
	stored, _ := f.users.FindByEmail("bad@example.com")
	assert.Nil(t, stored)
}

func TestRegisterDevice(t *testing.T) {
	f := newAuthFixture(t, &authdomain.User{Email: "learner@example.com"})

	require.NoError(t, f.uc.RegisterDevice("learner@example.com", "fcm-1", "pixel"))
	assert.Len(t, f.devices.tokens, 1)

	require.NoError(t, f.uc.UnregisterDevice("learner@example.com", "fcm-1"))
	assert.Empty(t, f.devices.tokens)

	assert.ErrorIs(t, f.uc.RegisterDevice("ghost@example.com", "fcm-2", ""), apperr.ErrUserNotFound)
}

func TestUnregisterDevice_OnlyOwnTokens(t *testing.T) {
	f := newAuthFixture(t,
		&authdomain.User{ID: "u-owner", Email: "owner@example.com"},
		&authdomain.User{ID: "u-other", Email: "other@example.com"},
	)
	require.NoError(t, f.uc.RegisterDevice("owner@example.com", "fcm-owner", "pixel"))

	require.NoError(t, f.uc.UnregisterDevice("other@example.com", "fcm-owner"))
	assert.Equal(t, "u-owner", f.devices.tokens["fcm-owner"], "another account cannot drop the token")

	require.NoError(t, f.uc.UnregisterDevice("owner@example.com", "fcm-owner"))
	assert.Empty(t, f.devices.tokens)
}
