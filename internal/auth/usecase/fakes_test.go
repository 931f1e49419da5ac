package usecase

import (
	"context"
	"strings"
	"sync"

	authdomain "certhub-backend/internal/auth/domain"
	"certhub-backend/pkg/gmail"
	"certhub-backend/pkg/imap"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

type fakeOAuth struct {
	validateErr   error
	validateCalls int

	refreshTok   *oauth2.Token
	refreshErr   error
	refreshCalls int

	exchangeTok *oauth2.Token
	exchangeErr error
	info        *gmail.UserInfo
	profile     *gmail.Profile
}

func (f *fakeOAuth) ValidateToken(ctx context.Context, accessToken string) error {
	f.validateCalls++
	return f.validateErr
}

func (f *fakeOAuth) RefreshToken(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	f.refreshCalls++
	return f.refreshTok, f.refreshErr
}

func (f *fakeOAuth) AuthCodeURL(state string) string {
	return "https://accounts.example.com/auth?state=" + state
}

func (f *fakeOAuth) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	return f.exchangeTok, f.exchangeErr
}

func (f *fakeOAuth) UserInfo(ctx context.Context, token *oauth2.Token) (*gmail.UserInfo, error) {
	return f.info, nil
}

func (f *fakeOAuth) GetProfile(ctx context.Context, accessToken string) (*gmail.Profile, error) {
	return f.profile, nil
}

type fakeIMAP struct {
	err      error
	accounts []imap.Account
}

func (f *fakeIMAP) Verify(ctx context.Context, acct imap.Account) error {
	f.accounts = append(f.accounts, acct)
	return f.err
}

type memUserRepo struct {
	mu      sync.Mutex
	byEmail map[string]*authdomain.User
	updates []authdomain.Credential
}

func newMemUserRepo(users ...*authdomain.User) *memUserRepo {
	r := &memUserRepo{byEmail: make(map[string]*authdomain.User)}
	for _, u := range users {
		_, _ = r.Upsert(u)
	}
	return r
}

func (r *memUserRepo) Upsert(user *authdomain.User) (*authdomain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := strings.ToLower(user.Email)
	row := *user
	row.Email = key
	if existing, ok := r.byEmail[key]; ok {
		row.ID = existing.ID
		row.CreatedAt = existing.CreatedAt
	} else if row.ID == "" {
		row.ID = uuid.New().String()
	}
	r.byEmail[key] = &row
	out := row
	return &out, nil
}

func (r *memUserRepo) FindByEmail(email string) (*authdomain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.byEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok {
		return nil, nil
	}
	out := *u
	return &out, nil
}

func (r *memUserRepo) FindByID(id string) (*authdomain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.byEmail {
		if u.ID == id {
			out := *u
			return &out, nil
		}
	}
	return nil, nil
}

func (r *memUserRepo) UpdateTokens(userID string, cred authdomain.Credential) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.byEmail {
		if u.ID == userID {
			u.ApplyCredential(cred)
			r.updates = append(r.updates, cred)
		}
	}
	return nil
}

func (r *memUserRepo) ClearTokens(userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.byEmail {
		if u.ID == userID {
			u.ApplyCredential(authdomain.Credential{})
			u.IMAPPassword = ""
		}
	}
	return nil
}

func (r *memUserRepo) ListConnected() ([]*authdomain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*authdomain.User
	for _, u := range r.byEmail {
		if u.Connected() {
			cp := *u
			out = append(out, &cp)
		}
	}
	return out, nil
}

type memDeviceRepo struct {
	tokens map[string]string // token -> userID
}

func newMemDeviceRepo() *memDeviceRepo {
	return &memDeviceRepo{tokens: make(map[string]string)}
}

func (r *memDeviceRepo) SaveToken(userID, token, deviceInfo string) error {
	r.tokens[token] = userID
	return nil
}

func (r *memDeviceRepo) GetTokensByUserID(userID string) ([]authdomain.DeviceToken, error) {
	var out []authdomain.DeviceToken
	for tok, uid := range r.tokens {
		if uid == userID {
			out = append(out, authdomain.DeviceToken{UserID: uid, Token: tok})
		}
	}
	return out, nil
}

func (r *memDeviceRepo) DeleteTokens(tokens ...string) error {
	for _, t := range tokens {
		delete(r.tokens, t)
	}
	return nil
}

func (r *memDeviceRepo) DeleteUserToken(userID, token string) error {
	if r.tokens[token] == userID {
		delete(r.tokens, token)
	}
	return nil
}

func (r *memDeviceRepo) DeleteTokensByUserID(userID string) error {
	for tok, uid := range r.tokens {
		if uid == userID {
			delete(r.tokens, tok)
		}
	}
	return nil
}
