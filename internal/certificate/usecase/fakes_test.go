package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	authdomain "certhub-backend/internal/auth/domain"
	authrepo "certhub-backend/internal/auth/repository"
	authusecase "certhub-backend/internal/auth/usecase"
	certdomain "certhub-backend/internal/certificate/domain"
	certrepo "certhub-backend/internal/certificate/repository"
	"certhub-backend/pkg/config"
	"certhub-backend/pkg/extractor"
	"certhub-backend/pkg/gmail"

	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(&authdomain.User{}, &authdomain.DeviceToken{}, &certdomain.Certificate{}))
	return db
}

// stubOAuth stands in for Google. Only validation and refresh matter to sync.
type stubOAuth struct {
	mu            sync.Mutex
	validateErr   error
	refreshTok    *oauth2.Token
	refreshErr    error
	validateCalls int
	refreshCalls  int
}

func (s *stubOAuth) ValidateToken(ctx context.Context, accessToken string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.validateCalls++
	return s.validateErr
}

func (s *stubOAuth) RefreshToken(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshCalls++
	return s.refreshTok, s.refreshErr
}

func (s *stubOAuth) AuthCodeURL(state string) string { return "https://auth.example.com?state=" + state }

func (s *stubOAuth) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	return nil, errors.New("not used")
}

func (s *stubOAuth) UserInfo(ctx context.Context, token *oauth2.Token) (*gmail.UserInfo, error) {
	return nil, errors.New("not used")
}

func (s *stubOAuth) GetProfile(ctx context.Context, accessToken string) (*gmail.Profile, error) {
	return &gmail.Profile{}, nil
}

// fakeMailbox is both the opener and the session.
type fakeMailbox struct {
	mu        sync.Mutex
	ids       []string
	messages  map[string]*extractor.Message
	fetchErr  map[string]error
	searchErr error

	// block, when set, holds SearchCertificateEmails until closed.
	block   chan struct{}
	entered chan struct{}

	opened      int
	closed      int
	fetched     []string
	openedCreds []authdomain.Credential
}

func newFakeMailbox() *fakeMailbox {
	return &fakeMailbox{
		messages: make(map[string]*extractor.Message),
		fetchErr: make(map[string]error),
	}
}

func (m *fakeMailbox) add(id string, msg extractor.Message) {
	m.ids = append(m.ids, id)
	cp := msg
	m.messages[id] = &cp
}

func (m *fakeMailbox) Open(ctx context.Context, user *authdomain.User, cred authdomain.Credential) (MailboxSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.opened++
	m.openedCreds = append(m.openedCreds, cred)
	return m, nil
}

func (m *fakeMailbox) SearchCertificateEmails(ctx context.Context) ([]string, error) {
	if m.block != nil {
		close(m.entered)
		<-m.block
	}
	return m.ids, m.searchErr
}

func (m *fakeMailbox) FetchMessage(ctx context.Context, id string) (*extractor.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.fetched = append(m.fetched, id)
	if err := m.fetchErr[id]; err != nil {
		return nil, err
	}
	return m.messages[id], nil
}

func (m *fakeMailbox) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed++
	return nil
}

type fakeEnricher struct {
	skills    string
	skillsErr error
	name      string
	nameErr   error
}

func (f *fakeEnricher) SummarizeSkills(ctx context.Context, body, subject string) (string, error) {
	return f.skills, f.skillsErr
}

func (f *fakeEnricher) ExtractCourseName(ctx context.Context, body, subject string) (string, error) {
	return f.name, f.nameErr
}

type fakeIndex struct {
	failOnce bool
	upserted []string
	hits     []string
	dists    []float64
	queries  []string
}

func (f *fakeIndex) UpsertCertificate(ctx context.Context, cert *certdomain.Certificate) error {
	if f.failOnce {
		f.failOnce = false
		return errors.New("chroma unavailable")
	}
	f.upserted = append(f.upserted, cert.MessageID)
	return nil
}

func (f *fakeIndex) Search(ctx context.Context, userID, query string, limit int) ([]string, []float64, error) {
	f.queries = append(f.queries, userID+":"+query)
	return f.hits, f.dists, nil
}

type fakeNotifier struct {
	calls [][]*certdomain.Certificate
	err   error
}

func (f *fakeNotifier) NotifyNewCertificates(ctx context.Context, user *authdomain.User, certs []*certdomain.Certificate) error {
	f.calls = append(f.calls, certs)
	return f.err
}

// racyRepo hides existing rows from the pre-check so the insert-time
// duplicate path runs.
type racyRepo struct {
	certrepo.CertificateRepository
}

func (r racyRepo) ExistsByMessageID(string) (bool, error) { return false, nil }

type syncFixture struct {
	db       *gorm.DB
	users    authrepo.UserRepository
	certs    certrepo.CertificateRepository
	oauth    *stubOAuth
	mailbox  *fakeMailbox
	auth     authusecase.AuthUsecase
	sync     *syncUsecase
	learner  *authdomain.User
	fixedNow time.Time
}

func newSyncFixture(t *testing.T, maxPerRun int) *syncFixture {
	t.Helper()
	db := newTestDB(t)
	f := &syncFixture{
		db:       db,
		users:    authrepo.NewUserRepository(db, nil),
		certs:    certrepo.NewCertificateRepository(db),
		oauth:    &stubOAuth{},
		mailbox:  newFakeMailbox(),
		fixedNow: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC),
	}
	cfg := &config.Config{OAuthStateSecret: "test", OAuthStateTTL: time.Minute}
	f.auth = authusecase.NewAuthUsecase(f.users, authrepo.NewDeviceTokenRepository(db), f.oauth, nil, cfg)
	f.sync = NewSyncUsecase(f.auth, f.certs, f.mailbox, maxPerRun).(*syncUsecase)
	f.sync.now = func() time.Time { return f.fixedNow }

	expiry := time.Now().Add(time.Hour)
	learner, err := f.users.Upsert(&authdomain.User{
		Email:        "learner@example.com",
		Provider:     authdomain.ProviderGoogle,
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
		TokenExpiry:  &expiry,
	})
	require.NoError(t, err)
	f.learner = learner
	return f
}

func courseraMail(course string) extractor.Message {
	return extractor.Message{
		Subject: "Congratulations! Your certificate for " + course,
		From:    "Coursera <no-reply@coursera.org>",
		Date:    "Mon, 13 May 2024 09:30:00 +0000",
		Body:    "You completed the course: " + course + ". Skills: python and pandas. View it at https://coursera.org/verify/certificate/ABC123",
	}
}
