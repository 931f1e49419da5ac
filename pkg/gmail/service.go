package gmail

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"golang.org/x/time/rate"
	"google.golang.org/api/gmail/v1"
	oauth2api "google.golang.org/api/oauth2/v2"
	"google.golang.org/api/option"
)

const (
	user               = "me"
	defaultSearchLimit = 50
)

// Scopes requested at consent time: read-only mailbox plus basic profile.
var Scopes = []string{
	gmail.GmailReadonlyScope,
	oauth2api.UserinfoEmailScope,
	oauth2api.UserinfoProfileScope,
}

// TokenUpdateFunc is called when a session refreshes its access token so the
// new pair can be persisted.
type TokenUpdateFunc func(*oauth2.Token) error

// Service owns the OAuth client configuration and the shared request limiter.
// Per-user work happens on a Session.
type Service struct {
	oauthConfig *oauth2.Config
	limiter     *rate.Limiter
	searchLimit int64
	endpoint    string
	httpClient  *http.Client
}

type Option func(*Service)

// WithEndpoint points the Gmail and userinfo APIs at another base URL.
func WithEndpoint(url string) Option {
	return func(s *Service) { s.endpoint = url }
}

// WithOAuthEndpoint overrides Google's authorization and token endpoints.
func WithOAuthEndpoint(ep oauth2.Endpoint) Option {
	return func(s *Service) { s.oauthConfig.Endpoint = ep }
}

// WithHTTPClient sets the base transport used for both OAuth and API calls.
func WithHTTPClient(c *http.Client) Option {
	return func(s *Service) { s.httpClient = c }
}

// WithRateLimit caps outgoing Gmail requests across all users.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(s *Service) {
		if perSecond <= 0 {
			s.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

// WithSearchLimit sets the per-query result cap.
func WithSearchLimit(n int64) Option {
	return func(s *Service) {
		if n > 0 {
			s.searchLimit = n
		}
	}
}

func NewService(clientID, clientSecret, redirectURI string, opts ...Option) *Service {
	s := &Service{
		oauthConfig: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURI,
			Scopes:       Scopes,
			Endpoint:     google.Endpoint,
		},
		limiter:     rate.NewLimiter(rate.Inf, 0),
		searchLimit: defaultSearchLimit,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// httpContext carries the configured base client into oauth2 calls.
func (s *Service) httpContext(ctx context.Context) context.Context {
	if s.httpClient == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, s.httpClient)
}

func (s *Service) apiOptions(client *http.Client) []option.ClientOption {
	opts := []option.ClientOption{option.WithHTTPClient(client)}
	if s.endpoint != "" {
		opts = append(opts, option.WithEndpoint(s.endpoint))
	}
	return opts
}

func (s *Service) wait(ctx context.Context) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("gmail rate limiter: %w", err)
	}
	return nil
}

// notifyTokenSource reports refreshed tokens to a callback.
type notifyTokenSource struct {
	src      oauth2.TokenSource
	current  string
	callback TokenUpdateFunc
}

func (n *notifyTokenSource) Token() (*oauth2.Token, error) {
	t, err := n.src.Token()
	if err != nil {
		return nil, classifyRefreshError(err)
	}
	if n.callback != nil && t.AccessToken != n.current {
		n.current = t.AccessToken
		if err := n.callback(t); err != nil {
			log.Printf("[Gmail] Failed to persist refreshed token: %v", err)
		}
	}
	return t, nil
}

// Session is a Gmail client bound to one user's credential.
type Session struct {
	svc *Service
	srv *gmail.Service
}

// NewSession builds a Gmail client for token. If the access token lapses while
// the session is in use and a refresh token is present, oauth2 renews it and
// onRefresh is told about the new pair.
func (s *Service) NewSession(ctx context.Context, token *oauth2.Token, onRefresh TokenUpdateFunc) (*Session, error) {
	httpCtx := s.httpContext(ctx)

	var src oauth2.TokenSource
	if token.RefreshToken != "" {
		src = &notifyTokenSource{
			src:      s.oauthConfig.TokenSource(httpCtx, token),
			current:  token.AccessToken,
			callback: onRefresh,
		}
	} else {
		src = oauth2.StaticTokenSource(token)
	}

	srv, err := gmail.NewService(ctx, s.apiOptions(oauth2.NewClient(httpCtx, src))...)
	if err != nil {
		return nil, fmt.Errorf("unable to create Gmail service: %w", err)
	}
	return &Session{svc: s, srv: srv}, nil
}

// staticSession never refreshes; used for validity probes.
func (s *Service) staticSession(ctx context.Context, accessToken string) (*Session, error) {
	return s.NewSession(ctx, &oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}, nil)
}

// ValidateToken probes the access token with a cheap profile read.
func (s *Service) ValidateToken(ctx context.Context, accessToken string) error {
	if accessToken == "" {
		return fmt.Errorf("empty access token")
	}
	sess, err := s.staticSession(ctx, accessToken)
	if err != nil {
		return err
	}
	_, err = sess.Profile(ctx)
	return err
}

// Profile is the subset of the Gmail profile the API surfaces.
type Profile struct {
	EmailAddress  string `json:"email"`
	MessagesTotal int64  `json:"messages_total"`
	HistoryID     uint64 `json:"history_id"`
}

// GetProfile reads the mailbox profile with a plain access token.
func (s *Service) GetProfile(ctx context.Context, accessToken string) (*Profile, error) {
	sess, err := s.staticSession(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	return sess.Profile(ctx)
}

func (sess *Session) Profile(ctx context.Context) (*Profile, error) {
	if err := sess.svc.wait(ctx); err != nil {
		return nil, err
	}
	p, err := sess.srv.Users.GetProfile(user).Context(ctx).Do()
	if err != nil {
		return nil, classifyError(err)
	}
	return &Profile{
		EmailAddress:  p.EmailAddress,
		MessagesTotal: p.MessagesTotal,
		HistoryID:     p.HistoryId,
	}, nil
}

// Watch registers Gmail push notifications for the inbox on a Pub/Sub topic.
func (sess *Session) Watch(ctx context.Context, topicName string) (uint64, error) {
	if err := sess.svc.wait(ctx); err != nil {
		return 0, err
	}
	// Only one watch per user is allowed; clear any previous registration.
	_ = sess.srv.Users.Stop(user).Context(ctx).Do()

	resp, err := sess.srv.Users.Watch(user, &gmail.WatchRequest{
		TopicName: topicName,
		LabelIds:  []string{"INBOX"},
	}).Context(ctx).Do()
	if err != nil {
		return 0, classifyError(err)
	}
	log.Printf("[Gmail] Watch registered on %s (historyId %d, expires %d)", topicName, resp.HistoryId, resp.Expiration)
	return resp.HistoryId, nil
}
