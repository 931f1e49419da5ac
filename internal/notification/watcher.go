package notification

import (
	"context"
	"fmt"
	"log"
	"strings"

	authrepo "certhub-backend/internal/auth/repository"
	authusecase "certhub-backend/internal/auth/usecase"
	"certhub-backend/pkg/gmail"

	"golang.org/x/oauth2"
)

// MailboxWatcher registers a Gmail watch for an access token.
type MailboxWatcher interface {
	Watch(ctx context.Context, accessToken, topicName string) (uint64, error)
}

type gmailWatcher struct {
	gmailService *gmail.Service
}

// NewGmailWatcher adapts gmail.Service to MailboxWatcher.
func NewGmailWatcher(gmailService *gmail.Service) MailboxWatcher {
	return &gmailWatcher{gmailService: gmailService}
}

func (w *gmailWatcher) Watch(ctx context.Context, accessToken, topicName string) (uint64, error) {
	sess, err := w.gmailService.NewSession(ctx, &oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}, nil)
	if err != nil {
		return 0, err
	}
	return sess.Watch(ctx, topicName)
}

// WatchRegistrar points the Gmail inbox of every connected Google account at
// the push topic. Gmail expires a watch after seven days, so this is meant to
// run at startup and on each scheduler tick.
type WatchRegistrar struct {
	authUsecase authusecase.AuthUsecase
	userRepo    authrepo.UserRepository
	watcher     MailboxWatcher
	topic       string
	service     *Service
}

// NewWatchRegistrar builds a registrar for topic, which may be a short name
// or a full "projects/<id>/topics/<name>" path. service, when set, is seeded
// with each watch's starting historyId.
func NewWatchRegistrar(authUsecase authusecase.AuthUsecase, userRepo authrepo.UserRepository, watcher MailboxWatcher, projectID, topic string, service *Service) *WatchRegistrar {
	return &WatchRegistrar{
		authUsecase: authUsecase,
		userRepo:    userRepo,
		watcher:     watcher,
		topic:       TopicPath(projectID, topic),
		service:     service,
	}
}

// TopicPath expands a short topic name into the resource path Gmail wants.
func TopicPath(projectID, topic string) string {
	if strings.HasPrefix(topic, "projects/") {
		return topic
	}
	return fmt.Sprintf("projects/%s/topics/%s", projectID, topic)
}

// ShortTopicName is the last path element, as the Pub/Sub client expects.
func ShortTopicName(topic string) string {
	if i := strings.LastIndex(topic, "/"); i >= 0 {
		return topic[i+1:]
	}
	return topic
}

func (r *WatchRegistrar) WatchAll(ctx context.Context) {
	users, err := r.userRepo.ListConnected()
	if err != nil {
		log.Printf("[PubSub] Listing users for watch registration failed: %v", err)
		return
	}
	registered := 0
	for _, u := range users {
		if u.IsIMAP() {
			continue
		}
		if err := r.Watch(ctx, u.Email); err != nil {
			log.Printf("[PubSub] Watch for %s failed: %v", u.Email, err)
			continue
		}
		registered++
	}
	log.Printf("[PubSub] Registered %d Gmail watches", registered)
}

// Watch registers the push watch for one account, refreshing its credential
// first when needed.
func (r *WatchRegistrar) Watch(ctx context.Context, email string) error {
	user, cred, _, err := r.authUsecase.EnsureAuthenticated(ctx, email)
	if err != nil {
		return err
	}
	if user.IsIMAP() {
		return fmt.Errorf("push notifications need a Gmail account")
	}

	historyID, err := r.watcher.Watch(ctx, cred.AccessToken, r.topic)
	if err != nil {
		return err
	}
	if r.service != nil {
		r.service.advance(user.ID, historyID)
	}
	return nil
}
