package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	authrepo "certhub-backend/internal/auth/repository"
	certdto "certhub-backend/internal/certificate/dto"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"
)

// GmailNotification is the payload Gmail publishes on every mailbox change.
type GmailNotification struct {
	EmailAddress string `json:"emailAddress"`
	HistoryID    uint64 `json:"historyId"`
}

// Syncer runs the certificate pipeline for one account.
type Syncer interface {
	Sync(ctx context.Context, email string) (*certdto.SyncResponse, error)
}

// Service listens for Gmail push notifications on Pub/Sub and syncs the
// mailbox that changed. Replays (historyId not newer than the last one seen
// for that user) are dropped.
type Service struct {
	pubsubClient *pubsub.Client
	userRepo     authrepo.UserRepository
	syncer       Syncer
	topicName    string
	subName      string

	mu            sync.Mutex
	lastHistoryID map[string]uint64
}

func NewService(ctx context.Context, projectID, topicName, credentialsFile string, userRepo authrepo.UserRepository, syncer Syncer) (*Service, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}

	client, err := pubsub.NewClient(ctx, projectID, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create pubsub client: %w", err)
	}

	s := newService(userRepo, syncer)
	s.pubsubClient = client
	s.topicName = topicName
	s.subName = topicName + "-sub"
	return s, nil
}

func newService(userRepo authrepo.UserRepository, syncer Syncer) *Service {
	return &Service{
		userRepo:      userRepo,
		syncer:        syncer,
		lastHistoryID: make(map[string]uint64),
	}
}

// Start blocks until ctx ends or the subscription fails.
func (s *Service) Start(ctx context.Context) {
	sub, err := s.ensureSubscription(ctx)
	if err != nil {
		log.Printf("[PubSub] %v", err)
		return
	}

	log.Printf("[PubSub] Listening on subscription %s", s.subName)
	err = sub.Receive(ctx, func(ctx context.Context, msg *pubsub.Message) {
		s.handleMessage(ctx, msg.Data)
		msg.Ack()
	})
	if err != nil {
		log.Printf("[PubSub] Receive stopped: %v", err)
	}
}

func (s *Service) Close() error {
	if s.pubsubClient == nil {
		return nil
	}
	return s.pubsubClient.Close()
}

func (s *Service) ensureSubscription(ctx context.Context) (*pubsub.Subscription, error) {
	sub := s.pubsubClient.Subscription(s.subName)
	exists, err := sub.Exists(ctx)
	if err != nil {
		return nil, fmt.Errorf("checking subscription %s: %w", s.subName, err)
	}
	if exists {
		return sub, nil
	}

	topic := s.pubsubClient.Topic(s.topicName)
	topicExists, err := topic.Exists(ctx)
	if err != nil {
		return nil, fmt.Errorf("checking topic %s: %w", s.topicName, err)
	}
	if !topicExists {
		return nil, fmt.Errorf("topic %s does not exist, cannot create subscription", s.topicName)
	}

	sub, err = s.pubsubClient.CreateSubscription(ctx, s.subName, pubsub.SubscriptionConfig{
		Topic:       topic,
		AckDeadline: 10 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("creating subscription %s: %w", s.subName, err)
	}
	log.Printf("[PubSub] Created subscription %s", s.subName)
	return sub, nil
}

// handleMessage never fails the message: a bad payload or a failed sync is
// logged and acked, and the next push or scheduled run picks up the slack.
func (s *Service) handleMessage(ctx context.Context, data []byte) {
	var n GmailNotification
	if err := json.Unmarshal(data, &n); err != nil {
		log.Printf("[PubSub] Dropping malformed notification: %v", err)
		return
	}

	user, err := s.userRepo.FindByEmail(n.EmailAddress)
	if err != nil {
		log.Printf("[PubSub] Error finding user %s: %v", n.EmailAddress, err)
		return
	}
	if user == nil {
		log.Printf("[PubSub] No user for %s", n.EmailAddress)
		return
	}

	if !s.advance(user.ID, n.HistoryID) {
		log.Printf("[PubSub] Skipping replayed historyId %d for %s", n.HistoryID, user.Email)
		return
	}

	resp, err := s.syncer.Sync(ctx, user.Email)
	if err != nil {
		log.Printf("[PubSub] Sync for %s failed: %v", user.Email, err)
		return
	}
	log.Printf("[PubSub] Sync for %s: %s", user.Email, resp.Message)
}

// advance records historyID for userID and reports whether it is newer than
// anything seen before.
func (s *Service) advance(userID string, historyID uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if last, ok := s.lastHistoryID[userID]; ok && historyID <= last {
		return false
	}
	s.lastHistoryID[userID] = historyID
	return true
}
