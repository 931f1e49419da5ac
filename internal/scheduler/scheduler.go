package scheduler

import (
	"context"
	"log"
	"sync"
	"time"

	authrepo "certhub-backend/internal/auth/repository"
	certdto "certhub-backend/internal/certificate/dto"
)

// Syncer runs the certificate pipeline for one account.
type Syncer interface {
	Sync(ctx context.Context, email string) (*certdto.SyncResponse, error)
}

// SyncScheduler periodically syncs every connected account, one at a time.
type SyncScheduler struct {
	userRepo authrepo.UserRepository
	syncer   Syncer
	interval time.Duration
	// onTick runs before each round; used to renew Gmail watches.
	onTick func(ctx context.Context)

	stopChan chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

func NewSyncScheduler(userRepo authrepo.UserRepository, syncer Syncer, interval time.Duration) *SyncScheduler {
	return &SyncScheduler{
		userRepo: userRepo,
		syncer:   syncer,
		interval: interval,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// OnTick sets a hook that runs before every round.
func (s *SyncScheduler) OnTick(fn func(ctx context.Context)) {
	s.onTick = fn
}

// Start runs a round immediately and then every interval. A non-positive
// interval disables the scheduler.
func (s *SyncScheduler) Start() {
	if s.interval <= 0 {
		log.Println("[Scheduler] SYNC_INTERVAL not set, background sync disabled")
		close(s.done)
		return
	}

	log.Printf("[Scheduler] Starting background sync (interval: %s)", s.interval)
	ctx, cancel := context.WithCancel(context.Background())

	go func() {
		defer close(s.done)
		defer cancel()

		go func() {
			<-s.stopChan
			cancel()
		}()

		s.runOnce(ctx)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.runOnce(ctx)
			case <-ctx.Done():
				log.Println("[Scheduler] Scheduler stopped")
				return
			}
		}
	}()
}

// Stop cancels the current round and waits for the loop to exit.
func (s *SyncScheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopChan) })
	<-s.done
}

func (s *SyncScheduler) runOnce(ctx context.Context) {
	if s.onTick != nil {
		s.onTick(ctx)
	}

	users, err := s.userRepo.ListConnected()
	if err != nil {
		log.Printf("[Scheduler] Error listing connected users: %v", err)
		return
	}
	if len(users) == 0 {
		return
	}

	var created, failed int
	for _, u := range users {
		if ctx.Err() != nil {
			return
		}
		resp, err := s.syncer.Sync(ctx, u.Email)
		if err != nil {
			failed++
			log.Printf("[Scheduler] Sync for %s failed: %v", u.Email, err)
			continue
		}
		created += resp.Summary.NewCertificates
	}
	log.Printf("[Scheduler] Round finished: %d users, %d new certificates, %d failed", len(users), created, failed)
}
