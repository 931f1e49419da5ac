package usecase

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	authdomain "certhub-backend/internal/auth/domain"
	authusecase "certhub-backend/internal/auth/usecase"
	certdomain "certhub-backend/internal/certificate/domain"
	certdto "certhub-backend/internal/certificate/dto"
	certrepo "certhub-backend/internal/certificate/repository"
	"certhub-backend/pkg/apperr"
	"certhub-backend/pkg/extractor"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

const (
	untitledCourse = "Untitled Course"
	indexBatchSize = 50
)

type syncUsecase struct {
	authUsecase authusecase.AuthUsecase
	certRepo    certrepo.CertificateRepository
	mailbox     MailboxOpener
	maxPerRun   int

	enricher Enricher
	indexer  CertificateIndex
	notifier CertificateNotifier

	group singleflight.Group
	now   func() time.Time
}

// NewSyncUsecase creates the sync orchestrator. maxPerRun <= 0 processes every
// candidate the search returns.
func NewSyncUsecase(authUsecase authusecase.AuthUsecase, certRepo certrepo.CertificateRepository, mailbox MailboxOpener, maxPerRun int) SyncUsecase {
	return &syncUsecase{
		authUsecase: authUsecase,
		certRepo:    certRepo,
		mailbox:     mailbox,
		maxPerRun:   maxPerRun,
		now:         time.Now,
	}
}

func (s *syncUsecase) SetEnricher(enricher Enricher) {
	s.enricher = enricher
}

func (s *syncUsecase) SetIndexer(indexer CertificateIndex) {
	s.indexer = indexer
}

func (s *syncUsecase) SetNotifier(notifier CertificateNotifier) {
	s.notifier = notifier
}

// Sync runs the pipeline for email. Concurrent calls for the same address
// share one run and one result.
func (s *syncUsecase) Sync(ctx context.Context, email string) (*certdto.SyncResponse, error) {
	key := strings.ToLower(strings.TrimSpace(email))
	if key == "" {
		return nil, apperr.ErrEmailRequired
	}

	v, err, shared := s.group.Do(key, func() (interface{}, error) {
		return s.run(context.WithoutCancel(ctx), key)
	})
	if shared {
		log.Printf("[Sync] Joined in-flight sync for %s", key)
	}
	if err != nil {
		return nil, err
	}
	return v.(*certdto.SyncResponse), nil
}

func (s *syncUsecase) run(ctx context.Context, email string) (*certdto.SyncResponse, error) {
	started := s.now()

	user, cred, refreshed, err := s.authUsecase.EnsureAuthenticated(ctx, email)
	if err != nil {
		log.Printf("[Sync] Cannot authenticate %s: %v", email, err)
		return nil, err
	}
	if refreshed {
		log.Printf("[Sync] Refreshed credential for %s before sync", email)
	}

	mailbox, err := s.mailbox.Open(ctx, user, cred)
	if err != nil {
		return nil, fmt.Errorf("open mailbox: %w", err)
	}
	defer func() {
		if err := mailbox.Close(); err != nil {
			log.Printf("[Sync] Closing mailbox for %s: %v", email, err)
		}
	}()

	ids, err := mailbox.SearchCertificateEmails(ctx)
	if err != nil {
		log.Printf("[Sync] Search failed for %s: %v", email, err)
		return nil, err
	}

	resp := &certdto.SyncResponse{
		Success: true,
		Summary: certdto.SyncSummary{TotalEmailsFound: len(ids)},
		Results: []certdto.SyncResult{},
	}
	if len(ids) == 0 {
		resp.Message = "No certificate emails found"
		return resp, nil
	}

	candidates := ids
	if s.maxPerRun > 0 && len(candidates) > s.maxPerRun {
		candidates = candidates[:s.maxPerRun]
	}

	var created []*certdomain.Certificate
	for _, id := range candidates {
		resp.Summary.Processed++

		result, cert := s.processMessage(ctx, mailbox, user.ID, id)
		switch result.Status {
		case certdto.StatusSuccess:
			resp.Summary.NewCertificates++
			created = append(created, cert)
		case certdto.StatusDuplicate:
			resp.Summary.Duplicates++
		default:
			resp.Summary.Errors++
			log.Printf("[Sync] Message %s for %s failed: %s", id, email, result.Error)
		}
		if len(resp.Results) < certdto.MaxSyncResults {
			resp.Results = append(resp.Results, result)
		}
	}

	resp.Message = fmt.Sprintf("Sync completed: %d new certificates found", resp.Summary.NewCertificates)
	log.Printf("[Sync] %s: found=%d processed=%d new=%d duplicates=%d errors=%d in %s",
		email, resp.Summary.TotalEmailsFound, resp.Summary.Processed, resp.Summary.NewCertificates,
		resp.Summary.Duplicates, resp.Summary.Errors, s.now().Sub(started).Round(time.Millisecond))

	s.afterRun(ctx, user, created)
	return resp, nil
}

// processMessage never returns an error: every failure, panics included, is
// reported in the result so one bad message cannot abort the run.
func (s *syncUsecase) processMessage(ctx context.Context, mailbox MailboxSession, userID, messageID string) (result certdto.SyncResult, cert *certdomain.Certificate) {
	result = certdto.SyncResult{MessageID: messageID}
	defer func() {
		if r := recover(); r != nil {
			result = certdto.SyncResult{
				MessageID: messageID,
				Status:    certdto.StatusError,
				Error:     fmt.Errorf("%w: %v", apperr.ErrExtraction, r).Error(),
			}
			cert = nil
		}
	}()

	exists, err := s.certRepo.ExistsByMessageID(messageID)
	if err != nil {
		return failed(result, err), nil
	}
	if exists {
		result.Status = certdto.StatusDuplicate
		result.Message = "Certificate already exists"
		return result, nil
	}

	msg, err := mailbox.FetchMessage(ctx, messageID)
	if err != nil {
		return failed(result, err), nil
	}

	cert = s.buildCertificate(ctx, userID, messageID, msg)
	if err := s.certRepo.Create(cert); err != nil {
		if errors.Is(err, apperr.ErrDuplicate) {
			result.Status = certdto.StatusDuplicate
			result.Message = "Certificate already exists (detected during insert)"
			return result, nil
		}
		return failed(result, err), nil
	}

	result.Status = certdto.StatusSuccess
	result.Certificate = &certdto.CertificateBrief{
		ID:         cert.ID,
		Platform:   cert.Platform,
		CourseName: cert.CourseName,
		Skills:     cert.Skills,
	}
	return result, cert
}

func failed(result certdto.SyncResult, err error) certdto.SyncResult {
	result.Status = certdto.StatusError
	result.Error = err.Error()
	return result
}

func (s *syncUsecase) buildCertificate(ctx context.Context, userID, messageID string, msg *extractor.Message) *certdomain.Certificate {
	details := extractor.Extract(*msg, s.now())

	var namer extractor.CourseNamer
	var summarizer extractor.SkillSummarizer
	if s.enricher != nil {
		namer, summarizer = s.enricher, s.enricher
	}

	courseName, err := extractor.ResolveCourseName(ctx, namer, details.CourseName, msg.Subject, msg.Body)
	if err != nil && !errors.Is(err, extractor.ErrEnrichmentDisabled) {
		log.Printf("[Sync] Keeping heuristic course name for %s: %v", messageID, err)
	}
	if courseName = strings.TrimSpace(courseName); courseName == "" {
		courseName = strings.TrimSpace(msg.Subject)
	}
	if courseName == "" {
		courseName = untitledCourse
	}

	skills := extractor.ResolveSkills(ctx, summarizer, msg.Subject, msg.Body)
	if skills.Tier != extractor.TierEnrichment && s.enricher != nil {
		log.Printf("[Sync] Skills for %s from %s tier (%s)", messageID, skills.Tier, skills.FailureSummary())
	}

	return &certdomain.Certificate{
		ID:           uuid.New().String(),
		UserID:       userID,
		MessageID:    messageID,
		Platform:     details.Platform,
		CourseName:   courseName,
		IssueDate:    details.IssueDate,
		DownloadLink: details.DownloadLink,
		Skills:       skills.Skills,
		EmailSubject: details.EmailSubject,
		CreatedAt:    s.now(),
	}
}

// afterRun pushes to the search index and the user's devices. Failures here
// never change the run's outcome.
func (s *syncUsecase) afterRun(ctx context.Context, user *authdomain.User, created []*certdomain.Certificate) {
	if s.indexer != nil {
		s.indexBacklog(ctx, user.ID)
	}
	if s.notifier != nil && len(created) > 0 {
		if err := s.notifier.NotifyNewCertificates(ctx, user, created); err != nil {
			log.Printf("[Sync] Push notification for %s failed: %v", user.Email, err)
		}
	}
}

// indexBacklog also retries certificates whose indexing failed on an earlier
// run.
func (s *syncUsecase) indexBacklog(ctx context.Context, userID string) {
	pending, err := s.certRepo.FindUnindexed(userID, indexBatchSize)
	if err != nil {
		log.Printf("[Sync] Listing unindexed certificates for %s: %v", userID, err)
		return
	}

	var done []string
	for _, cert := range pending {
		if err := s.indexer.UpsertCertificate(ctx, cert); err != nil {
			log.Printf("[Sync] Indexing certificate %s failed: %v", cert.ID, err)
			continue
		}
		done = append(done, cert.ID)
	}
	if err := s.certRepo.MarkIndexed(done, s.now()); err != nil {
		log.Printf("[Sync] Marking %d certificates indexed: %v", len(done), err)
	}
}
