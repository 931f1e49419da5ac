package usecase

import (
	"context"

	authdomain "certhub-backend/internal/auth/domain"
	certdomain "certhub-backend/internal/certificate/domain"
	certdto "certhub-backend/internal/certificate/dto"
	"certhub-backend/pkg/extractor"
)

// SyncUsecase runs the certificate pipeline for one user.
type SyncUsecase interface {
	Sync(ctx context.Context, email string) (*certdto.SyncResponse, error)

	SetEnricher(enricher Enricher)
	SetIndexer(indexer CertificateIndex)
	SetNotifier(notifier CertificateNotifier)
}

// CertificateUsecase answers read queries over stored certificates.
type CertificateUsecase interface {
	GetCertificates(email string, filter certdto.CertificateFilter) (*certdto.CertificatesResponse, error)
	GetStats(email string) (*certdto.StatsResponse, error)
	SemanticSearch(ctx context.Context, email, query string, limit int) (*certdto.SearchResponse, error)

	SetIndexer(indexer CertificateIndex)
}

// Enricher is the optional language-model step of extraction.
type Enricher interface {
	extractor.SkillSummarizer
	extractor.CourseNamer
}

// MailboxSession is an open mailbox for the duration of one run.
type MailboxSession interface {
	SearchCertificateEmails(ctx context.Context) ([]string, error)
	FetchMessage(ctx context.Context, id string) (*extractor.Message, error)
	Close() error
}

// MailboxOpener opens the right mailbox kind for a user whose credential
// has already been validated.
type MailboxOpener interface {
	Open(ctx context.Context, user *authdomain.User, cred authdomain.Credential) (MailboxSession, error)
}

// CertificateIndex is the semantic search backend.
type CertificateIndex interface {
	UpsertCertificate(ctx context.Context, cert *certdomain.Certificate) error
	Search(ctx context.Context, userID, query string, limit int) ([]string, []float64, error)
}

// CertificateNotifier tells a user's devices about new certificates.
type CertificateNotifier interface {
	NotifyNewCertificates(ctx context.Context, user *authdomain.User, certs []*certdomain.Certificate) error
}
