package usecase

import (
	"context"
	"fmt"
	"strings"

	certdomain "certhub-backend/internal/certificate/domain"
)

// VectorStore is a per-user document store with similarity search, such as
// *chroma.Client.
type VectorStore interface {
	Upsert(ctx context.Context, id, userID, text string, metadata map[string]interface{}) error
	Query(ctx context.Context, userID, query string, limit int) ([]string, []float64, error)
}

type vectorIndex struct {
	store VectorStore
}

// NewVectorIndex indexes certificates by id so a re-index replaces the old
// document instead of adding a second one.
func NewVectorIndex(store VectorStore) CertificateIndex {
	return &vectorIndex{store: store}
}

func (v *vectorIndex) UpsertCertificate(ctx context.Context, cert *certdomain.Certificate) error {
	metadata := map[string]interface{}{
		"platform":    cert.Platform,
		"course_name": cert.CourseName,
		"message_id":  cert.MessageID,
	}
	if !cert.IssueDate.IsZero() {
		metadata["issue_date"] = cert.IssueDate.Format("2006-01-02")
	}
	return v.store.Upsert(ctx, cert.ID, cert.UserID, certificateDocument(cert), metadata)
}

func (v *vectorIndex) Search(ctx context.Context, userID, query string, limit int) ([]string, []float64, error) {
	return v.store.Query(ctx, userID, query, limit)
}

// certificateDocument is the text that gets embedded.
func certificateDocument(cert *certdomain.Certificate) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Course: %s\n", cert.CourseName)
	fmt.Fprintf(&b, "Platform: %s\n", cert.Platform)
	fmt.Fprintf(&b, "Skills: %s", strings.Join(cert.SkillList(), ", "))
	if subject := strings.TrimSpace(cert.EmailSubject); subject != "" {
		fmt.Fprintf(&b, "\nSubject: %s", subject)
	}
	return b.String()
}
