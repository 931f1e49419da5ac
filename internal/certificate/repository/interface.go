package repository

import (
	"time"

	certdomain "certhub-backend/internal/certificate/domain"
)

// CertificateRepository owns the certificates table.
type CertificateRepository interface {
	// Create inserts cert and returns apperr.ErrDuplicate when its message id
	// is already stored.
	Create(cert *certdomain.Certificate) error
	ExistsByMessageID(messageID string) (bool, error)
	// FindByUserID lists newest issue date first.
	FindByUserID(userID string) ([]*certdomain.Certificate, error)
	// FindByIDs keeps the order of ids and skips unknown or foreign ones.
	FindByIDs(userID string, ids []string) ([]*certdomain.Certificate, error)

	// FindUnindexed returns certificates not yet pushed to the search index.
	FindUnindexed(userID string, limit int) ([]*certdomain.Certificate, error)
	MarkIndexed(ids []string, at time.Time) error
}
