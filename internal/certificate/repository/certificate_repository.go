package repository

import (
	"errors"
	"fmt"
	"strings"
	"time"

	certdomain "certhub-backend/internal/certificate/domain"
	"certhub-backend/pkg/apperr"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type certificateRepository struct {
	db *gorm.DB
}

// NewCertificateRepository creates a new instance of certificateRepository
func NewCertificateRepository(db *gorm.DB) CertificateRepository {
	return &certificateRepository{
		db: db,
	}
}

func (r *certificateRepository) Create(cert *certdomain.Certificate) error {
	if cert.ID == "" {
		cert.ID = uuid.New().String()
	}
	if cert.CreatedAt.IsZero() {
		cert.CreatedAt = time.Now()
	}

	err := r.db.Create(cert).Error
	if isDuplicate(err) {
		return fmt.Errorf("%w: message %s", apperr.ErrDuplicate, cert.MessageID)
	}
	return err
}

func (r *certificateRepository) ExistsByMessageID(messageID string) (bool, error) {
	var count int64
	err := r.db.Model(&certdomain.Certificate{}).Where("message_id = ?", messageID).Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *certificateRepository) FindByUserID(userID string) ([]*certdomain.Certificate, error) {
	var certs []*certdomain.Certificate
	err := r.db.Where("user_id = ?", userID).
		Order("issue_date DESC").
		Order("created_at DESC").
		Find(&certs).Error
	if err != nil {
		return nil, err
	}
	return certs, nil
}

func (r *certificateRepository) FindByIDs(userID string, ids []string) ([]*certdomain.Certificate, error) {
	if len(ids) == 0 {
		return []*certdomain.Certificate{}, nil
	}

	var rows []*certdomain.Certificate
	if err := r.db.Where("user_id = ? AND id IN ?", userID, ids).Find(&rows).Error; err != nil {
		return nil, err
	}

	byID := make(map[string]*certdomain.Certificate, len(rows))
	for _, c := range rows {
		byID[c.ID] = c
	}
	out := make([]*certdomain.Certificate, 0, len(rows))
	for _, id := range ids {
		if c, ok := byID[id]; ok {
			out = append(out, c)
		}
	}
	return out, nil
}

func (r *certificateRepository) FindUnindexed(userID string, limit int) ([]*certdomain.Certificate, error) {
	var certs []*certdomain.Certificate
	q := r.db.Where("user_id = ? AND indexed_at IS NULL", userID).Order("created_at")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&certs).Error; err != nil {
		return nil, err
	}
	return certs, nil
}

func (r *certificateRepository) MarkIndexed(ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.Model(&certdomain.Certificate{}).Where("id IN ?", ids).Update("indexed_at", at).Error
}

// isDuplicate recognises unique violations whether or not the dialect
// translates them.
func isDuplicate(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate key") ||
		strings.Contains(msg, "sqlstate 23505")
}
