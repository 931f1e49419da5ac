package repository

import (
	"fmt"
	"testing"
	"time"

	certdomain "certhub-backend/internal/certificate/domain"
	"certhub-backend/pkg/apperr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
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

	require.NoError(t, db.AutoMigrate(&certdomain.Certificate{}))
	return db
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func newCert(userID, messageID string, issued time.Time) *certdomain.Certificate {
	return &certdomain.Certificate{
		UserID:     userID,
		MessageID:  messageID,
		Platform:   "Coursera",
		CourseName: "Machine Learning Specialization " + messageID,
		IssueDate:  issued,
		Skills:     "Python, Machine Learning",
	}
}

func TestCertificateRepository_CreateAssignsID(t *testing.T) {
	repo := NewCertificateRepository(newTestDB(t))
	cert := newCert("u1", "m1", day(2024, 5, 1))

	require.NoError(t, repo.Create(cert))
	assert.NotEmpty(t, cert.ID)
	assert.False(t, cert.CreatedAt.IsZero())

	exists, err := repo.ExistsByMessageID("m1")
	require.NoError(t, err)
	assert.True(t, exists)

	exists, err = repo.ExistsByMessageID("m2")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestCertificateRepository_DuplicateMessageID(t *testing.T) {
	repo := NewCertificateRepository(newTestDB(t))
	require.NoError(t, repo.Create(newCert("u1", "m1", day(2024, 5, 1))))

	err := repo.Create(newCert("u1", "m1", day(2024, 5, 2)))
	assert.ErrorIs(t, err, apperr.ErrDuplicate)

	all, err := repo.FindByUserID("u1")
	require.NoError(t, err)
	assert.Len(t, all, 1, "no two rows share a message id")
}

func TestCertificateRepository_FindByUserIDNewestFirst(t *testing.T) {
	repo := NewCertificateRepository(newTestDB(t))
	require.NoError(t, repo.Create(newCert("u1", "old", day(2023, 1, 10))))
	require.NoError(t, repo.Create(newCert("u1", "new", day(2024, 3, 2))))
	require.NoError(t, repo.Create(newCert("u1", "mid", day(2023, 9, 1))))
	require.NoError(t, repo.Create(newCert("u2", "other", day(2024, 4, 1))))

	certs, err := repo.FindByUserID("u1")
	require.NoError(t, err)
	require.Len(t, certs, 3)
	assert.Equal(t, "new", certs[0].MessageID)
	assert.Equal(t, "mid", certs[1].MessageID)
	assert.Equal(t, "old", certs[2].MessageID)
	assert.True(t, certs[0].IssueDate.Equal(day(2024, 3, 2)))

	none, err := repo.FindByUserID("nobody")
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestCertificateRepository_FindByIDsKeepsOrderAndScope(t *testing.T) {
	repo := NewCertificateRepository(newTestDB(t))
	var ids []string
	for i := 0; i < 3; i++ {
		c := newCert("u1", fmt.Sprintf("m%d", i), day(2024, 1, i+1))
		require.NoError(t, repo.Create(c))
		ids = append(ids, c.ID)
	}
	foreign := newCert("u2", "f1", day(2024, 1, 1))
	require.NoError(t, repo.Create(foreign))

	got, err := repo.FindByIDs("u1", []string{ids[2], "missing", foreign.ID, ids[0]})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, ids[2], got[0].ID)
	assert.Equal(t, ids[0], got[1].ID)

	empty, err := repo.FindByIDs("u1", nil)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestCertificateRepository_IndexBacklog(t *testing.T) {
	repo := NewCertificateRepository(newTestDB(t))
	a := newCert("u1", "a", day(2024, 1, 1))
	b := newCert("u1", "b", day(2024, 1, 2))
	require.NoError(t, repo.Create(a))
	require.NoError(t, repo.Create(b))

	pending, err := repo.FindUnindexed("u1", 0)
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	require.NoError(t, repo.MarkIndexed([]string{a.ID}, time.Now()))

	pending, err = repo.FindUnindexed("u1", 10)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, b.ID, pending[0].ID)

	assert.NoError(t, repo.MarkIndexed(nil, time.Now()))
}

func TestIsDuplicate(t *testing.T) {
	assert.False(t, isDuplicate(nil))
	assert.True(t, isDuplicate(gorm.ErrDuplicatedKey))
	assert.True(t, isDuplicate(fmt.Errorf("ERROR: duplicate key value violates unique constraint (SQLSTATE 23505)")))
	assert.True(t, isDuplicate(fmt.Errorf("UNIQUE constraint failed: certificates.message_id")))
	assert.False(t, isDuplicate(fmt.Errorf("connection refused")))
}
