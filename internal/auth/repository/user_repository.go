package repository

import (
	"errors"
	"fmt"
	"strings"
	"time"

	authdomain "certhub-backend/internal/auth/domain"
	"certhub-backend/pkg/utils/crypto"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// userRepository implements UserRepository. Secrets are sealed on the way in
// and opened on the way out, so callers only ever see plaintext.
type userRepository struct {
	db     *gorm.DB
	cipher *crypto.Cipher
}

// NewUserRepository creates a new instance of userRepository. cipher may be nil.
func NewUserRepository(db *gorm.DB, cipher *crypto.Cipher) UserRepository {
	return &userRepository{
		db:     db,
		cipher: cipher,
	}
}

// Upsert inserts the user or, when the email already exists, overwrites the
// profile and credential columns. The stored row is returned.
func (r *userRepository) Upsert(user *authdomain.User) (*authdomain.User, error) {
	row := *user
	row.Email = normalizeEmail(row.Email)
	if row.ID == "" {
		row.ID = uuid.New().String()
	}
	now := time.Now()
	row.CreatedAt = now
	row.UpdatedAt = now
	if err := r.seal(&row); err != nil {
		return nil, err
	}

	err := r.db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "email"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"name", "avatar_url", "provider",
			"google_access_token", "google_refresh_token", "token_expiry",
			"imap_server", "imap_port", "imap_password",
			"updated_at",
		}),
	}).Create(&row).Error
	if err != nil {
		return nil, fmt.Errorf("upsert user: %w", err)
	}

	return r.FindByEmail(row.Email)
}

func (r *userRepository) FindByEmail(email string) (*authdomain.User, error) {
	return r.findOne("email = ?", normalizeEmail(email))
}

func (r *userRepository) FindByID(id string) (*authdomain.User, error) {
	return r.findOne("id = ?", id)
}

func (r *userRepository) UpdateTokens(userID string, cred authdomain.Credential) error {
	access, err := r.cipher.Encrypt(cred.AccessToken)
	if err != nil {
		return err
	}
	refresh, err := r.cipher.Encrypt(cred.RefreshToken)
	if err != nil {
		return err
	}
	var expiry *time.Time
	if !cred.Expiry.IsZero() {
		expiry = &cred.Expiry
	}

	return r.db.Model(&authdomain.User{}).Where("id = ?", userID).Updates(map[string]interface{}{
		"google_access_token":  access,
		"google_refresh_token": refresh,
		"token_expiry":         expiry,
		"updated_at":           time.Now(),
	}).Error
}

// ClearTokens nulls every stored secret for the user but keeps the row.
func (r *userRepository) ClearTokens(userID string) error {
	return r.db.Model(&authdomain.User{}).Where("id = ?", userID).Updates(map[string]interface{}{
		"google_access_token":  "",
		"google_refresh_token": "",
		"token_expiry":         nil,
		"imap_password":        "",
		"updated_at":           time.Now(),
	}).Error
}

// ListConnected returns users a background sync can run for.
func (r *userRepository) ListConnected() ([]*authdomain.User, error) {
	var rows []*authdomain.User
	err := r.db.
		Where("google_refresh_token <> '' OR google_access_token <> '' OR imap_password <> ''").
		Order("created_at").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, u := range rows {
		if err := r.open(u); err != nil {
			return nil, err
		}
	}
	return rows, nil
}

func (r *userRepository) findOne(query string, arg interface{}) (*authdomain.User, error) {
	var user authdomain.User
	err := r.db.Where(query, arg).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if err := r.open(&user); err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) seal(u *authdomain.User) error {
	var err error
	if u.AccessToken, err = r.cipher.Encrypt(u.AccessToken); err != nil {
		return err
	}
	if u.RefreshToken, err = r.cipher.Encrypt(u.RefreshToken); err != nil {
		return err
	}
	if u.IMAPPassword, err = r.cipher.Encrypt(u.IMAPPassword); err != nil {
		return err
	}
	return nil
}

func (r *userRepository) open(u *authdomain.User) error {
	var err error
	if u.AccessToken, err = r.cipher.Decrypt(u.AccessToken); err != nil {
		return fmt.Errorf("decrypt access token for %s: %w", u.ID, err)
	}
	if u.RefreshToken, err = r.cipher.Decrypt(u.RefreshToken); err != nil {
		return fmt.Errorf("decrypt refresh token for %s: %w", u.ID, err)
	}
	if u.IMAPPassword, err = r.cipher.Decrypt(u.IMAPPassword); err != nil {
		return fmt.Errorf("decrypt imap password for %s: %w", u.ID, err)
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
