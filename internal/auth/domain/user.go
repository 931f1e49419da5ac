package domain

import "time"

const (
	ProviderGoogle = "google"
	ProviderIMAP   = "imap"
)

// User is keyed by email. Logout nulls the credential columns but never removes
// the row.
type User struct {
	ID           string     `json:"id" gorm:"primaryKey"`
	Email        string     `json:"email" gorm:"uniqueIndex;not null"`
	Name         string     `json:"name"`
	AvatarURL    string     `json:"avatar_url,omitempty"`
	Provider     string     `json:"provider" gorm:"default:google"`
	AccessToken  string     `json:"-" gorm:"column:google_access_token"`
	RefreshToken string     `json:"-" gorm:"column:google_refresh_token"`
	TokenExpiry  *time.Time `json:"-"`
	IMAPServer   string     `json:"imap_server,omitempty"`
	IMAPPort     int        `json:"imap_port,omitempty"`
	IMAPPassword string     `json:"-"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

func (u *User) IsIMAP() bool {
	return u.Provider == ProviderIMAP
}

// Credential returns the stored Google token pair.
func (u *User) Credential() Credential {
	cred := Credential{
		AccessToken:  u.AccessToken,
		RefreshToken: u.RefreshToken,
	}
	if u.TokenExpiry != nil {
		cred.Expiry = *u.TokenExpiry
	}
	return cred
}

// ApplyCredential copies a (possibly refreshed) token pair onto the user.
func (u *User) ApplyCredential(cred Credential) {
	u.AccessToken = cred.AccessToken
	u.RefreshToken = cred.RefreshToken
	if cred.Expiry.IsZero() {
		u.TokenExpiry = nil
		return
	}
	expiry := cred.Expiry
	u.TokenExpiry = &expiry
}

// Connected reports whether a background sync can run without user interaction.
func (u *User) Connected() bool {
	if u.IsIMAP() {
		return u.IMAPPassword != ""
	}
	return u.RefreshToken != "" || u.AccessToken != ""
}
