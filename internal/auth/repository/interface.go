package repository

import authdomain "certhub-backend/internal/auth/domain"

// UserRepository persists users and their provider credentials. Finders return
// (nil, nil) when nothing matches.
type UserRepository interface {
	Upsert(user *authdomain.User) (*authdomain.User, error)
	FindByEmail(email string) (*authdomain.User, error)
	FindByID(id string) (*authdomain.User, error)
	UpdateTokens(userID string, cred authdomain.Credential) error
	ClearTokens(userID string) error
	ListConnected() ([]*authdomain.User, error)
}

// DeviceTokenRepository stores FCM registration tokens.
type DeviceTokenRepository interface {
	SaveToken(userID, token, deviceInfo string) error
	GetTokensByUserID(userID string) ([]authdomain.DeviceToken, error)
	DeleteTokens(tokens ...string) error
	DeleteUserToken(userID, token string) error
	DeleteTokensByUserID(userID string) error
}
