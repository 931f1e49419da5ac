package dto

import authdomain "certhub-backend/internal/auth/domain"

// EmailRequest is the body of the email-scoped POST endpoints.
type EmailRequest struct {
	Email string `json:"email"`
}

type IMAPConnectRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Server   string `json:"server" binding:"required"`
	Port     int    `json:"port"`
	Password string `json:"password" binding:"required"`
	Name     string `json:"name"`
}

type RegisterDeviceRequest struct {
	Email      string `json:"email" binding:"required"`
	Token      string `json:"token" binding:"required"`
	DeviceInfo string `json:"device_info"`
}

type UnregisterDeviceRequest struct {
	Email string `json:"email" binding:"required"`
	Token string `json:"token" binding:"required"`
}

// TokenInfo is the client-facing view of an access token; the refresh token
// never leaves the server.
type TokenInfo struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	TokenType   string `json:"token_type"`
	Scope       string `json:"scope"`
}

type LoginURLResponse struct {
	Success bool   `json:"success"`
	AuthURL string `json:"authUrl"`
	Message string `json:"message"`
}

type CallbackResponse struct {
	Success bool             `json:"success"`
	Message string           `json:"message"`
	User    *authdomain.User `json:"user"`
	Tokens  *TokenInfo       `json:"tokens,omitempty"`
}

// CallbackUser is the profile handed to the frontend in the redirect query.
type CallbackUser struct {
	ID      string `json:"id"`
	Email   string `json:"email"`
	Name    string `json:"name"`
	Picture string `json:"picture"`
}

type StatusResponse struct {
	Success       bool             `json:"success"`
	Authenticated bool             `json:"authenticated"`
	TokensValid   bool             `json:"tokens_valid"`
	Refreshed     bool             `json:"refreshed"`
	User          *authdomain.User `json:"user,omitempty"`
}

type RefreshResponse struct {
	Success bool       `json:"success"`
	Message string     `json:"message"`
	Token   *TokenInfo `json:"token,omitempty"`
}

type ConnectionResponse struct {
	Success       bool   `json:"success"`
	Provider      string `json:"provider"`
	EmailAddress  string `json:"email_address,omitempty"`
	MessagesTotal int64  `json:"messages_total,omitempty"`
	Message       string `json:"message"`
}
