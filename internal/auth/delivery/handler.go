package delivery

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	authdto "certhub-backend/internal/auth/dto"
	"certhub-backend/internal/auth/usecase"
	"certhub-backend/pkg/apperr"

	"github.com/gin-gonic/gin"
)

// AuthHandler serves the /api/auth routes.
type AuthHandler struct {
	authUsecase usecase.AuthUsecase
	frontendURL string
}

func NewAuthHandler(authUsecase usecase.AuthUsecase, frontendURL string) *AuthHandler {
	return &AuthHandler{
		authUsecase: authUsecase,
		frontendURL: strings.TrimRight(frontendURL, "/"),
	}
}

func wantsJSON(c *gin.Context) bool {
	return strings.Contains(c.GetHeader("Accept"), "application/json")
}

// Login redirects browsers to Google and returns the URL to API clients.
// GET /api/auth/login
func (h *AuthHandler) Login(c *gin.Context) {
	authURL, err := h.authUsecase.LoginURL()
	if err != nil {
		apperr.Respond(c, err, "LOGIN_ERROR")
		return
	}
	if !wantsJSON(c) {
		c.Redirect(http.StatusFound, authURL)
		return
	}
	c.JSON(http.StatusOK, authdto.LoginURLResponse{
		Success: true,
		AuthURL: authURL,
		Message: "Visit the auth URL to authenticate with Google",
	})
}

// Callback finishes the OAuth flow.
// GET /api/auth/callback?code=&state= or ?error=
func (h *AuthHandler) Callback(c *gin.Context) {
	if oauthErr := c.Query("error"); oauthErr != "" {
		err := fmt.Errorf("%w: %s", apperr.OAuthError(oauthErr), c.Query("error_description"))
		h.callbackFailed(c, err)
		return
	}

	user, err := h.authUsecase.Callback(c.Request.Context(), c.Query("code"), c.Query("state"))
	if err != nil {
		h.callbackFailed(c, err)
		return
	}

	if wantsJSON(c) {
		tokens := usecase.FormatToken(user.Credential(), time.Now())
		c.JSON(http.StatusOK, authdto.CallbackResponse{
			Success: true,
			Message: "Authentication successful",
			User:    user,
			Tokens:  &tokens,
		})
		return
	}

	payload, _ := json.Marshal(authdto.CallbackUser{
		ID:      user.ID,
		Email:   user.Email,
		Name:    user.Name,
		Picture: user.AvatarURL,
	})
	q := url.Values{"user": {string(payload)}}
	c.Redirect(http.StatusFound, h.frontendURL+"/callback?"+q.Encode())
}

func (h *AuthHandler) callbackFailed(c *gin.Context, err error) {
	if wantsJSON(c) {
		apperr.Respond(c, err, "CALLBACK_ERROR")
		return
	}
	cl := apperr.Classify(err, "CALLBACK_ERROR")
	q := url.Values{"error": {cl.Code}, "message": {cl.Message}}
	c.Redirect(http.StatusFound, h.frontendURL+"/callback?"+q.Encode())
}

// Status reports whether the stored credential is usable, refreshing it when
// needed.
// GET /api/auth/status?email=
func (h *AuthHandler) Status(c *gin.Context) {
	resp, err := h.authUsecase.Status(c.Request.Context(), Email(c))
	if err != nil {
		apperr.Respond(c, err, "STATUS_CHECK_ERROR")
		return
	}
	c.JSON(http.StatusOK, resp)
}

// POST /api/auth/logout {email}
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := h.authUsecase.Logout(Email(c)); err != nil {
		apperr.Respond(c, err, "LOGOUT_ERROR")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Logged out successfully"})
}

// POST /api/auth/refresh {email}
func (h *AuthHandler) Refresh(c *gin.Context) {
	token, err := h.authUsecase.Refresh(c.Request.Context(), Email(c))
	if err != nil {
		apperr.Respond(c, err, "REFRESH_ERROR")
		return
	}
	c.JSON(http.StatusOK, authdto.RefreshResponse{
		Success: true,
		Message: "Token refreshed successfully",
		Token:   token,
	})
}

// GET /api/gmail/test?email=
func (h *AuthHandler) TestConnection(c *gin.Context) {
	resp, err := h.authUsecase.TestConnection(c.Request.Context(), Email(c))
	if err != nil {
		apperr.Respond(c, err, "CONNECTION_TEST_ERROR")
		return
	}
	c.JSON(http.StatusOK, resp)
}

// POST /api/auth/imap
func (h *AuthHandler) ConnectIMAP(c *gin.Context) {
	var req authdto.IMAPConnectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Respond(c, fmt.Errorf("%w: %v", apperr.ErrInvalidRequest, err), "INVALID_REQUEST")
		return
	}
	user, err := h.authUsecase.ConnectIMAP(c.Request.Context(), &req)
	if err != nil {
		apperr.Respond(c, err, "IMAP_CONNECT_ERROR")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "user": user})
}

// POST /api/auth/devices
func (h *AuthHandler) RegisterDevice(c *gin.Context) {
	var req authdto.RegisterDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Respond(c, fmt.Errorf("%w: %v", apperr.ErrInvalidRequest, err), "INVALID_REQUEST")
		return
	}
	if err := h.authUsecase.RegisterDevice(req.Email, req.Token, req.DeviceInfo); err != nil {
		apperr.Respond(c, err, "DEVICE_REGISTER_ERROR")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// DELETE /api/auth/devices
func (h *AuthHandler) UnregisterDevice(c *gin.Context) {
	var req authdto.UnregisterDeviceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperr.Respond(c, fmt.Errorf("%w: %v", apperr.ErrInvalidRequest, err), "INVALID_REQUEST")
		return
	}
	if err := h.authUsecase.UnregisterDevice(req.Email, req.Token); err != nil {
		apperr.Respond(c, err, "DEVICE_UNREGISTER_ERROR")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
