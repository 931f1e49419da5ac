package api

import (
	"net/http"
	"time"

	authdelivery "certhub-backend/internal/auth/delivery"
	"certhub-backend/pkg/apperr"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(r *gin.Engine, h *Handler) {
	requireEmail := authdelivery.RequireEmail()

	api := r.Group("/api")
	{
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": "ok", "timestamp": time.Now().UTC()})
		})

		auth := api.Group("/auth")
		{
			auth.GET("/login", h.authHandler.Login)
			auth.GET("/callback", h.authHandler.Callback)
			auth.GET("/status", requireEmail, h.authHandler.Status)
			auth.POST("/logout", requireEmail, h.authHandler.Logout)
			auth.POST("/refresh", requireEmail, h.authHandler.Refresh)
			auth.POST("/imap", h.authHandler.ConnectIMAP)
			auth.POST("/devices", h.authHandler.RegisterDevice)
			auth.DELETE("/devices", h.authHandler.UnregisterDevice)
		}

		gmail := api.Group("/gmail", requireEmail)
		{
			gmail.POST("/sync", h.certHandler.Sync)
			gmail.GET("/certificates", h.certHandler.GetCertificates)
			gmail.GET("/stats", h.certHandler.GetStats)
			gmail.GET("/search", h.certHandler.SemanticSearch)
			gmail.GET("/test", h.authHandler.TestConnection)
			gmail.POST("/watch", h.watchMailbox)
		}

		settings := api.Group("/settings")
		{
			settings.GET("/ai", h.settingsHandler.Get)
			settings.PUT("/ai", h.settingsHandler.Update)
			settings.POST("/ai/test", h.settingsHandler.Test)
		}
	}
}

// watchMailbox (re)registers Gmail push for one account.
// POST /api/gmail/watch {email}
func (h *Handler) watchMailbox(c *gin.Context) {
	if h.watchRegistrar == nil {
		apperr.Respond(c, apperr.ErrPushUnavailable, "WATCH_ERROR")
		return
	}
	if err := h.watchRegistrar.Watch(c.Request.Context(), authdelivery.Email(c)); err != nil {
		apperr.Respond(c, err, "WATCH_ERROR")
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "message": "Gmail push notifications enabled"})
}
