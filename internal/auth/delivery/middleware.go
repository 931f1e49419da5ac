package delivery

import (
	"strings"

	authdto "certhub-backend/internal/auth/dto"
	"certhub-backend/pkg/apperr"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
)

const emailKey = "email"

// RequireEmail resolves the account email from the query string or, for
// requests with a JSON body, from its "email" field. The body is cached so
// handlers can bind it again.
func RequireEmail() gin.HandlerFunc {
	return func(c *gin.Context) {
		email := strings.TrimSpace(c.Query("email"))
		if email == "" && c.Request.ContentLength != 0 && c.Request.Body != nil {
			var req authdto.EmailRequest
			if err := c.ShouldBindBodyWith(&req, binding.JSON); err == nil {
				email = strings.TrimSpace(req.Email)
			}
		}
		if email == "" {
			apperr.Respond(c, apperr.ErrEmailRequired, "EMAIL_REQUIRED")
			c.Abort()
			return
		}

		c.Set(emailKey, strings.ToLower(email))
		c.Next()
	}
}

// Email returns the address stored by RequireEmail.
func Email(c *gin.Context) string {
	return c.GetString(emailKey)
}
