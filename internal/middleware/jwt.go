package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/slotswap-availability/internal/models"
	appErrors "github.com/noah-isme/slotswap-availability/pkg/errors"
	"github.com/noah-isme/slotswap-availability/pkg/logger"
	"github.com/noah-isme/slotswap-availability/pkg/response"
)

const (
	// ContextUserKey is the gin context key storing JWT claims.
	ContextUserKey = "currentUser"
	// ContextTokenKey holds the raw bearer token so it can be forwarded upstream.
	ContextTokenKey = "bearerToken"
)

type tokenValidator interface {
	ValidateToken(token string) (*models.JWTClaims, error)
}

// JWT protects routes by requiring a valid access token.
func JWT(tokens tokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		token, ok := bearer(header)
		if !ok {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "invalid authorization header"))
			c.Abort()
			return
		}

		claims, err := tokens.ValidateToken(token)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(ContextUserKey, claims)
		c.Set(ContextTokenKey, token)
		c.Set(logger.UserIDKey, claims.Identity())
		c.Next()
	}
}

// UserKey keys rate limiting by the authenticated caller, falling back to nothing
// so the limiter uses the client address.
func UserKey(c *gin.Context) string {
	return c.GetString(logger.UserIDKey)
}

func bearer(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}
