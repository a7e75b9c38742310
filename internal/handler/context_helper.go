package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/slotswap-availability/internal/middleware"
	"github.com/noah-isme/slotswap-availability/internal/models"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

// subjectFromContext builds the caller's subject, keeping their token for upstream calls.
func subjectFromContext(c *gin.Context) models.Subject {
	claims := claimsFromContext(c)
	if claims == nil {
		return models.Subject{}
	}
	return models.Subject{
		UserID: claims.Identity(),
		Email:  claims.Email,
		Token:  c.GetString(middleware.ContextTokenKey),
	}
}
