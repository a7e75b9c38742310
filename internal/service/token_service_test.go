package service

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/slotswap-availability/internal/models"
	appErrors "github.com/noah-isme/slotswap-availability/pkg/errors"
)

func signToken(t *testing.T, method jwt.SigningMethod, key interface{}, claims models.JWTClaims) string {
	t.Helper()
	signed, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return signed
}

func TestTokenServiceAcceptsValidToken(t *testing.T) {
	svc := NewTokenService("secret")
	token := signToken(t, jwt.SigningMethodHS256, []byte("secret"), models.JWTClaims{
		UserID:           "user-1",
		Email:            "a@example.com",
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	})

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", claims.Identity())
	assert.Equal(t, "a@example.com", claims.Email)
}

func TestTokenServiceFallsBackToSubject(t *testing.T) {
	svc := NewTokenService("secret")
	token := signToken(t, jwt.SigningMethodHS256, []byte("secret"), models.JWTClaims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "user-7"},
	})

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-7", claims.Identity())
}

func TestTokenServiceRejects(t *testing.T) {
	svc := NewTokenService("secret")

	cases := map[string]string{
		"wrong secret": signToken(t, jwt.SigningMethodHS256, []byte("other"), models.JWTClaims{UserID: "u"}),
		"expired": signToken(t, jwt.SigningMethodHS256, []byte("secret"), models.JWTClaims{
			UserID:           "u",
			RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour))},
		}),
		"wrong method": signToken(t, jwt.SigningMethodHS512, []byte("secret"), models.JWTClaims{UserID: "u"}),
		"no identity":  signToken(t, jwt.SigningMethodHS256, []byte("secret"), models.JWTClaims{}),
		"garbage":      "not-a-token",
	}
	for name, token := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.ValidateToken(token)
			assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
		})
	}
}

func TestTokenServiceWithoutSecret(t *testing.T) {
	_, err := NewTokenService("").ValidateToken("x")
	assert.ErrorIs(t, err, appErrors.ErrNotConfigured)
}
