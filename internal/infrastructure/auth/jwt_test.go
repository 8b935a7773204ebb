package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taxflow/backend/internal/infrastructure/config"
)

func newTestJWTService() *JWTService {
	return NewJWTService(config.JWTConfig{
		Secret:     "test-secret-key-at-least-32-chars",
		Issuer:     "test-issuer",
		Expiration: 15 * time.Minute,
	})
}

func TestNewJWTService(t *testing.T) {
	svc := newTestJWTService()
	assert.Equal(t, []byte("test-secret-key-at-least-32-chars"), svc.secret)
	assert.Equal(t, "test-issuer", svc.issuer)
	assert.Equal(t, 15*time.Minute, svc.GetExpiration())

	// a zero expiration falls back to one hour
	svc = NewJWTService(config.JWTConfig{Secret: "s", Issuer: "i"})
	assert.Equal(t, time.Hour, svc.GetExpiration())
}

func TestGenerateAndValidateToken(t *testing.T) {
	svc := newTestJWTService()
	tenantID := uuid.New()

	token, expiresAt, err := svc.GenerateToken(tenantID, "billing-host")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.WithinDuration(t, time.Now().Add(15*time.Minute), expiresAt, 5*time.Second)

	claims, err := svc.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, tenantID.String(), claims.TenantID)
	assert.Equal(t, "billing-host", claims.Subject)
	assert.Equal(t, "test-issuer", claims.Issuer)

	parsed, err := claims.GetTenantUUID()
	require.NoError(t, err)
	assert.Equal(t, tenantID, parsed)
}

func TestValidateAccessTokenRejections(t *testing.T) {
	svc := newTestJWTService()

	t.Run("garbage token", func(t *testing.T) {
		_, err := svc.ValidateAccessToken("not.a.token")
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("wrong secret", func(t *testing.T) {
		other := NewJWTService(config.JWTConfig{Secret: "a-completely-different-signing-key", Issuer: "test-issuer"})
		token, _, err := other.GenerateToken(uuid.New(), "host")
		require.NoError(t, err)

		_, err = svc.ValidateAccessToken(token)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})

	t.Run("expired token", func(t *testing.T) {
		expired := &Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    "test-issuer",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
				IssuedAt:  jwt.NewNumericDate(time.Now().Add(-time.Hour)),
			},
			TenantID: uuid.New().String(),
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, expired).SignedString(svc.secret)
		require.NoError(t, err)

		_, err = svc.ValidateAccessToken(token)
		assert.ErrorIs(t, err, ErrExpiredToken)
	})

	t.Run("not yet valid", func(t *testing.T) {
		future := &Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    "test-issuer",
				NotBefore: jwt.NewNumericDate(time.Now().Add(time.Hour)),
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(2 * time.Hour)),
			},
			TenantID: uuid.New().String(),
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, future).SignedString(svc.secret)
		require.NoError(t, err)

		_, err = svc.ValidateAccessToken(token)
		assert.ErrorIs(t, err, ErrTokenNotYetValid)
	})

	t.Run("missing tenant claim", func(t *testing.T) {
		anonymous := &Claims{
			RegisteredClaims: jwt.RegisteredClaims{
				Issuer:    "test-issuer",
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			},
		}
		token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, anonymous).SignedString(svc.secret)
		require.NoError(t, err)

		_, err = svc.ValidateAccessToken(token)
		assert.ErrorIs(t, err, ErrMissingTenantID)
	})

	t.Run("unexpected signing method", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{TenantID: uuid.New().String()})
		signed, err := token.SignedString(jwt.UnsafeAllowNoneSignatureType)
		require.NoError(t, err)

		_, err = svc.ValidateAccessToken(signed)
		assert.ErrorIs(t, err, ErrInvalidToken)
	})
}
