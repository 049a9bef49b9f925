package server

import (
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/hiretrack/internal/config"
	"github.com/jonathan/hiretrack/internal/types"
)

const testSecret = "test-secret-key-for-jwt-signing-minimum-32-bytes"

func setupTestJWTService(_ *testing.T, expirationHours int) *JWTService {
	return NewJWTService(&config.JWTConfig{Secret: testSecret, ExpirationHours: expirationHours})
}

var testAdmin = &types.AdminUser{Email: "admin@example.com", Role: types.RoleAdmin}

func TestJWTService_RoundTrip(t *testing.T) {
	service := setupTestJWTService(t, 24)

	token, err := service.GenerateToken(testAdmin)
	require.NoError(t, err)
	assert.Len(t, strings.Split(token, "."), 3)

	claims, err := service.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "admin@example.com", claims.Email)
	assert.Equal(t, types.RoleAdmin, claims.Role)
	assert.Equal(t, testAdmin, claims.User())

	id, err := service.AsTokenValidator().ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "admin@example.com", id.GetEmail())
	assert.Equal(t, types.RoleAdmin, id.GetRole())
}

func TestJWTService_Expiration(t *testing.T) {
	service := setupTestJWTService(t, 1)
	issued := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	service.now = func() time.Time { return issued }

	token, err := service.GenerateToken(testAdmin)
	require.NoError(t, err)

	claims, err := service.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, issued.Add(time.Hour).Unix(), claims.ExpiresAt.Unix())

	service.now = func() time.Time { return issued.Add(2 * time.Hour) }
	_, err = service.ValidateToken(token)
	require.Error(t, err)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestJWTService_Rejects(t *testing.T) {
	service := setupTestJWTService(t, 24)
	token, err := service.GenerateToken(testAdmin)
	require.NoError(t, err)

	other := NewJWTService(&config.JWTConfig{Secret: strings.Repeat("x", 40), ExpirationHours: 24})
	_, err = other.ValidateToken(token)
	assert.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)

	_, err = service.ValidateToken("")
	assert.Error(t, err)

	_, err = service.ValidateToken("not.a.jwt")
	assert.ErrorIs(t, err, jwt.ErrTokenMalformed)

	none := jwt.NewWithClaims(jwt.SigningMethodNone, &Claims{Email: "admin@example.com", Role: types.RoleAdmin})
	unsigned, err := none.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = service.ValidateToken(unsigned)
	assert.Error(t, err)
}

func TestJWTService_RequiresEmail(t *testing.T) {
	service := setupTestJWTService(t, 24)
	token, err := service.GenerateToken(&types.AdminUser{Role: types.RoleAdmin})
	require.NoError(t, err)

	_, err = service.ValidateToken(token)
	assert.Error(t, err)
}
