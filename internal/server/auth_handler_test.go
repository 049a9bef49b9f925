package server

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/hiretrack/internal/config"
	"github.com/jonathan/hiretrack/internal/server/middleware"
	"github.com/jonathan/hiretrack/internal/types"
)

// setupTestAuthHandler creates an AuthHandler for the test admin account.
func setupTestAuthHandler(t *testing.T) *AuthHandler {
	t.Helper()
	passwords := &config.PasswordConfig{BcryptCost: 4, Pepper: "pepper"}
	hash, err := passwords.HashPassword(adminPassword)
	require.NoError(t, err)
	return NewAuthHandler(
		&config.AdminCredentials{Email: adminEmail, PasswordHash: hash},
		passwords,
		setupTestJWTService(t, 1),
	)
}

func TestAuthHandler_Authenticate(t *testing.T) {
	h := setupTestAuthHandler(t)

	user, err := h.authenticate(&types.LoginRequest{Email: "  Admin@Example.com ", Password: adminPassword})
	require.NoError(t, err)
	assert.Equal(t, adminEmail, user.Email)
	assert.Equal(t, types.RoleAdmin, user.Role)

	_, err = h.authenticate(&types.LoginRequest{Email: adminEmail, Password: adminPassword + "x"})
	assert.IsType(t, &ErrInvalidCredentials{}, err)

	_, err = h.authenticate(&types.LoginRequest{Email: "someone@example.com", Password: adminPassword})
	assert.IsType(t, &ErrInvalidCredentials{}, err)
}

func TestAuthHandler_Login(t *testing.T) {
	h := setupTestAuthHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login",
		bytes.NewBufferString(`{"email":"admin@example.com","password":"correct horse battery staple"}`))
	w := httptest.NewRecorder()
	h.Login(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	resp := decode[types.LoginResponse](t, w)
	claims, err := h.jwtService.ValidateToken(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, adminEmail, claims.Email)
}

func TestAuthHandler_LoginInvalidBody(t *testing.T) {
	h := setupTestAuthHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewBufferString("not json"))
	w := httptest.NewRecorder()
	h.Login(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "Invalid request body", errorMessage(t, w))
}

func TestAuthHandler_Me(t *testing.T) {
	h := setupTestAuthHandler(t)

	w := httptest.NewRecorder()
	h.Me(w, httptest.NewRequest(http.MethodGet, "/api/auth/me", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req = req.WithContext(middleware.WithIdentity(req.Context(), &Claims{Email: adminEmail, Role: types.RoleAdmin}))
	w = httptest.NewRecorder()
	h.Me(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, types.AdminUser{Email: adminEmail, Role: types.RoleAdmin}, decode[types.AdminUser](t, w))
}
