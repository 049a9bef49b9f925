package server

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/jonathan/hiretrack/internal/config"
	"github.com/jonathan/hiretrack/internal/server/middleware"
	"github.com/jonathan/hiretrack/internal/types"
)

// AuthHandler handles admin sign-in.
type AuthHandler struct {
	admin      *config.AdminCredentials
	passwords  *config.PasswordConfig
	jwtService *JWTService
}

// NewAuthHandler creates a new AuthHandler with the given dependencies.
func NewAuthHandler(admin *config.AdminCredentials, passwords *config.PasswordConfig, jwtService *JWTService) *AuthHandler {
	return &AuthHandler{admin: admin, passwords: passwords, jwtService: jwtService}
}

// authenticate checks the credentials against the configured admin account.
func (h *AuthHandler) authenticate(req *types.LoginRequest) (*types.AdminUser, error) {
	emailOK := strings.EqualFold(strings.TrimSpace(req.Email), h.admin.Email)
	// bcrypt runs even when the email does not match
	passwordOK := h.passwords.VerifyPassword(req.Password, h.admin.PasswordHash)
	if !emailOK || !passwordOK {
		return nil, &ErrInvalidCredentials{}
	}
	return &types.AdminUser{Email: h.admin.Email, Role: types.RoleAdmin}, nil
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req types.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if err := req.Validate(); err != nil {
		writeErr(w, validationError(err))
		return
	}

	user, err := h.authenticate(&req)
	if err != nil {
		log.Printf("[auth] failed login for %q from %s", req.Email, r.RemoteAddr)
		writeErr(w, err)
		return
	}

	token, err := h.jwtService.GenerateToken(user)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to generate token")
		return
	}
	writeJSON(w, http.StatusOK, types.LoginResponse{Token: token, User: user})
}

// Me handles GET /api/auth/me.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	id, err := middleware.GetIdentity(r)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "Unauthorized")
		return
	}
	writeJSON(w, http.StatusOK, types.AdminUser{Email: id.GetEmail(), Role: id.GetRole()})
}
