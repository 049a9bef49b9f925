// Package types provides type definitions for the structured data shared across the hiretrack system.
package types

import (
	"github.com/go-playground/validator/v10"
)

// RoleAdmin is the only role a session token can carry.
const RoleAdmin = "admin"

// LoginRequest represents the admin login request.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// AdminUser is the identity encoded in an admin session token.
type AdminUser struct {
	Email string `json:"email"`
	Role  string `json:"role"`
}

// LoginResponse represents the login response with the admin identity and a session token.
type LoginResponse struct {
	Token string     `json:"token"`
	User  *AdminUser `json:"user"`
}

// Validate validates the LoginRequest using the validator.
func (r *LoginRequest) Validate() error {
	validate := validator.New()
	return validate.Struct(r)
}
