package config

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// PasswordConfig holds configuration for password hashing and verification.
type PasswordConfig struct {
	BcryptCost int
	Pepper     string // optional global secret for additional security
}

// NewPasswordConfig creates a password configuration from the loaded settings.
// BCRYPT_COST defaults to 12 and must stay within 10-14.
func NewPasswordConfig(cfg *Config) (*PasswordConfig, error) {
	config := &PasswordConfig{
		BcryptCost: cfg.BcryptCost,
		Pepper:     cfg.PasswordPepper,
	}

	if err := config.normalize(); err != nil {
		return nil, err
	}

	return config, nil
}

// normalize validates the configuration.
func (c *PasswordConfig) normalize() error {
	if c.BcryptCost < 10 || c.BcryptCost > 14 {
		return fmt.Errorf("bcrypt cost out of range: %d (must be 10-14)", c.BcryptCost)
	}
	return nil
}

// HashPassword hashes a password using bcrypt (with optional pepper).
func (c *PasswordConfig) HashPassword(pw string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(c.pepper(pw)), c.BcryptCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// VerifyPassword verifies a password against a stored hash (with optional pepper).
func (c *PasswordConfig) VerifyPassword(pw, storedHash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(c.pepper(pw))) == nil
}

func (c *PasswordConfig) pepper(pw string) string {
	if c.Pepper == "" {
		return pw
	}
	return pw + c.Pepper
}

// AdminCredentials is the single admin account allowed to sign in.
type AdminCredentials struct {
	Email        string
	PasswordHash string
}

// NewAdminCredentials resolves the admin account. ADMIN_PASSWORD_HASH is used
// as-is; otherwise ADMIN_PASSWORD is hashed once at startup.
func NewAdminCredentials(cfg *Config, pw *PasswordConfig) (*AdminCredentials, error) {
	if cfg.AdminEmail == "" {
		return nil, fmt.Errorf("ADMIN_EMAIL is required but not set")
	}
	if cfg.AdminPasswordHash != "" {
		return &AdminCredentials{Email: cfg.AdminEmail, PasswordHash: cfg.AdminPasswordHash}, nil
	}
	if cfg.AdminPassword == "" {
		return nil, fmt.Errorf("ADMIN_PASSWORD or ADMIN_PASSWORD_HASH is required")
	}
	hash, err := pw.HashPassword(cfg.AdminPassword)
	if err != nil {
		return nil, err
	}
	return &AdminCredentials{Email: cfg.AdminEmail, PasswordHash: hash}, nil
}
