package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewPasswordConfig(t *testing.T) {
	tests := []struct {
		name    string
		cost    int
		wantErr bool
	}{
		{"default cost", 12, false},
		{"lowest cost", 10, false},
		{"highest cost", 14, false},
		{"cost too low", 9, true},
		{"cost too high", 15, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := New()
			cfg.BcryptCost = tt.cost
			pw, err := NewPasswordConfig(cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.cost, pw.BcryptCost)
		})
	}
}

func TestHashAndVerifyPassword(t *testing.T) {
	pw := &PasswordConfig{BcryptCost: 10, Pepper: "pepper"}

	hash, err := pw.HashPassword("s3cret")
	require.NoError(t, err)
	assert.NotEqual(t, "s3cret", hash)

	assert.True(t, pw.VerifyPassword("s3cret", hash))
	assert.False(t, pw.VerifyPassword("wrong", hash))

	noPepper := &PasswordConfig{BcryptCost: 10}
	assert.False(t, noPepper.VerifyPassword("s3cret", hash), "pepper must be part of the hash input")
}

func TestNewAdminCredentials(t *testing.T) {
	pw := &PasswordConfig{BcryptCost: 10}

	t.Run("hash wins", func(t *testing.T) {
		cfg := New()
		cfg.AdminEmail = "admin@example.com"
		cfg.AdminPassword = "ignored"
		cfg.AdminPasswordHash = "$2a$10$precomputed"

		creds, err := NewAdminCredentials(cfg, pw)
		require.NoError(t, err)
		assert.Equal(t, "$2a$10$precomputed", creds.PasswordHash)
	})

	t.Run("plain password is hashed", func(t *testing.T) {
		cfg := New()
		cfg.AdminEmail = "admin@example.com"
		cfg.AdminPassword = "letmein"

		creds, err := NewAdminCredentials(cfg, pw)
		require.NoError(t, err)
		assert.True(t, pw.VerifyPassword("letmein", creds.PasswordHash))
	})

	t.Run("missing email", func(t *testing.T) {
		cfg := New()
		cfg.AdminPassword = "letmein"
		_, err := NewAdminCredentials(cfg, pw)
		assert.Error(t, err)
	})

	t.Run("missing password", func(t *testing.T) {
		cfg := New()
		cfg.AdminEmail = "admin@example.com"
		_, err := NewAdminCredentials(cfg, pw)
		assert.Error(t, err)
	})
}
