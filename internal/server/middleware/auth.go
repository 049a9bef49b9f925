// Package middleware provides HTTP middleware for admin authentication.
package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

// ContextKey is a typed key for context values to avoid collisions.
type ContextKey string

const identityKey ContextKey = "identity"

// ErrNoIdentity is returned by GetIdentity on unauthenticated requests.
var ErrNoIdentity = errors.New("identity not found in request context")

// Identity is what a validated session token asserts about its holder.
type Identity interface {
	GetEmail() string
	GetRole() string
}

// TokenValidator validates bearer tokens. The server's JWT service implements it
// through an adapter so this package does not import the server.
type TokenValidator interface {
	ValidateToken(tokenString string) (Identity, error)
}

// AuthMiddleware rejects requests without a valid bearer token, and tokens whose role is
// not one of roles (any role when roles is empty). The identity is stored in the context.
func AuthMiddleware(validator TokenValidator, roles ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, ok := bearerToken(r.Header.Get("Authorization"))
			if !ok {
				deny(w, http.StatusUnauthorized, "Unauthorized")
				return
			}

			id, err := validator.ValidateToken(token)
			if err != nil {
				deny(w, http.StatusUnauthorized, "Unauthorized")
				return
			}
			if len(roles) > 0 && !hasRole(id.GetRole(), roles) {
				deny(w, http.StatusForbidden, "Forbidden")
				return
			}

			ctx := context.WithValue(r.Context(), identityKey, id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetIdentity returns the authenticated identity of the request.
func GetIdentity(r *http.Request) (Identity, error) {
	id, ok := r.Context().Value(identityKey).(Identity)
	if !ok || id == nil {
		return nil, ErrNoIdentity
	}
	return id, nil
}

// WithIdentity returns a copy of ctx carrying id.
func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, identityKey, id)
}

// bearerToken parses "Bearer <token>", case-insensitively on the scheme.
func bearerToken(header string) (string, bool) {
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	return parts[1], true
}

func hasRole(role string, roles []string) bool {
	for _, r := range roles {
		if r == role {
			return true
		}
	}
	return false
}

func deny(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
