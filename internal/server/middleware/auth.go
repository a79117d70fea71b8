// Package middleware provides HTTP middleware for resolving the caller
// identity from bearer tokens.
package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
)

// ContextKey is a typed key for context values to avoid collisions.
type ContextKey string

// callerIDKey is the context key for storing the authenticated caller ID.
const callerIDKey ContextKey = "callerID"

// TokenValidator validates a bearer token and exposes the caller it names.
// The indirection keeps this package free of the JWT implementation.
type TokenValidator interface {
	ValidateToken(tokenString string) (CallerIDGetter, error)
}

// CallerIDGetter extracts the caller ID from validated token claims.
type CallerIDGetter interface {
	GetCallerID() uuid.UUID
}

// Auth returns middleware that resolves the caller identity from the
// Authorization header exactly once, before any handler runs, and stores it
// in the request context. Handlers never re-derive the caller mid-request.
func Auth(validator TokenValidator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			// "Bearer" is matched case-insensitively.
			parts := strings.Fields(authHeader)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			tokenString := strings.TrimSpace(parts[1])
			if tokenString == "" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			claims, err := validator.ValidateToken(tokenString)
			if err != nil {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), callerIDKey, claims.GetCallerID())
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetCallerID extracts the authenticated caller ID from the request context.
func GetCallerID(r *http.Request) (uuid.UUID, error) {
	callerID, ok := r.Context().Value(callerIDKey).(uuid.UUID)
	if !ok {
		return uuid.Nil, fmt.Errorf("caller ID not found in request context")
	}
	return callerID, nil
}

// WithCallerID returns a context carrying the caller ID (for tests).
func WithCallerID(ctx context.Context, callerID uuid.UUID) context.Context {
	return context.WithValue(ctx, callerIDKey, callerID)
}
