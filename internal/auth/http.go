// ABOUTME: HTTP middleware for JWT authentication on API endpoints
// ABOUTME: Extracts JWT from Authorization header, checks scope and adds identity to context

package auth

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
)

// ErrorWriter renders an authentication failure. code is "Unauthorized" or "Forbidden".
type ErrorWriter func(w http.ResponseWriter, r *http.Request, status int, code, message string)

// extractBearerToken extracts a bearer token from the Authorization header.
// Returns the token and an error message (empty if successful).
func extractBearerToken(authHeader string) (string, string) {
	if authHeader == "" {
		return "", "missing authorization header"
	}
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", "invalid authorization header format"
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", "empty token"
	}
	return token, ""
}

// defaultErrorWriter mirrors the plain JSON body used when no writer is supplied.
func defaultErrorWriter(w http.ResponseWriter, _ *http.Request, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"code": code, "message": message})
}

// HTTPAuthMiddleware creates an HTTP middleware that requires a valid bearer token.
// Missing, malformed or expired tokens are rejected with 401. When requiredScope is
// non-empty a token lacking it is rejected with 403.
func HTTPAuthMiddleware(verifier TokenVerifier, requiredScope string, onError ErrorWriter) func(http.Handler) http.Handler {
	if onError == nil {
		onError = defaultErrorWriter
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, errMsg := extractBearerToken(r.Header.Get("Authorization"))
			if errMsg != "" {
				onError(w, r, http.StatusUnauthorized, "Unauthorized", errMsg)
				return
			}

			claims, err := verifier.Verify(token)
			if err != nil {
				msg := "invalid token"
				if errors.Is(err, ErrExpiredToken) {
					msg = "token expired"
				}
				onError(w, r, http.StatusUnauthorized, "Unauthorized", msg)
				return
			}

			if requiredScope != "" && !claims.HasScope(requiredScope) {
				onError(w, r, http.StatusForbidden, "Forbidden", "token lacks required scope '"+requiredScope+"'")
				return
			}

			next.ServeHTTP(w, r.WithContext(ContextWithClaims(r.Context(), claims)))
		})
	}
}
