// ABOUTME: Tests for HTTP authentication middleware
// ABOUTME: Covers token extraction, validation, expiry and scope enforcement

package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serveWithAuth(t *testing.T, scope, header string) (*httptest.ResponseRecorder, *Claims) {
	t.Helper()

	verifier := newTestVerifier(t)
	var gotAuth *Claims
	handler := HTTPAuthMiddleware(verifier, scope, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth, _ = ClaimsFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/conversations", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec, gotAuth
}

func TestHTTPAuthMiddleware_ValidToken(t *testing.T) {
	token, err := newTestVerifier(t).Generate("user-123", []string{"conversations"}, time.Hour)
	require.NoError(t, err)

	rec, authCtx := serveWithAuth(t, "conversations", "Bearer "+token)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, authCtx)
	assert.Equal(t, "user-123", authCtx.Subject)
	assert.Equal(t, []string{"conversations"}, authCtx.Scopes)
}

func TestHTTPAuthMiddleware_Unauthorized(t *testing.T) {
	expired, err := newTestVerifier(t).Generate("user-123", nil, -time.Minute)
	require.NoError(t, err)

	tests := []struct {
		name    string
		header  string
		message string
	}{
		{"missing header", "", "missing authorization header"},
		{"wrong scheme", "Basic abc", "invalid authorization header format"},
		{"empty token", "Bearer ", "empty token"},
		{"garbage", "Bearer garbage", "invalid token"},
		{"expired", "Bearer " + expired, "token expired"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, authCtx := serveWithAuth(t, "", tt.header)
			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Contains(t, rec.Body.String(), `"code":"Unauthorized"`)
			assert.Contains(t, rec.Body.String(), tt.message)
			assert.Nil(t, authCtx)
		})
	}
}

func TestHTTPAuthMiddleware_MissingScope(t *testing.T) {
	token, err := newTestVerifier(t).Generate("user-123", []string{"read"}, time.Hour)
	require.NoError(t, err)

	rec, authCtx := serveWithAuth(t, "conversations", "Bearer "+token)
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), `"code":"Forbidden"`)
	assert.Nil(t, authCtx)
}

func TestHTTPAuthMiddleware_CustomErrorWriter(t *testing.T) {
	var gotStatus int
	var gotCode string
	writer := func(w http.ResponseWriter, r *http.Request, status int, code, message string) {
		gotStatus, gotCode = status, code
		w.WriteHeader(status)
	}

	handler := HTTPAuthMiddleware(newTestVerifier(t), "", writer)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler must not run")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusUnauthorized, gotStatus)
	assert.Equal(t, "Unauthorized", gotCode)
}
