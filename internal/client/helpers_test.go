// ABOUTME: Shared helpers for client tests
// ABOUTME: Signs short-lived bearer tokens against a test secret

package client

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/2389/irma/internal/auth"
)

func signToken(t *testing.T, secret string) string {
	t.Helper()
	v, err := auth.NewJWTVerifier([]byte(secret))
	require.NoError(t, err)
	token, err := v.Generate("client-test", nil, time.Hour)
	require.NoError(t, err)
	return token
}
