// ABOUTME: Tests for endpoint and product resolution and exit code mapping
// ABOUTME: Checks precedence order, URL normalisation and status to exit code table

package cli

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/2389/irma/internal/client"
)

func envOf(m map[string]string) func(string) string {
	return func(k string) string { return m[k] }
}

func TestResolveBaseURL(t *testing.T) {
	tests := []struct {
		name   string
		flag   string
		env    string
		stored string
		want   string
	}{
		{"fallback", "", "", "", "https://localhost:5001/"},
		{"stored", "", "", "https://stored.example.com", "https://stored.example.com/"},
		{"env beats stored", "", "https://env.example.com", "https://stored.example.com", "https://env.example.com/"},
		{"flag beats env", "https://flag.example.com:8443", "https://env.example.com", "", "https://flag.example.com:8443/"},
		{"path dropped", "https://flag.example.com/api/v1?x=1", "", "", "https://flag.example.com/"},
		{"invalid flag skipped", "not a url", "https://env.example.com", "", "https://env.example.com/"},
		{"relative stored skipped", "", "", "/relative", "https://localhost:5001/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := &State{Defaults: map[string]string{}}
			if tt.stored != "" {
				state.Defaults["base-url"] = tt.stored
			}
			got := ResolveBaseURL(tt.flag, envOf(map[string]string{BaseURLEnv: tt.env}), state)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResolveProduct(t *testing.T) {
	state := &State{Defaults: map[string]string{}}
	assert.Equal(t, "", ResolveProduct("", state))

	state.Defaults["product"] = "Stored/1.0"
	assert.Equal(t, "Stored/1.0", ResolveProduct("", state))
	assert.Equal(t, "Flag/2.0", ResolveProduct("  Flag/2.0 ", state))
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, ExitOK},
		{errors.New("boom"), ExitFailure},
		{failf("nope"), ExitFailure},
		{&client.APIError{StatusCode: http.StatusBadRequest}, ExitValidation},
		{&client.APIError{StatusCode: http.StatusUnauthorized}, ExitUnauthorized},
		{&client.APIError{StatusCode: http.StatusForbidden}, ExitForbidden},
		{&client.APIError{StatusCode: http.StatusNotFound}, ExitNotFound},
		{fmt.Errorf("wrapped: %w", &client.APIError{StatusCode: http.StatusConflict}), ExitConflict},
		{&client.APIError{StatusCode: http.StatusServiceUnavailable}, ExitFailure},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, ExitCode(tt.err), "%v", tt.err)
	}
}
