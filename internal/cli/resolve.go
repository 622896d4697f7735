// ABOUTME: Endpoint and product resolution for client commands
// ABOUTME: Applies flag > environment > stored default > built-in precedence

package cli

import (
	"net/url"
	"strings"
)

// Resolution inputs.
const (
	BaseURLEnv     = "IRMA_BASE_URL"
	DefaultBaseURL = "https://localhost:5001"

	keyBaseURL = "base-url"
	keyProduct = "product"
)

// parseAbsoluteURL accepts only absolute URLs with a scheme and host.
func parseAbsoluteURL(raw string) (*url.URL, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, false
	}
	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return nil, false
	}
	return u, true
}

// normalizeBaseURL drops any path, query or fragment so requests address the root.
func normalizeBaseURL(u *url.URL) string {
	n := *u
	n.Path = "/"
	n.RawPath = ""
	n.RawQuery = ""
	n.Fragment = ""
	return n.String()
}

// ResolveBaseURL picks the gateway endpoint. Candidates that are not
// absolute URLs are skipped.
func ResolveBaseURL(flagValue string, getenv func(string) string, state *State) string {
	candidates := []string{flagValue, getenv(BaseURLEnv)}
	if stored, ok := state.Default(keyBaseURL); ok {
		candidates = append(candidates, stored)
	}
	for _, c := range candidates {
		if u, ok := parseAbsoluteURL(c); ok {
			return normalizeBaseURL(u)
		}
	}
	u, _ := url.Parse(DefaultBaseURL)
	return normalizeBaseURL(u)
}

// ResolveProduct returns the explicit product, else the stored default, else "".
func ResolveProduct(flagValue string, state *State) string {
	if p := strings.TrimSpace(flagValue); p != "" {
		return p
	}
	if stored, ok := state.Default(keyProduct); ok {
		return strings.TrimSpace(stored)
	}
	return ""
}
