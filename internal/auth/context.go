// ABOUTME: Carries verified token claims on a request context
// ABOUTME: Lets handlers and the service logs name the caller of a request

package auth

import "context"

type claimsKey struct{}

// ContextWithClaims returns a copy of ctx carrying the verified claims.
func ContextWithClaims(ctx context.Context, c *Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, c)
}

// ClaimsFromContext returns the claims placed by HTTPAuthMiddleware.
// ok is false on unauthenticated requests, including every request when auth is off.
func ClaimsFromContext(ctx context.Context) (c *Claims, ok bool) {
	c, ok = ctx.Value(claimsKey{}).(*Claims)
	return c, ok && c != nil
}

// Subject names the caller of ctx, or "" for unauthenticated requests.
func Subject(ctx context.Context) string {
	if c, ok := ClaimsFromContext(ctx); ok {
		return c.Subject
	}
	return ""
}
