// Package auth provides bearer-token authentication for the irma gateway.
//
// Tokens are HS256 JWTs signed with the configured jwt_secret (at least
// MinSecretLength bytes). The "sub" claim names the caller and the optional
// space separated "scope" claim lists granted scopes.
//
// # HTTP Middleware
//
//	mw := auth.HTTPAuthMiddleware(verifier, "conversations", writeError)
//	mux.Handle("POST /conversations", mw(handler))
//
// Missing, invalid and expired tokens yield 401. A valid token without the
// required scope yields 403. On success the verified Claims are attached to the
// request context; Subject(ctx) names the caller.
package auth
