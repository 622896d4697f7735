// ABOUTME: Explicit routing table mapping method and path patterns to handlers
// ABOUTME: Applies trace-id and optional bearer-auth middleware per route

package gateway

import (
	"net/http"

	"github.com/2389/irma/internal/auth"
)

// route is one entry of the routing table.
type route struct {
	pattern string
	handler http.HandlerFunc
	// protected routes require a bearer token when auth is enabled
	protected bool
}

func (g *Gateway) routes() []route {
	return []route{
		{"POST /conversations", g.handleCreateConversation, true},
		{"GET /conversations/{id}", g.handleGetConversation, true},
		{"POST /conversations/{id}/chat", g.handleChat, true},
		{"POST /conversations/{id}/chat-stream", g.handleChatStream, true},
		{"GET /conversations/{id}/watch", g.handleWatch, true},
		{"GET /healthz", g.handleHealth, false},
		{"GET /version", g.handleVersion, false},
	}
}

// Handler builds the HTTP handler serving every route.
func (g *Gateway) Handler() http.Handler {
	mux := http.NewServeMux()

	var requireAuth func(http.Handler) http.Handler
	if g.verifier != nil {
		requireAuth = auth.HTTPAuthMiddleware(g.verifier, g.config.Auth.RequiredScope, g.writeAuthError)
	}

	for _, rt := range g.routes() {
		var h http.Handler = rt.handler
		if rt.protected && requireAuth != nil {
			h = requireAuth(recordCaller(h))
		}
		mux.Handle(rt.pattern, h)
	}

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		g.writeError(w, r, http.StatusNotFound, CodeNotFound, "No route matches "+r.Method+" "+r.URL.Path+".")
	})

	return g.withTrace(mux)
}
