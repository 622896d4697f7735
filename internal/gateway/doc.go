// Package gateway serves the irma conversation API over HTTP.
//
// # Routes
//
//	POST /conversations                     create, 201
//	GET  /conversations/{id}                read with messages, 200 or 404
//	POST /conversations/{id}/chat           append a turn, 200, 404 or 409
//	POST /conversations/{id}/chat-stream    append a turn, reply as an event stream
//	GET  /conversations/{id}/watch          follow committed turns as an event stream
//	GET  /healthz                           dependency health, 200 or 503
//	GET  /version                           build metadata
//
// The routing table lives in routes.go. Conversation routes require a bearer
// token when auth.jwt_secret is configured; /healthz and /version never do.
//
// # Errors
//
// Every error body is {code, message, traceId}. Codes are Validation,
// Unauthorized, Forbidden, NotFound, Conflict and Unexpected. Each request
// carries a trace id taken from X-Trace-Id or freshly generated, and the id
// is echoed in the X-Trace-Id response header.
//
// # Streaming
//
// chat-stream commits the turn before writing anything. A successful turn
// produces one data event with the assistant message followed by an end
// event. A conversation that is not Active produces a single error event and
// no end event.
package gateway
