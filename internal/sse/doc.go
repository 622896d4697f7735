// Package sse implements the event-stream wire format used by the chat-stream
// endpoint.
//
// A frame is an optional "event: <name>" line, one "data: <line>" line per
// payload line and a blank line:
//
//	event: end
//	data: {"conversationId":"...","messages":[]}
//
// The names "error" and "end" are reserved. A Decoder stops at "end" and never
// reads the bytes that follow it. A stream that closes mid-frame loses only
// the partial frame.
package sse
