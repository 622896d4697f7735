// Package client is a typed HTTP client for the irma conversation API.
//
// It covers the six remote operations: creating and reading conversations,
// appending a turn with a JSON or an event-stream response, and reading the
// gateway's health and version. Non-2xx responses surface as *APIError so
// callers can branch on the status code or the error body's code.
//
// Streamed turns are read through a Stream:
//
//	stream, err := c.ChatStream(ctx, id, &client.ChatRequest{Message: "Hello"})
//	if err != nil {
//	    return err
//	}
//	defer stream.Close()
//	for {
//	    ev, err := stream.Next()
//	    if errors.Is(err, io.EOF) {
//	        break
//	    }
//	    ...
//	}
package client
