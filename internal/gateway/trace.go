// ABOUTME: Request trace ids and access logging middleware
// ABOUTME: Honours an incoming X-Trace-Id or mints a UUID, echoing it on the response

package gateway

import (
	"context"
	"net/http"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/2389/irma/internal/auth"
)

// TraceHeader carries the request trace id in both directions.
const TraceHeader = "X-Trace-Id"

var validTraceID = regexp.MustCompile(`^[A-Za-z0-9._:\-]{1,128}$`)

// requestRecord is shared by the trace middleware and the handler chain below it,
// so the access log can name a caller that only the auth middleware knows.
type requestRecord struct {
	traceID string
	caller  string
}

type requestRecordKey struct{}

// TraceID returns the trace id stored on ctx, or "" when none is set.
func TraceID(ctx context.Context) string {
	if rr, ok := ctx.Value(requestRecordKey{}).(*requestRecord); ok {
		return rr.traceID
	}
	return ""
}

// recordCaller notes the authenticated subject for the access log.
// It must run inside the auth middleware.
func recordCaller(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if rr, ok := r.Context().Value(requestRecordKey{}).(*requestRecord); ok {
			rr.caller = auth.Subject(r.Context())
		}
		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the status code while still allowing streaming.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(code int) {
	if s.status == 0 {
		s.status = code
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	if s.status == 0 {
		s.status = http.StatusOK
	}
	return s.ResponseWriter.Write(b)
}

// Flush forwards to the underlying writer so event streams are not buffered.
func (s *statusRecorder) Flush() {
	if f, ok := s.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap exposes the underlying writer to http.ResponseController.
func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}

// withTrace assigns a trace id to every request and logs completed requests.
func (g *Gateway) withTrace(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := r.Header.Get(TraceHeader)
		if !validTraceID.MatchString(traceID) {
			traceID = uuid.New().String()
		}
		w.Header().Set(TraceHeader, traceID)

		rec := &statusRecorder{ResponseWriter: w}
		record := &requestRecord{traceID: traceID}
		start := time.Now()
		next.ServeHTTP(rec, r.WithContext(context.WithValue(r.Context(), requestRecordKey{}, record)))

		g.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
			"trace_id", traceID,
			"caller", record.caller,
		)
	})
}
