package fdsntest

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// statusWriter captures the status code and size of a response.
type statusWriter struct {
	http.ResponseWriter
	status  int
	written int64
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.written += int64(n)
	return n, err
}

// traceID returns the trace the client propagated in the traceparent header,
// or "" when there is none.
func traceID(r *http.Request) string {
	ctx := propagation.TraceContext{}.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return ""
	}
	return sc.TraceID().String()
}

func logRequest(log zerolog.Logger, r *http.Request, rec Request, written int64, duration time.Duration) {
	log.Debug().
		Str("request_id", middleware.GetReqID(r.Context())).
		Str("client_request_id", r.Header.Get("X-Request-Id")).
		Str("trace_id", rec.TraceID).
		Str("method", rec.Method).
		Str("path", rec.Path).
		Int("status", rec.Status).
		Int64("bytes", written).
		Dur("duration", duration).
		Str("user_agent", r.UserAgent()).
		Msg("fdsntest request")
}
