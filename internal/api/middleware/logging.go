package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
)

// responseTap records the status code and body size a handler produced so
// the access log can report them.
type responseTap struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (t *responseTap) WriteHeader(code int) {
	t.status = code
	t.ResponseWriter.WriteHeader(code)
}

func (t *responseTap) Write(p []byte) (int, error) {
	n, err := t.ResponseWriter.Write(p)
	t.bytes += n
	return n, err
}

// Logger assigns every request a correlation id and emits one structured
// line when the handler returns. The id is stamped into the context before
// the rest of the chain runs, so auth failures and recovered panics carry
// it too.
func Logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := uuid.New().String()
		r = r.WithContext(setRequestID(r.Context(), requestID))

		start := time.Now()
		tap := &responseTap{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(tap, r)

		slog.Info("request",
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"status", tap.status,
			"bytes", tap.bytes,
			"duration_ms", time.Since(start).Milliseconds(),
			"remote_addr", r.RemoteAddr,
		)
	})
}
