package middleware

import (
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/clothai/clothai/internal/api/response"
)

// Recovery turns a handler panic into a 500 response. The stack is logged
// under the request's correlation id so it can be matched to the access
// log line for the same request.
func Recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if v := recover(); v != nil {
				requestID, _ := GetRequestID(r)
				slog.Error("panic recovered",
					"request_id", requestID,
					"error", v,
					"method", r.Method,
					"path", r.URL.Path,
					"stack", string(debug.Stack()),
				)
				response.Error(w, http.StatusInternalServerError,
					"INTERNAL_ERROR", "An unexpected error occurred", nil)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
