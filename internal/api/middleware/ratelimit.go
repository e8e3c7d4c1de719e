package middleware

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/clothai/clothai/internal/api/response"
	"github.com/clothai/clothai/internal/cache"
)

const (
	// limitWindow is the fixed counting window. The Redis counter expires
	// with it, so the budget resets as a whole rather than sliding.
	limitWindow = time.Minute

	defaultRequestsPerWindow = 60
)

// RateLimit caps how many requests one API key may issue per window. The
// counter lives in Redis so every server instance draws from the same
// budget.
type RateLimit struct {
	cache cache.Cache
	limit int64
}

// NewRateLimit creates the limiter. A non-positive limit falls back to the
// default.
func NewRateLimit(c cache.Cache, requestsPerWindow int) *RateLimit {
	if requestsPerWindow <= 0 {
		requestsPerWindow = defaultRequestsPerWindow
	}
	return &RateLimit{cache: c, limit: int64(requestsPerWindow)}
}

// Limit counts the request against the key bucket Authenticate stamped.
// A request without a bucket, or one the counter cannot reach Redis for,
// passes through: the limiter shields the synthesis provider and must not
// become an outage of its own.
func (rl *RateLimit) Limit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		bucket, ok := getClientKey(r)
		if !ok {
			next.ServeHTTP(w, r)
			return
		}

		count, err := rl.cache.IncrWithExpiry(r.Context(), cache.RateLimitKey(bucket), limitWindow)
		if err != nil {
			requestID, _ := GetRequestID(r)
			slog.Warn("rate limit counter unavailable, admitting request",
				"request_id", requestID, "error", err)
			next.ServeHTTP(w, r)
			return
		}

		remaining := rl.limit - count
		if remaining < 0 {
			remaining = 0
		}
		w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(rl.limit, 10))
		w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(limitWindow).Unix(), 10))

		if count > rl.limit {
			w.Header().Set("Retry-After", strconv.Itoa(int(limitWindow.Seconds())))
			response.Error(w, http.StatusTooManyRequests,
				"RATE_LIMIT_EXCEEDED", "Too many requests", nil)
			return
		}

		next.ServeHTTP(w, r)
	})
}
