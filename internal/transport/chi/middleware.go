package chi

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/caremind-health/medfaq/internal/domain"
	"github.com/caremind-health/medfaq/internal/metrics"
	"github.com/caremind-health/medfaq/internal/ratelimit"
)

// exemptPaths are routes that bypass rate limiting (health, metrics).
var exemptPaths = map[string]struct{}{
	"/health":  {},
	"/metrics": {},
}

// RateLimitMiddleware returns a middleware that applies fixed-window
// admission control to all API routes, keyed by client address. Denied
// requests get 429 with a Retry-After hint.
func RateLimitMiddleware(limiter *ratelimit.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := exemptPaths[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			key := clientKey(r)
			if !limiter.Allow(key) {
				metrics.RateLimitedTotal.Inc()
				retryAfter := int(limiter.RetryAfter(key) / time.Second)
				if retryAfter < 1 {
					retryAfter = 1
				}
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				writeDomainError(w, fmt.Errorf("%w: retry after %ds", domain.ErrRateLimited, retryAfter))
				return
			}

			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(limiter.Remaining(key)))
			next.ServeHTTP(w, r)
		})
	}
}

// Recoverer is a recovery middleware that returns JSON instead of a
// plain text stacktrace. The /api/faq body stays a safe FAQResult.
func Recoverer(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rvr := recover(); rvr != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rvr),
						zap.Stack("stacktrace"),
					)
					SafeFAQError(w, r)
				}
			}()
			next.ServeHTTP(w, r)
		})
	}
}

// SafeFAQError is the 500 handler body for /api/faq: a valid FAQResult
// with a generic answer and no matches, never a raw error.
func SafeFAQError(w http.ResponseWriter, r *http.Request) {
	if strings.HasPrefix(r.URL.Path, "/api/faq") {
		writeJSON(w, http.StatusInternalServerError, map[string]any{
			"answer":  "Something went wrong while answering your question. Please try again later.",
			"matches": []any{},
		})
		return
	}
	writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
}
