package ratelimit

import (
	"net/http"
	"strconv"
	"time"

	"github.com/rs/zerolog"

	"github.com/smartlearn/shakeout-gateway/internal/common"
)

// Handler enforces the initiation rate limit before delegating downstream.
// Limiter errors fail open: a Redis hiccup must not block checkouts.
type Handler struct {
	Limiter Limiter
	Window  time.Duration
	Max     int
	Key     func(*http.Request) string
	Logger  zerolog.Logger
}

// ByClientIP keys the window on the caller's address.
func ByClientIP(r *http.Request) string {
	return common.ClientIP(r)
}

// Middleware wraps next with the sliding-window check.
func (h Handler) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		keyFn := h.Key
		if keyFn == nil {
			keyFn = ByClientIP
		}
		allowed, remaining, resetAt, err := h.Limiter.Allow(r.Context(), keyFn(r), h.Window, h.Max)
		if err != nil {
			h.Logger.Warn().Err(err).Msg("rate limiter unavailable, allowing request")
			next.ServeHTTP(w, r)
			return
		}

		headers := w.Header()
		headers.Set("X-RateLimit-Limit", strconv.Itoa(h.Max))
		headers.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		headers.Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))

		if !allowed {
			retryAfter := int(time.Until(resetAt).Seconds())
			if retryAfter < 0 {
				retryAfter = 0
			}
			headers.Set("Retry-After", strconv.Itoa(retryAfter))
			common.JSONError(w, http.StatusTooManyRequests, "RATE_LIMITED", "too many payment attempts, retry later", nil)
			return
		}

		next.ServeHTTP(w, r)
	})
}
