package middleware

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/google/uuid"

	"github.com/textra-ai/textra/internal/api"
	"github.com/textra-ai/textra/internal/auth"
	"github.com/textra-ai/textra/internal/metrics"
	"github.com/textra-ai/textra/internal/ratelimit"
)

// UserRateLimit gates authenticated requests through the per-user
// minute/hour throttle. Successful requests get X-RateLimit-* headers for
// the most restrictive window; rejections get 429 with Retry-After.
// Must run after the auth middleware.
func UserRateLimit(limiter *ratelimit.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := auth.GetUserClaims(r.Context())
			if claims == nil {
				api.HandleError(w, api.ErrUnauthorized)
				return
			}
			userID, err := uuid.Parse(claims.UserID)
			if err != nil {
				api.HandleError(w, api.ErrUnauthorized)
				return
			}

			status, err := limiter.CheckAndIncrement(r.Context(), userID)
			setRateLimitHeaders(w, status)

			var exceeded *ratelimit.ExceededError
			if errors.As(err, &exceeded) {
				metrics.RateLimitRejectionsTotal.WithLabelValues(string(exceeded.Period)).Inc()
				w.Header().Set("Retry-After", strconv.FormatInt(exceeded.RetryAfter, 10))
				api.JSONErrorMessage(w, http.StatusTooManyRequests, exceeded.Error())
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func setRateLimitHeaders(w http.ResponseWriter, status ratelimit.Status) {
	info := status.MostRestrictive()
	w.Header().Set("X-RateLimit-Limit", strconv.FormatInt(info.Limit, 10))
	w.Header().Set("X-RateLimit-Remaining", strconv.FormatInt(info.Remaining, 10))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(info.ResetAt.Unix(), 10))
	w.Header().Set("X-RateLimit-Period", string(info.Period))
}
