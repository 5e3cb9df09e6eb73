package middleware

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/httprate"
)

const rateLimitMessage = "Too many requests. Try again later."

// RateLimit limits each client IP to requestsPerMinute over a sliding
// window. Rejected requests get a 429 in the standard error envelope.
func RateLimit(requestsPerMinute int) func(http.Handler) http.Handler {
	return httprate.Limit(
		requestsPerMinute,
		time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(limitExceeded),
	)
}

// RateLimitByToken limits each bearer token to requestsPerMinute. Requests
// without a bearer token share their IP's bucket.
func RateLimitByToken(requestsPerMinute int) func(http.Handler) http.Handler {
	return httprate.Limit(
		requestsPerMinute,
		time.Minute,
		httprate.WithKeyFuncs(tokenKey),
		httprate.WithLimitHandler(limitExceeded),
	)
}

func tokenKey(r *http.Request) (string, error) {
	if tok, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok && tok != "" {
		return "token:" + tok, nil
	}
	ip, err := httprate.KeyByIP(r)
	return "ip:" + ip, err
}

func limitExceeded(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusTooManyRequests, rateLimitMessage)
}
