package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"

	"github.com/BradenHooton/stylebook/internal/metrics"
	pkghttp "github.com/BradenHooton/stylebook/pkg/http"
)

// RateLimitConfig holds the coarse per-IP limit applied to public read endpoints.
type RateLimitConfig struct {
	Name              string // metric label
	RequestsPerMinute int
}

// DefaultPublicReadLimit returns the limit for catalog and availability reads.
func DefaultPublicReadLimit() RateLimitConfig {
	return RateLimitConfig{
		Name:              "public_read",
		RequestsPerMinute: 120,
	}
}

// RateLimitByClientIP limits requests per resolved client IP. The key comes
// from the same resolver the booking and AI limiters use, so X-Forwarded-For
// from an untrusted peer cannot rotate the bucket.
func RateLimitByClientIP(resolver *pkghttp.ClientIPResolver, config RateLimitConfig) func(next http.Handler) http.Handler {
	if config.RequestsPerMinute <= 0 {
		config.RequestsPerMinute = DefaultPublicReadLimit().RequestsPerMinute
	}
	if config.Name == "" {
		config.Name = DefaultPublicReadLimit().Name
	}

	return httprate.Limit(
		config.RequestsPerMinute,
		1*time.Minute,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			return resolver.FromRequest(r), nil
		}),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			metrics.RecordRejection(config.Name)
			pkghttp.WriteTooManyRequests(w, "Too many requests")
		}),
	)
}
