package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkghttp "github.com/BradenHooton/stylebook/pkg/http"
)

func newLimitedHandler(t *testing.T, perMinute int) http.Handler {
	t.Helper()
	resolver, err := pkghttp.NewClientIPResolver(pkghttp.DefaultTrustedProxies)
	require.NoError(t, err)

	return RateLimitByClientIP(resolver, RateLimitConfig{Name: "test", RequestsPerMinute: perMinute})(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}),
	)
}

func get(h http.Handler, remoteAddr, forwardedFor string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/public/services", nil)
	req.RemoteAddr = remoteAddr
	if forwardedFor != "" {
		req.Header.Set("X-Forwarded-For", forwardedFor)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestRateLimitByClientIP_EnforcesLimit(t *testing.T) {
	h := newLimitedHandler(t, 3)

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, get(h, "203.0.113.10:5000", "").Code, "request %d", i+1)
	}

	w := get(h, "203.0.113.10:5000", "")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var resp pkghttp.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "rate_limit_exceeded", resp.Error)
}

func TestRateLimitByClientIP_IsolatesClients(t *testing.T) {
	h := newLimitedHandler(t, 1)

	assert.Equal(t, http.StatusOK, get(h, "203.0.113.10:5000", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, get(h, "203.0.113.10:5000", "").Code)
	assert.Equal(t, http.StatusOK, get(h, "203.0.113.11:5000", "").Code)
}

func TestRateLimitByClientIP_SpoofedHeaderFromUntrustedPeer(t *testing.T) {
	h := newLimitedHandler(t, 1)

	assert.Equal(t, http.StatusOK, get(h, "203.0.113.10:5000", "198.51.100.1").Code)
	// A new forged value does not buy a fresh bucket.
	assert.Equal(t, http.StatusTooManyRequests, get(h, "203.0.113.10:5000", "198.51.100.2").Code)
}

func TestRateLimitByClientIP_TrustedProxyForwards(t *testing.T) {
	h := newLimitedHandler(t, 1)

	assert.Equal(t, http.StatusOK, get(h, "127.0.0.1:4000", "198.51.100.1").Code)
	assert.Equal(t, http.StatusOK, get(h, "127.0.0.1:4000", "198.51.100.2").Code)
	assert.Equal(t, http.StatusTooManyRequests, get(h, "127.0.0.1:4000", "198.51.100.1").Code)
}
