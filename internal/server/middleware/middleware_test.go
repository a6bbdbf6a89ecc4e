package middleware

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func discard() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

// countingLimiter allows limit calls per key and ignores the window.
type countingLimiter struct {
	mu    sync.Mutex
	calls map[string]int
	keys  []string
	err   error
}

func newCountingLimiter() *countingLimiter { return &countingLimiter{calls: map[string]int{}} }

func (l *countingLimiter) Allow(_ context.Context, key string, limit int, _ time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.keys = append(l.keys, key)
	if l.err != nil {
		return false, l.err
	}
	if l.calls[key] >= limit {
		return false, nil
	}
	l.calls[key]++
	return true, nil
}

func entitlementProbe() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if IsEntitled(r.Context()) {
			_, _ = io.WriteString(w, "entitled")
			return
		}
		_, _ = io.WriteString(w, "locked")
	})
}

func serve(h http.Handler, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestEntitlement_Disabled(t *testing.T) {
	h := Entitlement(EntitlementConfig{}, nil, discard())(entitlementProbe())
	rec := serve(h, httptest.NewRequest(http.MethodGet, "/api/board", nil))
	assert.Equal(t, "entitled", rec.Body.String())
}

func TestEntitlement_Key(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)

	limiter := newCountingLimiter()
	h := Entitlement(EntitlementConfig{
		Enabled:   true,
		KeyHashes: []string{string(hash)},
	}, limiter, discard())(entitlementProbe())

	for _, set := range []func(*http.Request){
		func(r *http.Request) { r.Header.Set("Authorization", "Bearer s3cret") },
		func(r *http.Request) { r.Header.Set("X-API-Key", "s3cret") },
	} {
		req := httptest.NewRequest(http.MethodGet, "/api/board", nil)
		set(req)
		rec := serve(h, req)
		assert.Equal(t, "entitled", rec.Body.String())
		assert.Equal(t, EntitledByKey, rec.Header().Get("X-Entitlement"))
	}
	assert.Empty(t, limiter.keys, "keyed requests do not spend the free allowance")

	req := httptest.NewRequest(http.MethodGet, "/api/board", nil)
	req.Header.Set("X-API-Key", "wrong")
	rec := serve(h, req)
	assert.Equal(t, "locked", rec.Body.String())
	assert.Equal(t, NotEntitled, rec.Header().Get("X-Entitlement"))
}

func TestEntitlement_FreeAllowance(t *testing.T) {
	limiter := newCountingLimiter()
	h := Entitlement(EntitlementConfig{
		Enabled:    true,
		FreeViews:  2,
		FreeWindow: time.Hour,
	}, limiter, discard())(entitlementProbe())

	var got []string
	for range 3 {
		req := httptest.NewRequest(http.MethodGet, "/api/board", nil)
		req.RemoteAddr = "203.0.113.9:5555"
		rec := serve(h, req)
		assert.Equal(t, http.StatusOK, rec.Code)
		got = append(got, rec.Body.String())
	}
	assert.Equal(t, []string{"entitled", "entitled", "locked"}, got)
	assert.Equal(t, "free:203.0.113.9", limiter.keys[0])

	other := httptest.NewRequest(http.MethodGet, "/api/board", nil)
	other.RemoteAddr = "198.51.100.1:1234"
	assert.Equal(t, "entitled", serve(h, other).Body.String())
}

func TestEntitlement_LimiterErrorLocks(t *testing.T) {
	limiter := newCountingLimiter()
	limiter.err = errors.New("redis down")
	h := Entitlement(EntitlementConfig{Enabled: true, FreeViews: 5, FreeWindow: time.Hour}, limiter, discard())(entitlementProbe())

	rec := serve(h, httptest.NewRequest(http.MethodGet, "/api/board", nil))
	assert.Equal(t, "locked", rec.Body.String())
}

func TestRateLimit(t *testing.T) {
	limiter := newCountingLimiter()
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })
	h := RateLimit(limiter, 1, time.Minute, discard())(ok)

	req := httptest.NewRequest(http.MethodGet, "/api/board", nil)
	req.Header.Set("X-Forwarded-For", "10.0.0.1, 10.0.0.2")
	assert.Equal(t, http.StatusNoContent, serve(h, req).Code)

	rec := serve(h, req)
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, "60", rec.Header().Get("Retry-After"))
	assert.Equal(t, "api:10.0.0.1", limiter.keys[0])

	limiter.err = errors.New("redis down")
	assert.Equal(t, http.StatusNoContent, serve(h, req).Code, "limiter errors fail open")

	passthrough := RateLimit(nil, 10, time.Minute, discard())(ok)
	assert.Equal(t, http.StatusNoContent, serve(passthrough, req).Code)
}

func TestCORS(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	h := CORS([]string{"http://localhost:3000"})(next)

	req := httptest.NewRequest(http.MethodOptions, "/api/board", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := serve(h, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))

	req = httptest.NewRequest(http.MethodGet, "/api/board", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = serve(h, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestExtractClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.7:4444"
	assert.Equal(t, "192.0.2.7", extractClientIP(req))

	req.Header.Set("X-Real-IP", "192.0.2.8")
	assert.Equal(t, "192.0.2.8", extractClientIP(req))

	req.Header.Set("X-Forwarded-For", "192.0.2.9")
	assert.Equal(t, "192.0.2.9", extractClientIP(req))
}
