package middleware

import (
	"context"
	"crypto/sha256"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/alanyoungcy/oddsdesk/internal/domain"
)

// Entitlement sources reported in the X-Entitlement response header.
const (
	EntitledByKey  = "key"
	EntitledByFree = "free"
	NotEntitled    = "locked"
)

type entitlementKey struct{}

// WithEntitlement returns a copy of ctx carrying the entitlement decision.
func WithEntitlement(ctx context.Context, entitled bool) context.Context {
	return context.WithValue(ctx, entitlementKey{}, entitled)
}

// IsEntitled reports the decision stored by the Entitlement middleware. A
// request that never passed through it is not entitled.
func IsEntitled(ctx context.Context) bool {
	v, _ := ctx.Value(entitlementKey{}).(bool)
	return v
}

// EntitlementConfig controls who sees the gated parts of a view.
type EntitlementConfig struct {
	// Enabled false entitles every request.
	Enabled bool
	// KeyHashes are bcrypt hashes of accepted API keys.
	KeyHashes []string
	// FreeViews per FreeWindow are granted to each client without a key.
	FreeViews  int
	FreeWindow time.Duration
}

// Entitlement decides whether a request may see bookmaker prices, edges and
// steam outputs. A valid key always entitles. Without one the client draws on
// a free allowance metered by limiter; once that is spent the request still
// succeeds but renders a locked view. A limiter error locks the view.
func Entitlement(cfg EntitlementConfig, limiter domain.RateLimiter, logger *slog.Logger) func(http.Handler) http.Handler {
	keys := newKeyVerifier(cfg.KeyHashes)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			source := NotEntitled
			switch {
			case !cfg.Enabled:
				source = EntitledByFree
			case keys.verify(extractToken(r)):
				source = EntitledByKey
			case limiter != nil && cfg.FreeViews > 0:
				ok, err := limiter.Allow(r.Context(), "free:"+extractClientIP(r), cfg.FreeViews, cfg.FreeWindow)
				if err != nil {
					logger.WarnContext(r.Context(), "free allowance check failed", slog.String("error", err.Error()))
				} else if ok {
					source = EntitledByFree
				}
			}

			w.Header().Set("X-Entitlement", source)
			ctx := WithEntitlement(r.Context(), source != NotEntitled)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// keyVerifier checks tokens against bcrypt hashes and remembers tokens that
// matched, keyed by their SHA-256, so a valid key pays the bcrypt cost once.
type keyVerifier struct {
	hashes [][]byte

	mu   sync.RWMutex
	seen map[[sha256.Size]byte]struct{}
}

func newKeyVerifier(hashes []string) *keyVerifier {
	kv := &keyVerifier{seen: make(map[[sha256.Size]byte]struct{})}
	for _, h := range hashes {
		if h = strings.TrimSpace(h); h != "" {
			kv.hashes = append(kv.hashes, []byte(h))
		}
	}
	return kv
}

func (kv *keyVerifier) verify(token string) bool {
	if token == "" || len(kv.hashes) == 0 {
		return false
	}
	sum := sha256.Sum256([]byte(token))

	kv.mu.RLock()
	_, ok := kv.seen[sum]
	kv.mu.RUnlock()
	if ok {
		return true
	}

	for _, h := range kv.hashes {
		if bcrypt.CompareHashAndPassword(h, []byte(token)) == nil {
			kv.mu.Lock()
			kv.seen[sum] = struct{}{}
			kv.mu.Unlock()
			return true
		}
	}
	return false
}

// extractToken reads a Bearer token from Authorization or a raw key from
// X-API-Key.
func extractToken(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		scheme, token, ok := strings.Cut(auth, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			return strings.TrimSpace(token)
		}
	}
	return strings.TrimSpace(r.Header.Get("X-API-Key"))
}
