package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/JonMunkholm/sheetrest/internal/config"
	"github.com/JonMunkholm/sheetrest/internal/logging"
)

type clientEntry struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// RateLimiter keeps one token bucket per client address.
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string]*clientEntry
	limit   rate.Limit
	burst   int
	ttl     time.Duration
	now     func() time.Time
	onLimit func()
}

// NewRateLimiter builds a limiter from cfg. onLimit, if non-nil, is called
// for every rejected request.
func NewRateLimiter(cfg config.RateLimitConfig, onLimit func()) *RateLimiter {
	ttl := cfg.IdleTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RateLimiter{
		clients: make(map[string]*clientEntry),
		limit:   rate.Limit(cfg.RequestsPerSecond),
		burst:   cfg.Burst,
		ttl:     ttl,
		now:     time.Now,
		onLimit: onLimit,
	}
}

// Allow consumes a token for client.
func (rl *RateLimiter) Allow(client string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	e, ok := rl.clients[client]
	if !ok {
		e = &clientEntry{limiter: rate.NewLimiter(rl.limit, rl.burst)}
		rl.clients[client] = e
	}
	e.lastAccess = now
	return e.limiter.AllowN(now, 1)
}

// Sweep drops buckets idle for longer than the TTL and returns how many
// remain.
func (rl *RateLimiter) Sweep() int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for k, e := range rl.clients {
		if now.Sub(e.lastAccess) > rl.ttl {
			delete(rl.clients, k)
		}
	}
	return len(rl.clients)
}

// Run sweeps idle buckets until stop is closed.
func (rl *RateLimiter) Run(stop <-chan struct{}) {
	ticker := time.NewTicker(rl.ttl)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			rl.Sweep()
		}
	}
}

// Middleware rejects requests over the limit with 429. Clients are keyed by
// address, so TrustedRealIP must run first. OPTIONS is never limited.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	retryAfter := "1"
	if rl.limit > 0 && rl.limit < 1 {
		retryAfter = strconv.Itoa(int(1/float64(rl.limit) + 0.5))
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodOptions {
			next.ServeHTTP(w, r)
			return
		}

		client := r.RemoteAddr
		if a, ok := ClientAddr(r); ok {
			client = a.String()
		}

		if !rl.Allow(client) {
			if rl.onLimit != nil {
				rl.onLimit()
			}
			logging.FromContext(r.Context()).Warn("rate limit exceeded", "ip", client, "path", r.URL.Path)
			w.Header().Set("Retry-After", retryAfter)
			writeError(w, http.StatusTooManyRequests, errorBody{
				Error:   "rate limit exceeded",
				Message: "Too many requests",
				Action:  "Wait a moment and retry",
				Code:    "RATE001",
			})
			return
		}

		next.ServeHTTP(w, r)
	})
}
