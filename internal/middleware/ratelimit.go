package middleware

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/quicktask/quicktask-api/internal/httpx"
)

// ClientLimiter keeps one token bucket per client (remote address), sized for
// "limit requests per window". Buckets idle for a full window are dropped on
// the next sweep.
type ClientLimiter struct {
	limit  rate.Limit
	burst  int
	window time.Duration

	mu        sync.Mutex
	clients   map[string]*clientBucket
	lastSweep time.Time
}

type clientBucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func NewClientLimiter(limit int, window time.Duration) *ClientLimiter {
	if limit <= 0 || window <= 0 {
		return nil
	}
	return &ClientLimiter{
		limit:     rate.Limit(float64(limit) / window.Seconds()),
		burst:     limit,
		window:    window,
		clients:   make(map[string]*clientBucket),
		lastSweep: time.Now(),
	}
}

func (l *ClientLimiter) allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	if now.Sub(l.lastSweep) > l.window {
		for k, b := range l.clients {
			if now.Sub(b.lastSeen) > l.window {
				delete(l.clients, k)
			}
		}
		l.lastSweep = now
	}

	b, ok := l.clients[key]
	if !ok {
		b = &clientBucket{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[key] = b
	}
	b.lastSeen = now
	return b.limiter.Allow()
}

// clientKey identifies the caller by host only. Keying on the full RemoteAddr
// would hand every connection a fresh bucket.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// RateLimit rejects clients that exceed the limiter's window with 429. A nil
// limiter disables limiting.
func RateLimit(l *ClientLimiter) func(http.Handler) http.Handler {
	if l == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if l.allow(clientKey(r)) {
				next.ServeHTTP(w, r)
				return
			}
			w.Header().Set("Retry-After", strconv.Itoa(int(l.window.Seconds())))
			httpx.WriteError(w, http.StatusTooManyRequests, httpx.CodeRateLimited,
				"Too many requests, please try again later")
		})
	}
}
