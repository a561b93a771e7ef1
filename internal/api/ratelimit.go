package api

import (
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/httprate"
)

// Limiter is a per-client fixed-window limiter that can be reset. Clients
// are keyed by IP and User-Agent.
type Limiter struct {
	max    int
	window time.Duration

	mu    sync.RWMutex
	limit func(http.Handler) http.Handler
}

// NewLimiter allows max requests per window per client. max <= 0 disables
// limiting.
func NewLimiter(max int, window time.Duration) *Limiter {
	if window <= 0 {
		window = time.Minute
	}
	l := &Limiter{max: max, window: window}
	l.Reset()
	return l
}

// Reset forgets every client's count.
func (l *Limiter) Reset() {
	if l.max <= 0 {
		return
	}
	limit := httprate.Limit(l.max, l.window,
		httprate.WithKeyFuncs(httprate.KeyByIP, keyByUserAgent),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			httpError(w, http.StatusTooManyRequests, "rate_limit_error", "too many requests, please slow down")
		}),
	)
	l.mu.Lock()
	l.limit = limit
	l.mu.Unlock()
}

func (l *Limiter) Handler(next http.Handler) http.Handler {
	if l.max <= 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		l.mu.RLock()
		limit := l.limit
		l.mu.RUnlock()
		limit(next).ServeHTTP(w, r)
	})
}

func keyByUserAgent(r *http.Request) (string, error) {
	ua := r.UserAgent()
	if ua == "" {
		ua = "unknown"
	}
	return ua, nil
}
