package httpmiddleware

import (
	"context"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"
)

// Quota is the outcome of counting one request.
type Quota struct {
	Limit     int
	Remaining int
	Reset     time.Time
	Allowed   bool
}

// Limiter counts requests per client key.
type Limiter interface {
	Take(ctx context.Context, key string) (Quota, error)
}

// RateLimitConfig configures RateLimit.
type RateLimitConfig struct {
	Limiter Limiter
	// KeyFunc identifies the client. Defaults to ClientIP.
	KeyFunc func(*http.Request) string
}

// RateLimit rejects requests over the limiter quota with 429 and sets the
// X-RateLimit-* headers. Requests pass when the limiter fails.
func RateLimit(cfg RateLimitConfig) Middleware {
	key := cfg.KeyFunc
	if key == nil {
		key = ClientIP
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			q, err := cfg.Limiter.Take(r.Context(), key(r))
			if err != nil {
				zctx.From(r.Context()).Warn("Rate limiter unavailable", zap.Error(err))
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(q.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(q.Remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(q.Reset.Unix(), 10))
			if !q.Allowed {
				wait := max(time.Until(q.Reset), 0)
				h.Set("Retry-After", strconv.Itoa(int((wait+time.Second-1)/time.Second)))
				writeError(w, http.StatusTooManyRequests, "Too many requests, try again later")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP keys requests by the first X-Forwarded-For hop, X-Real-IP, or
// the remote host.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if ip := r.Header.Get("X-Real-IP"); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// MemoryLimiter is a per-process sliding window limiter. The previous
// window's count is weighted by how much of it the sliding window still
// covers.
type MemoryLimiter struct {
	max    int
	window time.Duration
	now    func() time.Time

	mu      sync.Mutex
	windows map[string]*slidingWindow
}

type slidingWindow struct {
	start     time.Time
	prev, cur int
}

// NewMemoryLimiter allows limit requests per window per key.
func NewMemoryLimiter(limit int, window time.Duration) *MemoryLimiter {
	return &MemoryLimiter{
		max:     limit,
		window:  window,
		now:     time.Now,
		windows: make(map[string]*slidingWindow),
	}
}

// Take implements Limiter.
func (l *MemoryLimiter) Take(_ context.Context, key string) (Quota, error) {
	now := l.now()
	start := now.Truncate(l.window)

	l.mu.Lock()
	defer l.mu.Unlock()

	sw, ok := l.windows[key]
	switch {
	case !ok:
		sw = &slidingWindow{start: start}
		l.windows[key] = sw
	case start.Sub(sw.start) >= 2*l.window:
		*sw = slidingWindow{start: start}
	case start.After(sw.start):
		*sw = slidingWindow{start: start, prev: sw.cur}
	}

	covered := 1 - float64(now.Sub(sw.start))/float64(l.window)
	used := int(float64(sw.prev)*covered) + sw.cur
	q := Quota{Limit: l.max, Reset: sw.start.Add(l.window)}
	if used >= l.max {
		return q, nil
	}
	sw.cur++
	q.Allowed = true
	q.Remaining = max(l.max-used-1, 0)
	return q, nil
}

// Run evicts idle keys every two windows until ctx is done.
func (l *MemoryLimiter) Run(ctx context.Context) error {
	ticker := time.NewTicker(2 * l.window)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			l.evict()
		}
	}
}

func (l *MemoryLimiter) evict() {
	cutoff := l.now().Truncate(l.window).Add(-2 * l.window)
	l.mu.Lock()
	defer l.mu.Unlock()
	for key, sw := range l.windows {
		if !sw.start.After(cutoff) {
			delete(l.windows, key)
		}
	}
}
