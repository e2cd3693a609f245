// Package ratelimit throttles state-changing requests per client IP.
package ratelimit

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"fintrack/internal/cache"
	applog "fintrack/internal/log"
)

// Limiter counts requests per client in fixed windows. Client windows
// live in an LRU cache, so idle clients expire and the number tracked is
// bounded; register the limiter with a cache.Manager to sweep them.
type Limiter struct {
	mu      sync.Mutex
	windows *cache.LRUCache[*window]
	now     func() time.Time

	limit  int
	window time.Duration

	hits atomic.Int64
}

type window struct {
	start    time.Time
	requests int
}

type Config struct {
	RequestsPerWindow int
	Window            time.Duration
	// IdleTimeout is how long a client is remembered after its last request.
	IdleTimeout time.Duration
	MaxClients  int
}

func DefaultConfig() Config {
	return Config{
		RequestsPerWindow: 60,
		Window:            time.Minute,
		IdleTimeout:       10 * time.Minute,
		MaxClients:        10000,
	}
}

// NewLimiter fills zero config fields from DefaultConfig.
func NewLimiter(cfg Config) *Limiter {
	def := DefaultConfig()
	if cfg.RequestsPerWindow <= 0 {
		cfg.RequestsPerWindow = def.RequestsPerWindow
	}
	if cfg.Window <= 0 {
		cfg.Window = def.Window
	}
	if cfg.IdleTimeout < cfg.Window {
		cfg.IdleTimeout = max(def.IdleTimeout, cfg.Window)
	}
	if cfg.MaxClients <= 0 {
		cfg.MaxClients = def.MaxClients
	}

	l := &Limiter{
		now:    time.Now,
		limit:  cfg.RequestsPerWindow,
		window: cfg.Window,
	}
	l.windows = cache.NewLRUCache[*window](cfg.MaxClients, cfg.IdleTimeout,
		cache.WithSlidingExpiry[*window](),
		cache.WithClock[*window](func() time.Time { return l.now() }),
	)
	return l
}

// Allow records a request from clientIP. When the client is over its
// limit it returns false and the time left in the current window.
func (l *Limiter) Allow(clientIP string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	w, ok := l.windows.Get(clientIP)
	if !ok || now.Sub(w.start) >= l.window {
		l.windows.Set(clientIP, &window{start: now, requests: 1})
		return true, 0
	}

	w.requests++
	if w.requests > l.limit {
		l.hits.Add(1)
		return false, w.start.Add(l.window).Sub(now)
	}
	return true, 0
}

// CleanExpired forgets idle clients. It makes the limiter a cache.Cleaner.
func (l *Limiter) CleanExpired() int {
	return l.windows.CleanExpired()
}

// ActiveClients is the number of clients currently tracked.
func (l *Limiter) ActiveClients() int {
	return l.windows.Size()
}

type Metrics struct {
	TotalHits   int64
	ClientCount int64
}

func (l *Limiter) GetMetrics() Metrics {
	return Metrics{
		TotalHits:   l.hits.Load(),
		ClientCount: int64(l.ActiveClients()),
	}
}

// Middleware limits POST requests only; reads are never throttled.
// onLimit, when set, writes the refusal instead of the default 429.
func (l *Limiter) Middleware(extractIP func(*http.Request) string, onLimit func(http.ResponseWriter, *http.Request)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				next.ServeHTTP(w, r)
				return
			}
			clientIP := extractIP(r)
			ok, retry := l.Allow(clientIP)
			if ok {
				next.ServeHTTP(w, r)
				return
			}

			applog.FromContext(r.Context()).WithComponent(applog.ComponentRateLimit).WarnContext(r.Context(), "Rate limit exceeded",
				applog.FieldClientIP, clientIP,
				applog.FieldPath, r.URL.Path,
				"retry_after_s", retrySeconds(retry))
			w.Header().Set("Retry-After", strconv.Itoa(retrySeconds(retry)))
			if onLimit != nil {
				onLimit(w, r)
				return
			}
			http.Error(w, "Too many requests. Please try again later.", http.StatusTooManyRequests)
		})
	}
}

func retrySeconds(d time.Duration) int {
	return max(1, int(math.Ceil(d.Seconds())))
}
