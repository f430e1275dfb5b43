// Package ratelimit throttles mutating requests per client with token buckets.
package ratelimit

import (
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"savings/internal/cache"
)

// Config holds rate limiter configuration
type Config struct {
	RequestsPerMinute int
	Burst             int
	// MaxClients bounds how many client buckets are remembered.
	MaxClients int
	// IdleTTL drops a client's bucket after this long without requests.
	IdleTTL time.Duration
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		RequestsPerMinute: 60,
		Burst:             10,
		MaxClients:        10000,
		IdleTTL:           10 * time.Minute,
	}
}

// Limiter provides rate limiting functionality
type Limiter struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	clients *cache.LRUCache[*rate.Limiter]
}

func NewLimiter(config Config) *Limiter {
	def := DefaultConfig()
	if config.RequestsPerMinute <= 0 {
		config.RequestsPerMinute = def.RequestsPerMinute
	}
	if config.Burst <= 0 {
		config.Burst = def.Burst
	}
	if config.MaxClients <= 0 {
		config.MaxClients = def.MaxClients
	}
	if config.IdleTTL <= 0 {
		config.IdleTTL = def.IdleTTL
	}
	return &Limiter{
		limit:   rate.Every(time.Minute / time.Duration(config.RequestsPerMinute)),
		burst:   config.Burst,
		clients: cache.NewLRUCache[*rate.Limiter](config.MaxClients, config.IdleTTL),
	}
}

// Allow checks if a request from the given client should be allowed
func (l *Limiter) Allow(clientIP string) bool {
	l.mu.Lock()
	lim, ok := l.clients.Get(clientIP)
	if !ok {
		lim = rate.NewLimiter(l.limit, l.burst)
	}
	// Re-set on every hit so the idle TTL counts from the last request.
	l.clients.Set(clientIP, lim)
	l.mu.Unlock()

	return lim.Allow()
}

// ActiveClients returns the number of currently tracked clients
func (l *Limiter) ActiveClients() int {
	return l.clients.Size()
}

// Cache exposes the client buckets so idle ones can be swept.
func (l *Limiter) Cache() cache.Cleaner {
	return l.clients
}

// Middleware limits requests whose method is not safe (GET, HEAD, OPTIONS pass through).
func (l *Limiter) Middleware(extractIP func(*http.Request) string, onLimit func(http.ResponseWriter, *http.Request)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet, http.MethodHead, http.MethodOptions:
				next.ServeHTTP(w, r)
				return
			}

			if !l.Allow(extractIP(r)) {
				w.Header().Set("Retry-After", "60")
				if onLimit != nil {
					onLimit(w, r)
				} else {
					http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
				}
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
