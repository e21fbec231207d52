// Package ratelimit throttles API clients with one token bucket per client.
package ratelimit

import (
	"log/slog"
	"math"
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"dailybudget/internal/cache"

	"golang.org/x/time/rate"
)

type Config struct {
	RequestsPerSecond float64
	Burst             int
	// MaxClients bounds the number of tracked buckets.
	MaxClients int
	// IdleTTL drops a client's bucket after this long without requests.
	IdleTTL time.Duration
}

func DefaultConfig() Config {
	return Config{
		RequestsPerSecond: 5,
		Burst:             20,
		MaxClients:        10_000,
		IdleTTL:           10 * time.Minute,
	}
}

type Limiter struct {
	config   Config
	buckets  *cache.LRUCache[*rate.Limiter]
	rejected atomic.Int64
}

func NewLimiter(config Config) *Limiter {
	def := DefaultConfig()
	if config.RequestsPerSecond <= 0 {
		config.RequestsPerSecond = def.RequestsPerSecond
	}
	if config.Burst < 1 {
		config.Burst = def.Burst
	}
	if config.MaxClients < 1 {
		config.MaxClients = def.MaxClients
	}
	if config.IdleTTL <= 0 {
		config.IdleTTL = def.IdleTTL
	}
	return &Limiter{
		config:  config,
		buckets: cache.NewLRUCache[*rate.Limiter](config.MaxClients, config.IdleTTL),
	}
}

// Buckets exposes the bucket cache so it can be registered with a janitor.
func (l *Limiter) Buckets() cache.Cleaner { return l.buckets }

func (l *Limiter) bucket(key string) *rate.Limiter {
	return l.buckets.GetOrCreate(key, func() *rate.Limiter {
		return rate.NewLimiter(rate.Limit(l.config.RequestsPerSecond), l.config.Burst)
	})
}

// Allow consumes one token for key.
func (l *Limiter) Allow(key string) bool {
	if l.bucket(key).Allow() {
		return true
	}
	l.rejected.Add(1)
	return false
}

// retryAfter is the whole number of seconds until one token is back.
func (l *Limiter) retryAfter() string {
	return strconv.Itoa(int(math.Ceil(1 / l.config.RequestsPerSecond)))
}

type Metrics struct {
	Rejected    int64
	ClientCount int
}

func (l *Limiter) GetMetrics() Metrics {
	return Metrics{Rejected: l.rejected.Load(), ClientCount: l.buckets.Size()}
}

// Middleware rejects clients over their rate. onLimit writes the response;
// when nil a plain 429 is sent.
func (l *Limiter) Middleware(clientKey func(*http.Request) string, onLimit func(http.ResponseWriter, *http.Request)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientKey(r)
			if !l.Allow(key) {
				slog.WarnContext(r.Context(), "Rate limit exceeded", "client", key, "path", r.URL.Path)
				w.Header().Set("Retry-After", l.retryAfter())
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
