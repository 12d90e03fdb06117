// ratelimit.go provides Gin middleware that enforces per-client rate limits,
// returning 429 responses when the configured requests-per-minute threshold is exceeded.
// Limits are kept in process memory, or in Redis when several instances share them.
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"

	"github.com/sharebook/sharebook/internal/config"
)

// RateLimitConfig holds configuration for rate limiting
type RateLimitConfig struct {
	// RequestsPerMinute is the maximum number of requests allowed per minute
	RequestsPerMinute int
	// BurstSize is the maximum burst of requests allowed
	BurstSize int
	// CleanupInterval is how often to clean up expired entries
	CleanupInterval time.Duration
}

// DefaultRateLimitConfig returns the limits applied to the API as a whole.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerMinute: 60,
		BurstSize:         10,
		CleanupInterval:   5 * time.Minute,
	}
}

// AuthRateLimitConfig returns stricter limits for login and signup.
func AuthRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerMinute: 10,
		BurstSize:         5,
		CleanupInterval:   5 * time.Minute,
	}
}

// AssistantRateLimitConfig returns limits for the AI writing assistant, whose
// requests are billed by the upstream provider.
func AssistantRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerMinute: 20,
		BurstSize:         5,
		CleanupInterval:   5 * time.Minute,
	}
}

// RateLimitConfigFrom maps the security.rate_limiting section onto a limiter config.
// Zero values keep the defaults.
func RateLimitConfigFrom(cfg config.RateLimitingConfig) RateLimitConfig {
	out := DefaultRateLimitConfig()
	if cfg.RequestsPerMinute > 0 {
		out.RequestsPerMinute = cfg.RequestsPerMinute
	}
	if cfg.Burst > 0 {
		out.BurstSize = cfg.Burst
	}
	return out
}

// Limiter decides whether the client identified by key may make another request.
type Limiter interface {
	Take(ctx context.Context, key string) (allowed bool, remaining int)
	Limit() int
}

// rateLimitEntry tracks request counts for a single client
type rateLimitEntry struct {
	tokens     float64
	lastUpdate time.Time
}

// RateLimiter implements an in-memory token bucket rate limiter
type RateLimiter struct {
	config  RateLimitConfig
	entries map[string]*rateLimitEntry
	mu      sync.RWMutex
	stopCh  chan struct{}
	stopped sync.Once
}

// NewRateLimiter creates a new rate limiter with the given config
func NewRateLimiter(config RateLimitConfig) *RateLimiter {
	rl := &RateLimiter{
		config:  config,
		entries: make(map[string]*rateLimitEntry),
		stopCh:  make(chan struct{}),
	}

	go rl.cleanup()

	return rl
}

// cleanup periodically removes entries idle for more than 10 minutes
func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.mu.Lock()
			now := time.Now()
			for key, entry := range rl.entries {
				if now.Sub(entry.lastUpdate) > 10*time.Minute {
					delete(rl.entries, key)
				}
			}
			rl.mu.Unlock()
		case <-rl.stopCh:
			return
		}
	}
}

// Stop stops the cleanup goroutine. It is safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.stopped.Do(func() { close(rl.stopCh) })
}

func (rl *RateLimiter) refill(entry *rateLimitEntry, now time.Time) float64 {
	tokensPerSecond := float64(rl.config.RequestsPerMinute) / 60.0
	added := now.Sub(entry.lastUpdate).Seconds() * tokensPerSecond
	return min(float64(rl.config.BurstSize), entry.tokens+added)
}

// Allow checks if a request from the given key should be allowed
func (rl *RateLimiter) Allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	entry, exists := rl.entries[key]

	if !exists {
		rl.entries[key] = &rateLimitEntry{
			tokens:     float64(rl.config.BurstSize) - 1,
			lastUpdate: now,
		}
		return true
	}

	entry.tokens = rl.refill(entry, now)
	entry.lastUpdate = now

	if entry.tokens >= 1 {
		entry.tokens--
		return true
	}

	return false
}

// RemainingTokens returns how many tokens are left for a key
func (rl *RateLimiter) RemainingTokens(key string) int {
	rl.mu.RLock()
	defer rl.mu.RUnlock()

	entry, exists := rl.entries[key]
	if !exists {
		return rl.config.BurstSize
	}
	return int(rl.refill(entry, time.Now()))
}

// Take implements Limiter.
func (rl *RateLimiter) Take(_ context.Context, key string) (bool, int) {
	allowed := rl.Allow(key)
	return allowed, rl.RemainingTokens(key)
}

// Limit implements Limiter.
func (rl *RateLimiter) Limit() int {
	return rl.config.RequestsPerMinute
}

// RedisRateLimiter shares limits across instances using the GCRA implementation
// of redis_rate. When Redis is unreachable requests are let through.
type RedisRateLimiter struct {
	limiter *redis_rate.Limiter
	limit   redis_rate.Limit
	prefix  string
}

// NewRedisRateLimiter creates a limiter on an existing client. prefix separates
// the key spaces of limiters that share one Redis.
func NewRedisRateLimiter(rdb *redis.Client, cfg RateLimitConfig, prefix string) *RedisRateLimiter {
	return &RedisRateLimiter{
		limiter: redis_rate.NewLimiter(rdb),
		limit: redis_rate.Limit{
			Rate:   cfg.RequestsPerMinute,
			Burst:  cfg.BurstSize,
			Period: time.Minute,
		},
		prefix: prefix,
	}
}

// Take implements Limiter.
func (rl *RedisRateLimiter) Take(ctx context.Context, key string) (bool, int) {
	res, err := rl.limiter.Allow(ctx, rl.prefix+key, rl.limit)
	if err != nil {
		slog.Warn("rate limiter unavailable, allowing request", "key", key, "error", err)
		return true, rl.limit.Burst
	}
	return res.Allowed > 0, res.Remaining
}

// Limit implements Limiter.
func (rl *RedisRateLimiter) Limit() int {
	return rl.limit.Rate
}

// NewLimiter builds the limiter described by cfg: Redis-backed when a redis_url
// is configured, in-memory otherwise. The returned func releases its resources.
func NewLimiter(cfg config.RateLimitingConfig, limits RateLimitConfig, prefix string) (Limiter, func(), error) {
	if cfg.RedisURL == "" {
		rl := NewRateLimiter(limits)
		return rl, rl.Stop, nil
	}

	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse rate limiting redis_url: %w", err)
	}
	rdb := redis.NewClient(opts)
	closeFn := func() {
		if err := rdb.Close(); err != nil {
			slog.Warn("failed to close rate limiter redis client", "error", err)
		}
	}
	return NewRedisRateLimiter(rdb, limits, prefix), closeFn, nil
}

// RateLimitMiddleware creates a Gin middleware that rate limits requests
func RateLimitMiddleware(limiter Limiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := getRateLimitKey(c)

		allowed, remaining := limiter.Take(c.Request.Context(), key)
		c.Header("X-RateLimit-Limit", strconv.Itoa(limiter.Limit()))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if !allowed {
			c.Header("Retry-After", "60")
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":       "Rate limit exceeded",
				"retry_after": 60,
			})
			return
		}

		c.Next()
	}
}

// getRateLimitKey determines the key to use for rate limiting
// Priority: user_id > IP address
func getRateLimitKey(c *gin.Context) string {
	if id := CurrentUserID(c); id != "" {
		return "user:" + id
	}

	ip := c.ClientIP()
	if ip == "" {
		ip = c.Request.RemoteAddr
	}
	return "ip:" + ip
}
