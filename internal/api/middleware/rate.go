package middleware

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

// RateLimitConfig defines rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int
	Burst             int
	IdleTTL           time.Duration // forget clients idle this long
}

// DefaultRateLimitConfig returns the admin server's limits.
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 20,
		Burst:             40,
		IdleTTL:           10 * time.Minute,
	}
}

// RateLimit creates a per-IP token bucket middleware. Idle clients are
// dropped lazily while serving requests.
func RateLimit(cfg RateLimitConfig) gin.HandlerFunc {
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = DefaultRateLimitConfig().IdleTTL
	}

	type client struct {
		limiter  *rate.Limiter
		lastSeen time.Time
	}

	var (
		mu        sync.Mutex
		clients   = make(map[string]*client)
		lastSweep = time.Now()
	)

	return func(c *gin.Context) {
		ip := c.ClientIP()
		now := time.Now()

		mu.Lock()
		if now.Sub(lastSweep) > cfg.IdleTTL {
			for k, cl := range clients {
				if now.Sub(cl.lastSeen) > cfg.IdleTTL {
					delete(clients, k)
				}
			}
			lastSweep = now
		}
		cl, ok := clients[ip]
		if !ok {
			cl = &client{limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst)}
			clients[ip] = cl
		}
		cl.lastSeen = now
		limiter := cl.limiter
		mu.Unlock()

		if !limiter.Allow() {
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error": "rate limit exceeded",
			})
			return
		}

		c.Next()
	}
}
