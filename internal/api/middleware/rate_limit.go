package middleware

import (
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/llmgateway/gateway/internal/gatewayerr"
)

// RateLimitConfig holds the global per-identity admission rate limit.
type RateLimitConfig struct {
	Max      int
	WindowMS int
}

// rateLimiter implements a sliding-window rate limiter keyed by caller
// identity, mirroring the teacher's IP-keyed limiter but keyed by API key
// prefix when a bearer token is present (falling back to source IP for
// unauthenticated/malformed requests) so two users behind the same NAT
// don't share a bucket.
type rateLimiter struct {
	mu          sync.Mutex
	requests    map[string][]time.Time
	maxRequests int
	window      time.Duration
}

func newRateLimiter(maxRequests int, window time.Duration) *rateLimiter {
	return &rateLimiter{
		requests:    make(map[string][]time.Time),
		maxRequests: maxRequests,
		window:      window,
	}
}

func (rl *rateLimiter) isAllowed(identity string) (bool, int64) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	cutoff := now.Add(-rl.window)

	reqs := rl.requests[identity]
	valid := reqs[:0]
	for _, t := range reqs {
		if t.After(cutoff) {
			valid = append(valid, t)
		}
	}

	resetTime := now.Add(rl.window).Unix()
	if len(valid) >= rl.maxRequests {
		rl.requests[identity] = valid
		return false, resetTime
	}

	valid = append(valid, now)
	rl.requests[identity] = valid
	return true, resetTime
}

// RateLimit returns a middleware enforcing cfg's sliding-window limit. It
// runs ahead of quota admission (§5) so a rejected request never touches
// persistence.
func RateLimit(cfg RateLimitConfig) gin.HandlerFunc {
	limiter := newRateLimiter(cfg.Max, time.Duration(cfg.WindowMS)*time.Millisecond)

	return func(c *gin.Context) {
		identity := rateLimitIdentity(c)
		allowed, resetTime := limiter.isAllowed(identity)

		c.Header("X-RateLimit-Limit", strconv.Itoa(cfg.Max))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(resetTime, 10))

		if !allowed {
			retryAfter := resetTime - time.Now().Unix()
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.FormatInt(retryAfter, 10))
			RespondError(c, gatewayerr.New(gatewayerr.RateLimitExceeded, "too many requests"))
			return
		}
		c.Next()
	}
}

// rateLimitIdentity scopes the limiter by the bearer token's lookup prefix
// when present, else the caller's source IP.
func rateLimitIdentity(c *gin.Context) string {
	if token := bearerToken(c); len(token) >= 12 {
		return token[:12]
	}
	return getClientIP(c)
}

func getClientIP(c *gin.Context) string {
	if xff := c.GetHeader("X-Forwarded-For"); xff != "" {
		parts := strings.SplitN(xff, ",", 2)
		ip := strings.TrimSpace(parts[0])
		if ip != "" {
			return ip
		}
	}
	if xri := c.GetHeader("X-Real-IP"); xri != "" {
		return xri
	}
	return c.ClientIP()
}
