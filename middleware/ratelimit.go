package middleware

import (
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"wayfarer/apperr"
)

// IPRateLimiter is a sliding-window counter per client IP.
type IPRateLimiter struct {
	mu       sync.Mutex
	requests map[string][]time.Time
	limit    int
	window   time.Duration
	now      func() time.Time
}

func NewIPRateLimiter(limit int, window time.Duration) *IPRateLimiter {
	return &IPRateLimiter{
		requests: make(map[string][]time.Time),
		limit:    limit,
		window:   window,
		now:      time.Now,
	}
}

func (rl *IPRateLimiter) Allow(ip string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	requests := rl.prune(rl.requests[ip], now)
	if len(requests) >= rl.limit {
		rl.requests[ip] = requests
		return false
	}
	rl.requests[ip] = append(requests, now)
	return true
}

func (rl *IPRateLimiter) prune(requests []time.Time, now time.Time) []time.Time {
	cutoff := now.Add(-rl.window)
	i := 0
	for ; i < len(requests); i++ {
		if requests[i].After(cutoff) {
			break
		}
	}
	return requests[i:]
}

// Sweep drops idle IPs. main runs it on a ticker.
func (rl *IPRateLimiter) Sweep() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for ip, requests := range rl.requests {
		if len(rl.prune(requests, now)) == 0 {
			delete(rl.requests, ip)
		}
	}
}

func RateLimit(rl *IPRateLimiter) gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.Allow(c.ClientIP()) {
			_ = c.Error(apperr.TooManyRequests("Too many requests"))
			c.Abort()
			return
		}
		c.Next()
	}
}
