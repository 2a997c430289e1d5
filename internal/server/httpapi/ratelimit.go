package httpapi

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/dmitrijs2005/fitauth/internal/timex"
	"github.com/gin-gonic/gin"
)

// fixed-window counters per key, kept in process memory
type bucket struct {
	window time.Time
	count  int
}

type rateLimiter struct {
	mu      sync.Mutex
	clock   timex.Clock
	limit   int
	per     time.Duration
	data    map[string]bucket
	sweptAt time.Time
}

func newRateLimiter(limit int, per time.Duration, clock timex.Clock) *rateLimiter {
	return &rateLimiter{clock: clock, limit: limit, per: per, data: make(map[string]bucket)}
}

// allow reports whether key is still within its budget for the current window.
func (rl *rateLimiter) allow(key string) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	win := rl.clock.Now().Truncate(rl.per)
	b, ok := rl.data[key]
	if !ok || b.window.Before(win) {
		rl.sweep(win)
		rl.data[key] = bucket{window: win, count: 1}
		return true
	}
	if b.count >= rl.limit {
		return false
	}
	b.count++
	rl.data[key] = b
	return true
}

// sweep drops buckets from earlier windows, once per window. Caller holds mu.
func (rl *rateLimiter) sweep(current time.Time) {
	if !rl.sweptAt.Before(current) {
		return
	}
	rl.sweptAt = current
	for k, b := range rl.data {
		if b.window.Before(current) {
			delete(rl.data, k)
		}
	}
}

// limitIP rejects clients that exceed the per-IP budget with 429.
func (rl *rateLimiter) limitIP() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !rl.allow("ip:" + c.ClientIP()) {
			c.Header("Retry-After", retryAfter(rl.per))
			abortWith(c, http.StatusTooManyRequests, "Too many requests, please try again later")
			return
		}
		c.Next()
	}
}

func retryAfter(d time.Duration) string {
	secs := int(d / time.Second)
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}
