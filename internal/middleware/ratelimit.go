package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/kvbxss/RouteAnomalyDetection/pkg/response"
)

// RateLimiter tracks request timestamps per client over a sliding window.
// It guards the training and detection endpoints, which are far more
// expensive than the read paths.
type RateLimiter struct {
	mu      sync.Mutex
	clients map[string][]time.Time
	limit   int
	window  time.Duration
	stop    chan struct{}
}

// NewRateLimiter allows limit requests per client within window
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	rl := &RateLimiter{
		clients: make(map[string][]time.Time),
		limit:   limit,
		window:  window,
		stop:    make(chan struct{}),
	}
	go rl.prune()
	return rl
}

// Stop terminates the background pruning goroutine. The limiter still
// answers Allow afterwards.
func (rl *RateLimiter) Stop() {
	close(rl.stop)
}

// prune drops clients whose whole window has expired
func (rl *RateLimiter) prune() {
	ticker := time.NewTicker(rl.window)
	defer ticker.Stop()

	for {
		select {
		case <-rl.stop:
			return
		case <-ticker.C:
		}

		cutoff := time.Now().Add(-rl.window)
		rl.mu.Lock()
		for client, seen := range rl.clients {
			if kept := trimBefore(seen, cutoff); len(kept) == 0 {
				delete(rl.clients, client)
			} else {
				rl.clients[client] = kept
			}
		}
		rl.mu.Unlock()
	}
}

// Allow records one request for the client and reports whether it stays
// within the limit
func (rl *RateLimiter) Allow(client string) bool {
	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	seen := trimBefore(rl.clients[client], now.Add(-rl.window))
	if len(seen) >= rl.limit {
		rl.clients[client] = seen
		return false
	}
	rl.clients[client] = append(seen, now)
	return true
}

// trimBefore keeps only timestamps at or after cutoff, preserving order
func trimBefore(seen []time.Time, cutoff time.Time) []time.Time {
	out := seen[:0]
	for _, t := range seen {
		if !t.Before(cutoff) {
			out = append(out, t)
		}
	}
	return out
}

// RateLimit rejects clients over the limit with 429 and a Retry-After hint
func RateLimit(limit int, window time.Duration) gin.HandlerFunc {
	limiter := NewRateLimiter(limit, window)

	return func(c *gin.Context) {
		if !limiter.Allow(c.ClientIP()) {
			c.Header("Retry-After", strconv.Itoa(int(window.Seconds())))
			response.Error(c, http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.")
			c.Abort()
			return
		}
		c.Next()
	}
}
