package app

import (
	"sync"

	"github.com/dkeye/Cypher/internal/core"
	"github.com/dkeye/Cypher/internal/domain"
	"golang.org/x/time/rate"
)

// RateLimiter keeps one token bucket per connection.
type RateLimiter struct {
	mu      sync.Mutex
	limit   rate.Limit
	burst   int
	buckets map[core.SessionID]*rate.Limiter
}

// NewRateLimiter allows perSecond calls per connection, with a burst of the same size.
func NewRateLimiter(perSecond int) *RateLimiter {
	return &RateLimiter{
		limit:   rate.Limit(perSecond),
		burst:   perSecond,
		buckets: make(map[core.SessionID]*rate.Limiter),
	}
}

func (rl *RateLimiter) Allow(sid core.SessionID) bool {
	rl.mu.Lock()
	b, ok := rl.buckets[sid]
	if !ok {
		b = rate.NewLimiter(rl.limit, rl.burst)
		rl.buckets[sid] = b
	}
	rl.mu.Unlock()
	return b.Allow()
}

// Check is Allow as an error: ErrRateLimited once the bucket is empty.
func (rl *RateLimiter) Check(sid core.SessionID) error {
	if !rl.Allow(sid) {
		return domain.ErrRateLimited
	}
	return nil
}

// Forget drops the bucket of a closed connection.
func (rl *RateLimiter) Forget(sid core.SessionID) {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	delete(rl.buckets, sid)
}
