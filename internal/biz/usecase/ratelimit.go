package usecase

import "time"

// RateLimiter is a per-sender minimum-interval gate.
// A rejected attempt still restarts the interval, so a sender that keeps
// retrying too fast stays blocked until they pause for minInterval.
type RateLimiter struct {
	minInterval time.Duration
	last        *shardedMap[time.Time]
}

// NewRateLimiter creates a rate limiter; minInterval <= 0 admits everything
func NewRateLimiter(minInterval time.Duration) *RateLimiter {
	return &RateLimiter{
		minInterval: minInterval,
		last:        newShardedMap[time.Time](0),
	}
}

// Allow reports whether the sender may submit at now
func (r *RateLimiter) Allow(senderID string, now time.Time) bool {
	if r.minInterval <= 0 {
		return true
	}

	allowed := true
	r.last.with(senderID, func(items map[string]time.Time) {
		if last, ok := items[senderID]; ok && now.Sub(last) < r.minInterval {
			allowed = false
		}
		items[senderID] = now
	})
	return allowed
}

// Sweep drops senders idle for at least minInterval and returns how many.
// A dropped sender behaves exactly like one whose interval has elapsed.
func (r *RateLimiter) Sweep(now time.Time) int {
	removed := 0
	r.last.each(func(items map[string]time.Time) {
		for sender, last := range items {
			if now.Sub(last) >= r.minInterval {
				delete(items, sender)
				removed++
			}
		}
	})
	return removed
}

// Len returns the number of tracked senders
func (r *RateLimiter) Len() int {
	return r.last.size()
}
