package transport

import (
	"time"
)

// RateLimit limits inbound PUBLISH packets per connection.
type RateLimit struct {
	// Rate is the number of publishes allowed per Interval. Zero disables the limit.
	Rate int

	// Interval is the rate window. Default: 1s.
	Interval time.Duration

	// Burst is the most publishes accepted at once. Default: Rate * 2.
	Burst int
}

// bucket is a token bucket refilled continuously at Rate per Interval.
type bucket struct {
	tokens   float64
	max      float64
	perNanos float64
	lastFill time.Time
	now      func() time.Time
}

// newBucket returns nil when the limit is disabled.
func (l RateLimit) newBucket(now func() time.Time) *bucket {
	if l.Rate <= 0 {
		return nil
	}
	if l.Interval <= 0 {
		l.Interval = time.Second
	}
	if l.Burst <= 0 {
		l.Burst = l.Rate * 2
	}
	return &bucket{
		tokens:   float64(l.Burst),
		max:      float64(l.Burst),
		perNanos: float64(l.Rate) / float64(l.Interval),
		lastFill: now(),
		now:      now,
	}
}

// take spends one token. A nil bucket always allows.
func (b *bucket) take() bool {
	if b == nil {
		return true
	}

	now := b.now()
	if elapsed := now.Sub(b.lastFill); elapsed > 0 {
		b.tokens = min(b.max, b.tokens+float64(elapsed)*b.perNanos)
		b.lastFill = now
	}

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}
