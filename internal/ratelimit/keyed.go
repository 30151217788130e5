// Package ratelimit holds per-key token buckets.
package ratelimit

import (
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Keyed hands out one token bucket per key (an email, a client IP).
type Keyed struct {
	every time.Duration
	burst int
	now   func() time.Time

	mu      sync.Mutex
	buckets map[string]*rate.Limiter
}

// NewKeyed allows burst attempts per key and refills one every interval.
func NewKeyed(burst int, every time.Duration) *Keyed {
	return &Keyed{
		every:   every,
		burst:   burst,
		now:     time.Now,
		buckets: make(map[string]*rate.Limiter),
	}
}

func (k *Keyed) bucketLocked(key string) *rate.Limiter {
	l, ok := k.buckets[key]
	if !ok {
		l = rate.NewLimiter(rate.Every(k.every), k.burst)
		k.buckets[key] = l
	}
	return l
}

// Allow spends one token for key. Keys are compared case-insensitively.
func (k *Keyed) Allow(key string) bool {
	return k.AllowAll(key)
}

// AllowAll spends one token from every key's bucket, or none at all when any
// of them is empty. Empty keys are ignored.
func (k *Keyed) AllowAll(keys ...string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()

	now := k.now()
	var taken []*rate.Reservation
	for _, key := range keys {
		key = strings.ToLower(strings.TrimSpace(key))
		if key == "" {
			continue
		}
		r := k.bucketLocked(key).ReserveN(now, 1)
		if !r.OK() || r.DelayFrom(now) > 0 {
			r.CancelAt(now)
			for _, t := range taken {
				t.CancelAt(now)
			}
			return false
		}
		taken = append(taken, r)
	}
	return true
}

// RetryAfter is how long until key's bucket has a token again.
func (k *Keyed) RetryAfter(key string) time.Duration {
	k.mu.Lock()
	defer k.mu.Unlock()

	key = strings.ToLower(strings.TrimSpace(key))
	l, ok := k.buckets[key]
	if !ok {
		return 0
	}
	now := k.now()
	r := l.ReserveN(now, 1)
	defer r.CancelAt(now)
	if !r.OK() {
		return k.every
	}
	return r.DelayFrom(now)
}

// Prune drops buckets that have refilled completely and reports how many.
func (k *Keyed) Prune() int {
	k.mu.Lock()
	defer k.mu.Unlock()

	now := k.now()
	n := 0
	for key, l := range k.buckets {
		if l.TokensAt(now) >= float64(k.burst) {
			delete(k.buckets, key)
			n++
		}
	}
	return n
}

// Len is the number of tracked keys.
func (k *Keyed) Len() int {
	k.mu.Lock()
	defer k.mu.Unlock()
	return len(k.buckets)
}
