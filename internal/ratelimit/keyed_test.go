package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestKeyed(burst int, every time.Duration) (*Keyed, *time.Time) {
	clock := time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC)
	k := NewKeyed(burst, every)
	k.now = func() time.Time { return clock }
	return k, &clock
}

func TestKeyed_BurstThenRefill(t *testing.T) {
	k, clock := newTestKeyed(3, 15*time.Minute)

	for i := 0; i < 3; i++ {
		assert.True(t, k.Allow("a@example.com"), "attempt %d", i+1)
	}
	assert.False(t, k.Allow("a@example.com"))
	assert.Equal(t, 15*time.Minute, k.RetryAfter("a@example.com"))

	*clock = clock.Add(15 * time.Minute)
	assert.True(t, k.Allow("a@example.com"))
	assert.False(t, k.Allow("a@example.com"))
}

func TestKeyed_KeysAreIndependentAndCaseFolded(t *testing.T) {
	k, _ := newTestKeyed(1, time.Hour)

	assert.True(t, k.Allow("A@Example.com"))
	assert.False(t, k.Allow("a@example.com "))
	assert.True(t, k.Allow("b@example.com"))
}

func TestKeyed_AllowAllIsAllOrNothing(t *testing.T) {
	k, _ := newTestKeyed(1, time.Hour)

	assert.True(t, k.AllowAll("ip-1"))
	// ip-1 is exhausted, so the email bucket must not be charged.
	assert.False(t, k.AllowAll("mail@x.io", "ip-1"))
	assert.True(t, k.AllowAll("mail@x.io"))
}

func TestKeyed_Prune(t *testing.T) {
	k, clock := newTestKeyed(2, time.Minute)

	k.Allow("a")
	k.Allow("b")
	k.Allow("b")
	assert.Equal(t, 2, k.Len())

	*clock = clock.Add(time.Minute)
	assert.Equal(t, 1, k.Prune())
	assert.Equal(t, 1, k.Len())

	*clock = clock.Add(time.Minute)
	assert.Equal(t, 1, k.Prune())
	assert.Equal(t, 0, k.Len())
}
