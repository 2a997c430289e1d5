package httpapi

import (
	"testing"
	"time"

	"github.com/dmitrijs2005/fitauth/internal/timex"
	"github.com/stretchr/testify/assert"
)

func TestRateLimiter_FixedWindow(t *testing.T) {
	clock := &timex.FixedClock{T: time.Date(2024, 1, 1, 0, 0, 30, 0, time.UTC)}
	rl := newRateLimiter(2, time.Minute, clock)

	assert.True(t, rl.allow("a"))
	assert.True(t, rl.allow("a"))
	assert.False(t, rl.allow("a"))
	assert.True(t, rl.allow("b"), "keys are independent")

	clock.T = clock.T.Add(30 * time.Second)
	assert.True(t, rl.allow("a"), "new window resets the budget")
}

func TestRateLimiter_SweepsOldWindows(t *testing.T) {
	clock := &timex.FixedClock{T: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	rl := newRateLimiter(1, time.Minute, clock)

	rl.allow("a")
	rl.allow("b")
	assert.Len(t, rl.data, 2)

	clock.T = clock.T.Add(time.Minute)
	rl.allow("c")
	assert.Len(t, rl.data, 1)
}

func TestRetryAfter(t *testing.T) {
	assert.Equal(t, "60", retryAfter(time.Minute))
	assert.Equal(t, "1", retryAfter(time.Millisecond))
}
