package jobs

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDefaultRetryPolicy(t *testing.T) {
	p := DefaultRetryPolicy()

	assert.Equal(t, 5*time.Second, p.Backoff(1))
	assert.Equal(t, 10*time.Second, p.Backoff(2))
	assert.Equal(t, 20*time.Second, p.Backoff(3))

	assert.False(t, p.Exhausted(1))
	assert.False(t, p.Exhausted(2))
	assert.True(t, p.Exhausted(3))
	assert.True(t, p.Exhausted(4))
}

func TestBackoffCapped(t *testing.T) {
	p := RetryPolicy{MaxAttempts: 50, InitialBackoff: time.Second, MaxBackoff: time.Minute}
	assert.Equal(t, 32*time.Second, p.Backoff(6))
	assert.Equal(t, time.Minute, p.Backoff(7))
	assert.Equal(t, time.Minute, p.Backoff(40))
}

func TestUnlimitedAttempts(t *testing.T) {
	p := RetryPolicy{InitialBackoff: time.Second}
	assert.False(t, p.Exhausted(1000))
}
