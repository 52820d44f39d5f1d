package ratelimit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestTokenBucketDrains(t *testing.T) {
	tb := NewTokenBucket(2, 0)

	assert.True(t, tb.Allow())
	assert.True(t, tb.Allow())
	assert.False(t, tb.Allow())

	tb.Reset()
	assert.True(t, tb.Allow())
}

func TestKeyedLimiterIsolatesKeys(t *testing.T) {
	l := NewKeyedLimiter(1, 0, time.Minute)
	defer l.Stop()

	assert.True(t, l.Allow("alice"))
	assert.False(t, l.Allow("alice"))
	assert.True(t, l.Allow("bob"))
	assert.Equal(t, 2, l.Len())
}

func TestKeyedLimiterEvictsIdle(t *testing.T) {
	l := NewKeyedLimiter(1, 0, time.Minute)
	defer l.Stop()

	l.Allow("alice")
	l.evictIdle(time.Now().Add(2 * time.Minute))

	assert.Zero(t, l.Len())
	assert.True(t, l.Allow("alice"))
}
