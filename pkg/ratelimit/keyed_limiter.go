package ratelimit

import (
	"sync"
	"time"
)

// KeyedLimiter keeps one token bucket per key (user id, remote address)
type KeyedLimiter struct {
	buckets    map[string]*keyedBucket
	mu         sync.Mutex
	maxTokens  float64
	refillRate float64
	idleTTL    time.Duration
	cleanup    *time.Ticker
	stopChan   chan struct{}
	stopOnce   sync.Once
}

type keyedBucket struct {
	bucket   *TokenBucket
	lastSeen time.Time
}

// NewKeyedLimiter creates a limiter; buckets unused for idleTTL are dropped
func NewKeyedLimiter(maxTokens, refillRate float64, idleTTL time.Duration) *KeyedLimiter {
	if idleTTL <= 0 {
		idleTTL = 10 * time.Minute
	}

	l := &KeyedLimiter{
		buckets:    make(map[string]*keyedBucket),
		maxTokens:  maxTokens,
		refillRate: refillRate,
		idleTTL:    idleTTL,
		cleanup:    time.NewTicker(idleTTL),
		stopChan:   make(chan struct{}),
	}

	go l.cleanupLoop()

	return l
}

// Allow reports whether key may proceed
func (l *KeyedLimiter) Allow(key string) bool {
	return l.bucketFor(key).Allow()
}

func (l *KeyedLimiter) bucketFor(key string) *TokenBucket {
	l.mu.Lock()
	defer l.mu.Unlock()

	kb, exists := l.buckets[key]

	if !exists {
		kb = &keyedBucket{bucket: NewTokenBucket(l.maxTokens, l.refillRate)}
		l.buckets[key] = kb
	}
	kb.lastSeen = time.Now()

	return kb.bucket
}

// Len returns the number of tracked keys
func (l *KeyedLimiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

func (l *KeyedLimiter) evictIdle(now time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	for key, kb := range l.buckets {
		if now.Sub(kb.lastSeen) > l.idleTTL {
			delete(l.buckets, key)
		}
	}
}

func (l *KeyedLimiter) cleanupLoop() {
	for {
		select {
		case now := <-l.cleanup.C:
			l.evictIdle(now)
		case <-l.stopChan:
			l.cleanup.Stop()
			return
		}
	}
}

// Stop ends the cleanup goroutine
func (l *KeyedLimiter) Stop() {
	l.stopOnce.Do(func() { close(l.stopChan) })
}
