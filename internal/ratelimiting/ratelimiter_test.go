package ratelimiting

import (
	"net/http"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

type mockedRateLimiter struct {
	consumeFunc func(key string) bool
}

func (m *mockedRateLimiter) Consume(key string) bool {
	return m.consumeFunc(key)
}

func TestTokenBucketRateLimiter(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping test in short mode")
	}
	rateLimiter, stop := NewTokenBucketRateLimiter(1, 2)
	defer stop()

	assert.True(t, rateLimiter.Consume(ModelKey("locus_bin_set")))

	// Burst of 2
	assert.True(t, rateLimiter.Consume(ModelKey("channel")))
	assert.True(t, rateLimiter.Consume(ModelKey("channel")))
	assert.False(t, rateLimiter.Consume(ModelKey("channel")))

	time.Sleep(1000 * time.Millisecond)
	runtime.Gosched()

	// Refill rate of 1
	assert.True(t, rateLimiter.Consume(ModelKey("channel")))
	assert.False(t, rateLimiter.Consume(ModelKey("channel")))

	// Burst of 2 - even after refill
	assert.True(t, rateLimiter.Consume("ip: 1.2.3.4"))
	assert.True(t, rateLimiter.Consume("ip: 1.2.3.4"))
	assert.False(t, rateLimiter.Consume("ip: 1.2.3.4"))

	assert.True(t, rateLimiter.Consume(ModelKey("locus_bin_set")))
	assert.True(t, rateLimiter.Consume(ModelKey("locus_bin_set")))
	assert.False(t, rateLimiter.Consume(ModelKey("locus_bin_set")))
}

func TestIPKeyFunc(t *testing.T) {
	t.Parallel()

	for _, tc := range []struct {
		remoteAddr string
		key        string
	}{
		{remoteAddr: "123.123.123.123", key: "ip: 123.123.123.123"},
		{remoteAddr: "123.123.123.123:4567", key: "ip: 123.123.123.123"},
		{remoteAddr: "[::1]:4567", key: "ip: [::1]"},
		{remoteAddr: "[::1]", key: "ip: [::1]"},
	} {
		t.Run(tc.remoteAddr, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tc.key, IPKeyFunc(&http.Request{RemoteAddr: tc.remoteAddr}))
		})
	}
}

func TestModelKey(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "model: channel", ModelKey("channel"))
}

func TestRequestBasedRateLimiter(t *testing.T) {
	var expectedKey string
	var allowed bool
	rateLimiter := &mockedRateLimiter{
		consumeFunc: func(key string) bool {
			t.Helper()
			assert.Equal(t, expectedKey, key)
			return allowed
		},
	}
	requestRateLimiter := NewRequestBasedRateLimiter(rateLimiter, IPKeyFunc)

	expectedKey = "ip: 1.1.1.1"
	allowed = true
	assert.True(t, requestRateLimiter.Consume(&http.Request{RemoteAddr: "1.1.1.1:80"}))
	assert.True(t, requestRateLimiter.Consume(&http.Request{RemoteAddr: "1.1.1.1"}))
	allowed = false
	assert.False(t, requestRateLimiter.Consume(&http.Request{RemoteAddr: "1.1.1.1"}))
	assert.Equal(t, "ip: 1.1.1.1", requestRateLimiter.KeyFor(&http.Request{RemoteAddr: "1.1.1.1"}))

	expectedKey = "ip: 2.1.1.1"
	allowed = true
	assert.True(t, requestRateLimiter.Consume(&http.Request{RemoteAddr: "2.1.1.1"}))
}
