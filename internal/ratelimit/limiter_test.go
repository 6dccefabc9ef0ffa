package ratelimit

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainLimiter_PerHostBuckets(t *testing.T) {
	dl := NewDomainLimiter(0.001, 2)

	assert.True(t, dl.Allow("https://cdn.example/a.jpg"))
	assert.True(t, dl.Allow("https://CDN.example:443/b.jpg"))
	assert.False(t, dl.Allow("https://cdn.example/c.jpg"), "burst exhausted")

	assert.True(t, dl.Allow("https://other.example/a.jpg"))
	assert.Equal(t, 2, dl.Hosts())
}

func TestDomainLimiter_InvalidURLPasses(t *testing.T) {
	dl := NewDomainLimiter(1, 1)
	assert.True(t, dl.Allow("://bad"))
	assert.NoError(t, dl.Wait(context.Background(), "://bad"))
	assert.Zero(t, dl.Hosts())
}

func TestDomainLimiter_WaitHonorsContext(t *testing.T) {
	dl := NewDomainLimiter(0.001, 1)
	assert.NoError(t, dl.Wait(context.Background(), "https://cdn.example/1"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, dl.Wait(ctx, "https://cdn.example/2"))
}
