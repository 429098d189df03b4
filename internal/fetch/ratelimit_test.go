package fetch

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHostLimiter_SpacesSameHost(t *testing.T) {
	h := NewHostLimiter(20) // one request every 50ms
	ctx := context.Background()

	start := time.Now()
	require.NoError(t, h.Wait(ctx, "https://jobs.example.com/a"))
	require.NoError(t, h.Wait(ctx, "https://JOBS.example.com/b"))
	assert.GreaterOrEqual(t, time.Since(start), 40*time.Millisecond)
}

func TestHostLimiter_IndependentHosts(t *testing.T) {
	h := NewHostLimiter(0.5)
	ctx := context.Background()

	start := time.Now()
	require.NoError(t, h.Wait(ctx, "https://a.example.com"))
	require.NoError(t, h.Wait(ctx, "https://b.example.com"))
	assert.Less(t, time.Since(start), time.Second)
}

func TestHostLimiter_Disabled(t *testing.T) {
	var nilLimiter *HostLimiter
	assert.NoError(t, nilLimiter.Wait(context.Background(), "https://a.example.com"))
	assert.NoError(t, NewHostLimiter(0).Wait(context.Background(), "https://a.example.com"))
}

func TestHostLimiter_ContextCancelled(t *testing.T) {
	h := NewHostLimiter(0.1)
	require.NoError(t, h.Wait(context.Background(), "https://a.example.com"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Error(t, h.Wait(ctx, "https://a.example.com"))
}
