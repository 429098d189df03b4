package fetch

import (
	"context"
	"net/url"
	"strings"
	"sync"

	"golang.org/x/time/rate"
)

// HostLimiter spaces requests to the same host. Sources running in the same
// batch share it, so two adapters pointing at one domain do not double the rate.
type HostLimiter struct {
	perSec   float64
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
}

// NewHostLimiter returns a limiter allowing perSec requests per host with a
// burst of one. A non-positive rate disables limiting.
func NewHostLimiter(perSec float64) *HostLimiter {
	return &HostLimiter{perSec: perSec, limiters: make(map[string]*rate.Limiter)}
}

// Wait blocks until a request to rawURL's host is allowed or ctx is done.
func (h *HostLimiter) Wait(ctx context.Context, rawURL string) error {
	if h == nil || h.perSec <= 0 {
		return nil
	}
	host := hostOf(rawURL)
	if host == "" {
		return nil
	}

	h.mu.Lock()
	lim, ok := h.limiters[host]
	if !ok {
		lim = rate.NewLimiter(rate.Limit(h.perSec), 1)
		h.limiters[host] = lim
	}
	h.mu.Unlock()

	return lim.Wait(ctx)
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
