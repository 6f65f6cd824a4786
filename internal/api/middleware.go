package api

import (
	"net/http"
	"sync"

	"golang.org/x/time/rate"
)

// tenantLimiter throttles requests per tenant with a token bucket each.
// The tenant is taken from the X-Tenant-ID header; requests without one
// share the anonymous bucket.
type tenantLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	rps      rate.Limit
	burst    int
}

func newTenantLimiter(requestsPerSecond float64, burst int) *tenantLimiter {
	return &tenantLimiter{
		limiters: make(map[string]*rate.Limiter),
		rps:      rate.Limit(requestsPerSecond),
		burst:    burst,
	}
}

func (l *tenantLimiter) limiterFor(tenantID string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	lim, ok := l.limiters[tenantID]
	if !ok {
		lim = rate.NewLimiter(l.rps, l.burst)
		l.limiters[tenantID] = lim
	}
	return lim
}

func (l *tenantLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tenantID := r.Header.Get("X-Tenant-ID")
		if !l.limiterFor(tenantID).Allow() {
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}
