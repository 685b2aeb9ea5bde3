// Copyright 2021 Dalarub & Ettrich GmbH - All Rights Reserved
// Unauthorized copying of this file, via any medium is strictly prohibited
// Proprietary and confidential
// info@dalarub.com
//

package backend

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/relabs-tech/investpro/core/logger"
)

const (
	rateLimitSweepInterval = 5 * time.Minute
	rateLimitIdleTimeout   = 10 * time.Minute
)

// clientLimiter tracks a per-client rate limiter and when it was last seen
type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ipRateLimiter is a token bucket per client IP. Idle entries are swept
// while handling requests, there is no background goroutine.
type ipRateLimiter struct {
	limit rate.Limit
	burst int
	now   func() time.Time

	mutex     sync.Mutex
	clients   map[string]*clientLimiter
	lastSweep time.Time
}

func newIPRateLimiter(limit rate.Limit, burst int) *ipRateLimiter {
	return &ipRateLimiter{
		limit:     limit,
		burst:     burst,
		now:       time.Now,
		clients:   map[string]*clientLimiter{},
		lastSweep: time.Now(),
	}
}

// reserve returns the delay after which the client may send its next request.
// Zero means the request is allowed now.
func (l *ipRateLimiter) reserve(ip string) time.Duration {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	now := l.now()
	if now.Sub(l.lastSweep) > rateLimitSweepInterval {
		for key, cl := range l.clients {
			if now.Sub(cl.lastSeen) > rateLimitIdleTimeout {
				delete(l.clients, key)
			}
		}
		l.lastSweep = now
	}
	cl, ok := l.clients[ip]
	if !ok {
		cl = &clientLimiter{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.clients[ip] = cl
	}
	cl.lastSeen = now

	reservation := cl.limiter.ReserveN(now, 1)
	if !reservation.OK() {
		return time.Second
	}
	delay := reservation.DelayFrom(now)
	if delay > 0 {
		reservation.CancelAt(now)
	}
	return delay
}

func (l *ipRateLimiter) size() int {
	l.mutex.Lock()
	defer l.mutex.Unlock()
	return len(l.clients)
}

// rateLimited wraps h with the login rate limit. Without a limiter h is returned as is.
func (b *Backend) rateLimited(h http.HandlerFunc) http.Handler {
	if b.limiter == nil {
		return h
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if delay := b.limiter.reserve(ip); delay > 0 {
			logger.FromContext(r.Context()).Warnf("rate limit exceeded for %s on %s", ip, r.URL.Path)
			w.Header().Set("Retry-After", strconv.Itoa(int(delay.Seconds())+1))
			writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": "Too many requests. Try again later."})
			return
		}
		h.ServeHTTP(w, r)
	})
}

// clientIP extracts the client IP address from the request, stripping the port.
// X-Forwarded-For is ignored, it can be spoofed.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
