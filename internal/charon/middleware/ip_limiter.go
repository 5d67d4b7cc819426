// Package middleware provides HTTP middlewares for the charon server.
package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// idleTimeout is how long a client limiter is kept after its last request.
const idleTimeout = 10 * time.Minute

type client struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// IPLimiter rate-limits requests per client IP.
type IPLimiter struct {
	mu        sync.Mutex
	clients   map[string]*client
	lastPrune time.Time

	rate  rate.Limit
	burst int

	now func() time.Time
}

// New creates an IPLimiter allowing r requests per second per client, with bursts of b.
func New(r rate.Limit, b int) *IPLimiter {
	return &IPLimiter{
		clients: make(map[string]*client),
		rate:    r,
		burst:   b,
		now:     time.Now,
	}
}

func (l *IPLimiter) allow(ip string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastPrune) > idleTimeout {
		for k, c := range l.clients {
			if now.Sub(c.lastSeen) > idleTimeout {
				delete(l.clients, k)
			}
		}
		l.lastPrune = now
	}

	c, ok := l.clients[ip]
	if !ok {
		c = &client{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.clients[ip] = c
	}
	c.lastSeen = now
	return c.limiter.AllowN(now, 1)
}

// RateLimitMiddleware rejects with 429 the requests of clients over their limit.
func (l *IPLimiter) RateLimitMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip, _, err := net.SplitHostPort(r.RemoteAddr)
		if err != nil {
			http.Error(w, "Unable to determine IP", http.StatusBadRequest)
			return
		}
		if !l.allow(ip) {
			slog.Debug("Rate limit exceeded", "ip", ip, "path", r.URL.Path)
			http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}
