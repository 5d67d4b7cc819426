package middleware

import "time"

// SetClock replaces the clock of the limiter.
func (l *IPLimiter) SetClock(now func() time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.now = now
}

// Clients returns the number of clients tracked by the limiter.
func (l *IPLimiter) Clients() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.clients)
}
