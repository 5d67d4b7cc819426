package middleware_test

import (
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nextstrain/auspice/internal/charon/middleware"
	"github.com/stretchr/testify/assert"
	"golang.org/x/time/rate"
)

func makeRequestFrom(handler http.Handler, ip, port string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/tiles/a/0/0/0", nil)
	req.RemoteAddr = net.JoinHostPort(ip, port)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)
	return rr
}

func okHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}

func TestLimiter(t *testing.T) {
	t.Parallel()

	tests := map[string]struct {
		burst int
		ip2   string
		port2 string

		status2 int
	}{
		"Under limit OK": {
			burst: 2,
		},
		"Blocks over limit": {
			burst:   1,
			status2: http.StatusTooManyRequests,
		},
		"Different ports of one IP share a limit": {
			burst:   1,
			port2:   "8081",
			status2: http.StatusTooManyRequests,
		},
		"Different IPs have independent limits": {
			burst: 1,
			ip2:   "5.6.7.8",
		},
	}

	for name, tc := range tests {
		t.Run(name, func(t *testing.T) {
			t.Parallel()

			if tc.ip2 == "" {
				tc.ip2 = "1.2.3.4"
			}
			if tc.port2 == "" {
				tc.port2 = "8080"
			}
			if tc.status2 == 0 {
				tc.status2 = http.StatusOK
			}

			handler := middleware.New(rate.Every(time.Hour), tc.burst).RateLimitMiddleware(http.HandlerFunc(okHandler))

			rr1 := makeRequestFrom(handler, "1.2.3.4", "8080")
			rr2 := makeRequestFrom(handler, tc.ip2, tc.port2)

			assert.Equal(t, http.StatusOK, rr1.Code, "First request should pass")
			assert.Equal(t, tc.status2, rr2.Code, "Unexpected status for the second request")
		})
	}
}

func TestLimiterInvalidRemoteAddr(t *testing.T) {
	t.Parallel()

	handler := middleware.New(rate.Every(time.Second), 1).RateLimitMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("Handler should not be called for bad IP")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "invalid-ip"
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code, "Requests without a parsable address should be rejected")
}

func TestLimiterForgetsIdleClients(t *testing.T) {
	t.Parallel()

	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	l := middleware.New(rate.Every(time.Hour), 1)
	l.SetClock(func() time.Time { return now })
	handler := l.RateLimitMiddleware(http.HandlerFunc(okHandler))

	makeRequestFrom(handler, "1.2.3.4", "8080")
	makeRequestFrom(handler, "5.6.7.8", "8080")
	assert.Equal(t, 2, l.Clients(), "Both clients should be tracked")

	now = now.Add(time.Hour)
	rr := makeRequestFrom(handler, "1.2.3.4", "8080")
	assert.Equal(t, http.StatusOK, rr.Code, "A forgotten client should get a fresh limit")
	assert.Equal(t, 1, l.Clients(), "Idle clients should be forgotten")
}
