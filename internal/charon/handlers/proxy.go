package handlers

import (
	"log/slog"
	"net/http"
	"net/http/httputil"
	"net/url"

	"github.com/google/uuid"
	"github.com/nextstrain/auspice/internal/charon/metrics"
)

// Proxy forwards charon requests to another server implementing the same API.
type Proxy struct {
	proxy *httputil.ReverseProxy
}

// NewProxy creates a Proxy forwarding to upstream.
func NewProxy(upstream *url.URL) *Proxy {
	p := httputil.NewSingleHostReverseProxy(upstream)
	director := p.Director
	p.Director = func(r *http.Request) {
		director(r)
		r.Host = upstream.Host
	}
	p.ErrorHandler = func(w http.ResponseWriter, r *http.Request, err error) {
		slog.Error("Upstream charon server failed", "url", r.URL.String(), "err", err)
		http.Error(w, "Upstream server unavailable", http.StatusBadGateway)
	}
	return &Proxy{proxy: p}
}

// ServeHTTP forwards GET requests. Charon requests are read only, so other methods are not implemented.
func (h *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	metrics.ApplyLabels(r)
	reqID := uuid.New().String()

	if r.Method != http.MethodGet {
		http.Error(w, "Method not implemented", http.StatusNotImplemented)
		slog.Warn("Proxy received a non GET request", "req_id", reqID, "method", r.Method, "url", r.URL.String())
		return
	}

	slog.Info("Proxying charon request", "req_id", reqID, "url", r.URL.RequestURI())
	h.proxy.ServeHTTP(w, r)
}
