// Package metrics provides the Prometheus middlewares instrumenting the charon server.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type label string

// LabelRoute is the label holding the matched route.
const LabelRoute label = "route"

// unknownRoute is the route label of requests that did not go through ApplyLabels.
const unknownRoute = "unknown"

// EndpointMiddleware collects request metrics for single endpoints.
type EndpointMiddleware struct {
	buckets  []float64
	registry prometheus.Registerer
}

// NewEndpointMiddleware creates an EndpointMiddleware registering its collectors in registry.
func NewEndpointMiddleware(registry prometheus.Registerer) *EndpointMiddleware {
	return &EndpointMiddleware{
		// Request durations, from 5ms to about 10s.
		buckets:  prometheus.ExponentialBuckets(0.005, 2, 12),
		registry: registry,
	}
}

// Wrap instruments handler with a request counter, a duration histogram and a response size summary,
// all labelled with handlerName.
func (m *EndpointMiddleware) Wrap(handlerName string, handler http.Handler) http.HandlerFunc {
	reg := prometheus.WrapRegistererWith(prometheus.Labels{"handler": handlerName}, m.registry)
	labels := []string{"method", "code", string(LabelRoute)}
	routeOpt := promhttp.WithLabelFromCtx(string(LabelRoute), routeFromCtx)

	requestsTotal := promauto.With(reg).NewCounterVec(
		prometheus.CounterOpts{
			Name: "charon_requests_total",
			Help: "Number of requests to the endpoint.",
		}, labels,
	)
	requestDuration := promauto.With(reg).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "charon_request_duration_seconds",
			Help:    "Latency of the requests to the endpoint.",
			Buckets: m.buckets,
		}, labels,
	)
	responseSize := promauto.With(reg).NewSummaryVec(
		prometheus.SummaryOpts{
			Name: "charon_response_size_bytes",
			Help: "Size of the responses of the endpoint.",
		}, labels,
	)

	return promhttp.InstrumentHandlerCounter(
		requestsTotal,
		promhttp.InstrumentHandlerDuration(
			requestDuration,
			promhttp.InstrumentHandlerResponseSize(responseSize, handler, routeOpt),
			routeOpt,
		),
		routeOpt,
	).ServeHTTP
}

// MuxMiddleware counts every request reaching a mux, matched or not.
type MuxMiddleware struct {
	registry prometheus.Registerer
}

// NewMuxMiddleware creates a MuxMiddleware registering its collector in registry.
func NewMuxMiddleware(registry prometheus.Registerer) *MuxMiddleware {
	return &MuxMiddleware{
		registry: registry,
	}
}

// Wrap instruments handler with a request counter labelled with handlerName.
func (m *MuxMiddleware) Wrap(handlerName string, handler http.Handler) http.HandlerFunc {
	reg := prometheus.WrapRegistererWith(prometheus.Labels{"handler": handlerName}, m.registry)

	requestsTotal := promauto.With(reg).NewCounterVec(
		prometheus.CounterOpts{
			Name: "charon_mux_requests_total",
			Help: "Number of requests to the mux.",
		}, []string{"method", "code"},
	)

	return promhttp.InstrumentHandlerCounter(requestsTotal, handler)
}

func routeFromCtx(ctx context.Context) string {
	if route, ok := ctx.Value(LabelRoute).(string); ok {
		return route
	}
	return unknownRoute
}

// ApplyLabels stores the route of r in its context. The mux pattern is used when r was routed by one,
// keeping the label bounded whatever the requested path.
func ApplyLabels(r *http.Request) {
	route := r.Pattern
	if route == "" {
		route = r.URL.Path
	}
	*r = *r.WithContext(context.WithValue(r.Context(), LabelRoute, route))
}

// HandlerApplyLabels wraps handler so that ApplyLabels runs before it.
func HandlerApplyLabels(handler http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ApplyLabels(r)
		handler.ServeHTTP(w, r)
	})
}
