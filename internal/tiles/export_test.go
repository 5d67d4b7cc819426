package tiles

import (
	"log/slog"
	"net/http"
)

// WithLogger is an option to set the logger for the Cache.
func WithLogger(l *slog.Logger) Options {
	return func(o *options) {
		o.Logger = l
	}
}

// WithClient is an option to set the HTTP client used to reach the upstream server.
func WithClient(c *http.Client) Options {
	return func(o *options) {
		o.Client = c
	}
}
