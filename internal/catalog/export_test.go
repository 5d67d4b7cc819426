package catalog

import "log/slog"

// WithLogger is an option to set the logger for the Catalog.
func WithLogger(l *slog.Logger) Options {
	return func(o *options) {
		o.Logger = l
	}
}
