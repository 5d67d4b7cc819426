// Package web holds the static assets embedded in the auspice binary.
package web

import _ "embed"

// Placeholder is the index page served when no client bundle is available.
//
//go:embed index.html
var Placeholder []byte
