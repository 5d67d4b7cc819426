// Package handlers provides the HTTP handlers of the charon server.
package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/nextstrain/auspice/internal/catalog"
	"github.com/nextstrain/auspice/internal/dataset"
	"github.com/nextstrain/auspice/internal/tiles"
)

// Lister lists the resources available to the server.
type Lister interface {
	Scan(ctx context.Context) (catalog.Listing, error)
	Datasets(ctx context.Context, dir string) ([]dataset.Dataset, error)
}

// TileGetter returns map tile images.
type TileGetter interface {
	Get(ctx context.Context, t tiles.Tile, userAgent string) ([]byte, error)
}

// writeJSON sends v as a JSON response with the given status. json.Marshal escapes '<', '>' and '&'
// so that responses are safe to embed in HTML.
func writeJSON(w http.ResponseWriter, reqID string, status int, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		http.Error(w, "could not encode response", http.StatusInternalServerError)
		slog.Error("Could not encode response", "req_id", reqID, "err", err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(b); err != nil {
		slog.Warn("Could not write response", "req_id", reqID, "err", err)
	}
}
