package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/nextstrain/auspice/internal/charon/metrics"
	"github.com/nextstrain/auspice/internal/tiles"
)

// Tiles serves map tiles through a cache. It expects the s, z, x and y path values.
type Tiles struct {
	cache TileGetter
}

// NewTiles creates a Tiles handler.
func NewTiles(cache TileGetter) *Tiles {
	return &Tiles{cache: cache}
}

type tileError struct {
	Error string `json:"error"`
}

// ServeHTTP sends the PNG image of the requested tile.
func (h *Tiles) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	metrics.ApplyLabels(r)
	reqID := uuid.New().String()

	t, err := tiles.Parse(r.PathValue("s"), r.PathValue("z"), r.PathValue("x"), r.PathValue("y"))
	if err != nil {
		slog.Error("Invalid tile request", "req_id", reqID, "err", err)
		writeJSON(w, reqID, http.StatusBadRequest, tileError{Error: "Bad request"})
		return
	}

	img, err := h.cache.Get(r.Context(), t, r.UserAgent())
	if errors.Is(err, tiles.ErrNotFound) {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		return
	} else if err != nil {
		slog.Error("Could not get tile", "req_id", reqID, "err", err)
		writeJSON(w, reqID, http.StatusInternalServerError, tileError{Error: "server error: " + err.Error()})
		return
	}

	w.Header().Set("Content-Type", "image/png")
	if _, err := w.Write(img); err != nil {
		slog.Warn("Could not write tile", "req_id", reqID, "err", err)
	}
}
