package handlers

import (
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/nextstrain/auspice/internal/charon/metrics"
	"github.com/nextstrain/auspice/internal/dataset"
)

const datasetClientMsg = "couldn't fetch JSONs"

// Dataset answers getDataset requests from the datasets of one directory.
type Dataset struct {
	lister Lister
	dir    string
}

// NewDataset creates a Dataset handler serving the datasets found in dir.
func NewDataset(l Lister, dir string) *Dataset {
	return &Dataset{lister: l, dir: dir}
}

// ServeHTTP streams the requested dataset or sidecar file, converting v1 datasets on the fly.
// Requests without an exact match are redirected to the closest available dataset.
func (h *Dataset) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	metrics.ApplyLabels(r)
	reqID := uuid.New().String()
	q := r.URL.Query()
	slog.Info("GET DATASET query received", "req_id", reqID, "query", r.URL.RawQuery)

	req, err := dataset.InterpretRequest(q.Get("prefix"), q.Get("type"))
	if err != nil {
		http.Error(w, datasetClientMsg, http.StatusBadRequest)
		slog.Warn("Invalid dataset request", "req_id", reqID, "err", err)
		return
	}

	available, err := h.lister.Datasets(r.Context(), h.dir)
	if err != nil {
		http.Error(w, datasetClientMsg, http.StatusInternalServerError)
		slog.Error("Could not list available datasets", "req_id", reqID, "err", err)
		return
	}

	if _, ok := dataset.Find(available, req.Path()); !ok {
		if match, ok := dataset.ClosestMatch(req.Parts, available); ok {
			loc := redirectLocation(match, q.Get("type"))
			slog.Info("Redirecting to closest dataset", "req_id", reqID, "request", req.Path(), "location", loc)
			http.Redirect(w, r, loc, http.StatusFound)
			return
		}
	}

	addr, err := dataset.FetchAddress(req, available)
	if errors.Is(err, dataset.ErrNotFound) {
		http.Error(w, datasetClientMsg, http.StatusNotFound)
		slog.Warn("Dataset not found", "req_id", reqID, "err", err)
		return
	} else if err != nil {
		http.Error(w, datasetClientMsg, http.StatusInternalServerError)
		slog.Error("Could not locate dataset", "req_id", reqID, "err", err)
		return
	}

	if addr.IsV1Pair() {
		v2, err := dataset.ConvertFiles(addr.Meta, addr.Tree)
		if err != nil {
			http.Error(w, datasetClientMsg, http.StatusInternalServerError)
			slog.Error("Could not convert v1 dataset", "req_id", reqID, "err", err)
			return
		}
		writeJSON(w, reqID, http.StatusOK, v2)
		return
	}

	f, err := os.Open(addr.File)
	if err != nil {
		http.Error(w, http.StatusText(http.StatusNotFound), http.StatusNotFound)
		slog.Warn("Failed to read dataset file", "req_id", reqID, "file", addr.File, "err", err)
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "application/json")
	if _, err := io.Copy(w, f); err != nil {
		slog.Warn("Could not stream dataset file", "req_id", reqID, "file", addr.File, "err", err)
		return
	}
	slog.Debug("Sent dataset file", "req_id", reqID, "file", addr.File)
}

// redirectLocation returns the getDataset request for match. The prefix is query escaped so that names
// holding "+", "&" or "#" read back unchanged, keeping its separators readable.
func redirectLocation(match, typ string) string {
	prefix := strings.ReplaceAll(url.QueryEscape("/"+match), "%2F", "/")
	loc := "/charon/getDataset?prefix=" + prefix
	if typ != "" {
		loc += "&type=" + url.QueryEscape(typ)
	}
	return loc
}
