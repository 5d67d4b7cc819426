package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/nextstrain/auspice/internal/charon/metrics"
	"github.com/nextstrain/auspice/internal/genomedb"
)

// GenomeData answers getGenomeData requests from the genome databases of a dataset directory.
type GenomeData struct {
	dir         string
	maxBodySize int64
}

// NewGenomeData creates a GenomeData handler for the databases under dir.
func NewGenomeData(dir string, maxBodySize int64) *GenomeData {
	return &GenomeData{dir: dir, maxBodySize: maxBodySize}
}

type genomeRequest struct {
	Prefix string   `json:"prefix"`
	IDs    []string `json:"ids"`
}

// ServeHTTP reports whether the database of the prefix exists when no ID is requested,
// and sends the requested sequences as FASTA otherwise.
func (h *GenomeData) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	metrics.ApplyLabels(r)
	reqID := uuid.New().String()

	r.Body = http.MaxBytesReader(w, r.Body, h.maxBodySize)
	var req genomeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		slog.Warn("Invalid genome data request", "req_id", reqID, "err", err)
		return
	}

	dbPath, err := genomedb.PathForPrefix(h.dir, req.Prefix)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		slog.Warn("Invalid genome data request", "req_id", reqID, "err", err)
		return
	}
	slog.Info("Genome data requested", "req_id", reqID, "db", dbPath, "ids", len(req.IDs))

	if len(req.IDs) == 0 {
		writeJSON(w, reqID, http.StatusOK, map[string]bool{"result": genomedb.Exists(dbPath)})
		return
	}

	store, err := genomedb.Open(dbPath)
	if errors.Is(err, genomedb.ErrNotFound) {
		http.Error(w, "No genome database for "+req.Prefix, http.StatusNotFound)
		slog.Warn("Genome database not found", "req_id", reqID, "db", dbPath)
		return
	} else if err != nil {
		http.Error(w, "Could not open genome database", http.StatusInternalServerError)
		slog.Error("Could not open genome database", "req_id", reqID, "db", dbPath, "err", err)
		return
	}
	defer store.Close()

	records, err := store.Fetch(r.Context(), req.IDs)
	if err != nil {
		http.Error(w, "Could not fetch genome records", http.StatusInternalServerError)
		slog.Error("Could not fetch genome records", "req_id", reqID, "db", dbPath, "err", err)
		return
	}
	slog.Debug("Found genome records", "req_id", reqID, "records", len(records))

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if err := genomedb.WriteFASTA(w, records); err != nil {
		slog.Warn("Could not write genome records", "req_id", reqID, "err", err)
	}
}
