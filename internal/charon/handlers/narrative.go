package handlers

import (
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/nextstrain/auspice/internal/charon/metrics"
	"github.com/nextstrain/auspice/internal/narrative"
)

// Narrative answers getNarrative requests from the markdown files of one directory.
type Narrative struct {
	dir string
}

// NewNarrative creates a Narrative handler serving the narratives found in dir.
func NewNarrative(dir string) *Narrative {
	return &Narrative{dir: dir}
}

// ServeHTTP sends the narrative as parsed JSON blocks, or as the raw markdown file for the md type.
func (h *Narrative) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	metrics.ApplyLabels(r)
	reqID := uuid.New().String()
	q := r.URL.Query()

	format, err := narrative.ParseFormat(q.Get("type"))
	if err != nil {
		http.Error(w, "Narratives couldn't be served -- "+err.Error(), http.StatusUnauthorized)
		slog.Warn("Unsupported narrative type", "req_id", reqID, "err", err)
		return
	}

	name, err := narrative.FilenameFromPrefix(q.Get("prefix"))
	if err != nil {
		http.Error(w, "Narratives couldn't be served -- "+err.Error(), http.StatusBadRequest)
		slog.Warn("Invalid narrative request", "req_id", reqID, "err", err)
		return
	}

	p := filepath.Join(h.dir, name)
	slog.Info("Trying to access & parse local narrative file", "req_id", reqID, "path", p)
	contents, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		http.Error(w, "Narratives couldn't be served -- "+name+" not found", http.StatusNotFound)
		slog.Warn("Narrative not found", "req_id", reqID, "path", p)
		return
	} else if err != nil {
		http.Error(w, "Narratives couldn't be served -- could not read "+name, http.StatusInternalServerError)
		slog.Error("Could not read narrative", "req_id", reqID, "path", p, "err", err)
		return
	}

	if format == narrative.FormatMarkdown {
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		if _, err := w.Write(contents); err != nil {
			slog.Warn("Could not write response", "req_id", reqID, "err", err)
		}
		return
	}

	blocks, err := narrative.Parse(contents)
	if err != nil {
		http.Error(w, "Narratives couldn't be served -- "+err.Error(), http.StatusInternalServerError)
		slog.Warn("Could not parse narrative", "req_id", reqID, "path", p, "err", err)
		return
	}
	writeJSON(w, reqID, http.StatusOK, blocks)
}
