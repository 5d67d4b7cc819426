package handlers

import (
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/nextstrain/auspice/internal/charon/metrics"
	"github.com/nextstrain/auspice/internal/dataset"
)

// Available answers getAvailable requests with the datasets and narratives found locally.
type Available struct {
	lister Lister
}

// NewAvailable creates an Available handler.
func NewAvailable(l Lister) *Available {
	return &Available{lister: l}
}

type availableResponse struct {
	Datasets   []dataset.Dataset   `json:"datasets"`
	Narratives []dataset.Narrative `json:"narratives"`
}

// ServeHTTP writes the listing as JSON.
func (h *Available) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	metrics.ApplyLabels(r)
	reqID := uuid.New().String()
	slog.Info("GET AVAILABLE returning locally available datasets & narratives", "req_id", reqID)

	l, err := h.lister.Scan(r.Context())
	if err != nil {
		http.Error(w, "could not list available resources", http.StatusInternalServerError)
		slog.Error("Could not list available resources", "req_id", reqID, "err", err)
		return
	}

	resp := availableResponse{
		Datasets:   make([]dataset.Dataset, 0, len(l.Datasets)),
		Narratives: make([]dataset.Narrative, 0, len(l.Narratives)),
	}
	for _, d := range l.Datasets {
		if d.SecondTreeOptions == nil {
			d.SecondTreeOptions = []string{}
		}
		resp.Datasets = append(resp.Datasets, d)
	}
	resp.Narratives = append(resp.Narratives, l.Narratives...)

	writeJSON(w, reqID, http.StatusOK, resp)
}
