package handlers

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/nextstrain/auspice/internal/charon/metrics"
	"github.com/nextstrain/auspice/internal/constants"
)

// VersionHandler handles requests to the /version endpoint.
func VersionHandler(w http.ResponseWriter, r *http.Request) {
	metrics.ApplyLabels(r)

	w.Header().Set("Content-Type", "application/json")
	fmt.Fprintf(w, `{"version":%q}`, constants.Version)
}

// UnhandledHandler answers charon requests no other handler matched.
func UnhandledHandler(w http.ResponseWriter, r *http.Request) {
	metrics.ApplyLabels(r)

	msg := "Query unhandled -- " + r.URL.RequestURI()
	slog.Warn(msg)
	http.Error(w, msg, http.StatusInternalServerError)
}
