package httpapi

import (
	"net/http"
	"strings"

	"github.com/thirza258/ragreader/internal/apperr"
)

// NewMux wires every endpoint named in spec §6 onto a stdlib ServeMux,
// grounded on the teacher's internal/agentd/router.go routing idiom (no
// web framework).
func NewMux(app *App) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeOK(w, http.StatusOK, "ok", nil)
	})

	mux.HandleFunc("/insert-data", app.handleInsertData)
	mux.HandleFunc("/insert-url", app.handleInsertURL)
	mux.HandleFunc("/insert-text", app.handleInsertText)
	mux.HandleFunc("/open-chat", app.handleOpenChat)
	mux.HandleFunc("/query", app.handleQuery)
	mux.HandleFunc("/start-analysis", app.handleStartAnalysis)

	mux.HandleFunc("/job-status/", pathParamHandler("/job-status/", app.handleJobStatus))
	mux.HandleFunc("/analysis-status/", pathParamHandler("/analysis-status/", app.handleAnalysisStatus))
	mux.HandleFunc("/ws/analysis/", pathParamHandler("/ws/analysis/", app.handleAnalysisWS))

	return mux
}

// pathParamHandler extracts the trailing path segment after prefix and
// hands it to handler, 400-ing if it is empty. Good enough for this
// API's single-level resource paths without pulling in a router library
// the teacher never uses for this kind of plain REST surface.
func pathParamHandler(prefix string, handler func(http.ResponseWriter, *http.Request, string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, prefix)
		if id == "" || strings.Contains(id, "/") {
			writeError(w, apperr.New(apperr.KindInput, "missing path parameter"))
			return
		}
		handler(w, r, id)
	}
}
