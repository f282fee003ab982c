package httpapi

import (
	"net/http"
	"strings"

	"github.com/thirza258/ragreader/internal/apperr"
)

// handleQuery implements POST /query (user, query): 200 {answer}, or a
// NotReady error if the default variant's index has not finished
// building for this user, per spec §6.
func (a *App) handleQuery(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, apperr.New(apperr.KindInput, "method not allowed"))
		return
	}
	if err := r.ParseForm(); err != nil {
		writeError(w, apperr.Wrap(apperr.KindInput, "parse form", err))
		return
	}
	username := strings.TrimSpace(r.FormValue("user"))
	query := strings.TrimSpace(r.FormValue("query"))
	if username == "" || query == "" {
		writeError(w, apperr.New(apperr.KindInput, "user and query are required"))
		return
	}

	ctx := r.Context()
	p, ok := a.Registry.Get(a.DefaultMethod, a.DefaultModel)
	if !ok {
		writeError(w, apperr.New(apperr.KindInput, "default variant is not registered"))
		return
	}

	docs, err := a.Documents.ListByUser(ctx, username)
	if err != nil {
		writeError(w, apperr.Wrap(apperr.KindInternal, "list documents", err))
		return
	}
	if len(docs) == 0 {
		writeError(w, apperr.New(apperr.KindNotFound, "user has no ingested documents"))
		return
	}
	doc := docs[0]

	ready, err := p.IsInitialized(ctx, username, doc.ID)
	if err != nil {
		writeError(w, apperr.Wrap(apperr.KindInternal, "check index readiness", err))
		return
	}
	if !ready {
		writeError(w, apperr.New(apperr.KindNotReady, "no ready index for this user yet; call /open-chat first"))
		return
	}

	result, err := p.Run(ctx, username, doc.ID, query)
	if err != nil {
		writeError(w, err)
		return
	}

	writeOK(w, http.StatusOK, "query answered", map[string]string{"answer": result.Answer})
}
