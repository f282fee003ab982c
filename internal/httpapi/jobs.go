package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/thirza258/ragreader/internal/apperr"
	"github.com/thirza258/ragreader/internal/job"
	"github.com/thirza258/ragreader/internal/pipeline"
)

// buildIndexTask returns the job.Task that drives one pipeline's Init to
// completion, reporting progress at the spec's documented checkpoints
// (10/20/40/50/80/90/100), with the existing-index fast path jumping
// straight from 10 to 80->100.
func (a *App) buildIndexTask(username string, p pipeline.Pipeline) job.Task {
	return func(ctx context.Context, report func(int)) error {
		report(10) // job accepted

		docs, err := a.Documents.ListByUser(ctx, username)
		if err != nil {
			return err
		}
		if len(docs) == 0 {
			return apperr.New(apperr.KindNotFound, "user has no ingested documents")
		}
		doc := docs[0] // latest, per ListByUser's newest-first ordering

		ready, err := p.IsInitialized(ctx, username, doc.ID)
		if err != nil {
			return err
		}
		if ready {
			report(80)
			report(100)
			return nil
		}

		report(20) // loading text
		chunks := pipeline.BuildChunks(ctx, a.Chunker, doc.ID, doc)
		report(40) // chunking

		report(50) // indexing started
		if err := p.Init(ctx, username, doc.ID, chunks); err != nil {
			return err
		}
		report(80) // file write
		report(90) // DB write
		report(100)
		return nil
	}
}

// handleOpenChat implements POST /open-chat (user), triggering an async
// index build for the configured default variant and returning 202 with
// the new job's id, per spec §6.
func (a *App) handleOpenChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, apperr.New(apperr.KindInput, "method not allowed"))
		return
	}
	if err := r.ParseForm(); err != nil {
		writeError(w, apperr.Wrap(apperr.KindInput, "parse form", err))
		return
	}
	username := strings.TrimSpace(r.FormValue("user"))
	if username == "" {
		writeError(w, apperr.New(apperr.KindInput, "user is required"))
		return
	}

	p, ok := a.Registry.Get(a.DefaultMethod, a.DefaultModel)
	if !ok {
		writeError(w, apperr.New(apperr.KindInput, "default variant is not registered"))
		return
	}

	jobID := newID()
	if err := a.Jobs.Submit(r.Context(), jobID, username, a.buildIndexTask(username, p)); err != nil {
		writeError(w, apperr.Wrap(apperr.KindInternal, "submit index build job", err))
		return
	}

	writeOK(w, http.StatusAccepted, "index build queued", map[string]interface{}{
		"job_id": jobID, "status": job.StatusQueued, "progress": 0,
	})
}

// handleJobStatus implements GET /job-status/<job_id>.
func (a *App) handleJobStatus(w http.ResponseWriter, r *http.Request, jobID string) {
	if r.Method != http.MethodGet {
		writeError(w, apperr.New(apperr.KindInput, "method not allowed"))
		return
	}
	j, ok, err := a.JobStore.Get(r.Context(), jobID)
	if err != nil {
		writeError(w, apperr.Wrap(apperr.KindInternal, "load job", err))
		return
	}
	if !ok {
		writeError(w, apperr.New(apperr.KindNotFound, "job not found"))
		return
	}
	writeOK(w, http.StatusOK, "job status", map[string]interface{}{
		"status": j.Status, "progress": j.Progress, "error": j.Error, "updated_at": j.UpdatedAt,
	})
}
