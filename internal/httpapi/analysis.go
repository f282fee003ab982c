package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/thirza258/ragreader/internal/apperr"
	"github.com/thirza258/ragreader/internal/batch"
)

// analysisPollInterval is how often the WS handler re-checks the batch
// store for newly-landed results between variant completions.
const analysisPollInterval = 150 * time.Millisecond

// handleStartAnalysis implements POST /start-analysis (user, query): 202
// {batch_id, expected_count}, fanning out every registered variant in
// the background via the BatchOrchestrator, per spec §6/§4.10.
func (a *App) handleStartAnalysis(w http.ResponseWriter, r *http.Request) {
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
	docs, err := a.Documents.ListByUser(ctx, username)
	if err != nil {
		writeError(w, apperr.Wrap(apperr.KindInternal, "list documents", err))
		return
	}
	if len(docs) == 0 {
		writeError(w, apperr.New(apperr.KindNotFound, "user has no ingested documents"))
		return
	}

	// The fan-out outlives this request, whose context is canceled as soon
	// as the handler returns.
	batchID, results, err := a.Batches.Run(context.WithoutCancel(ctx), username, docs[0].ID, query)
	if err != nil {
		writeError(w, apperr.Wrap(apperr.KindInternal, "start analysis batch", err))
		return
	}
	expected := len(a.Registry.Variants())

	// Drain the results channel in the background so the fan-out
	// completes even if nobody ever polls /analysis-status or connects
	// to the WebSocket stream; the orchestrator already persists each
	// result as it lands.
	go func() {
		for range results {
		}
	}()

	writeOK(w, http.StatusAccepted, "analysis started", map[string]interface{}{
		"batch_id": batchID, "expected_count": expected,
	})
}

// handleAnalysisStatus implements GET /analysis-status/<batch_id>: a
// point-in-time snapshot of {progress, is_complete, data[]}.
func (a *App) handleAnalysisStatus(w http.ResponseWriter, r *http.Request, batchID string) {
	if r.Method != http.MethodGet {
		writeError(w, apperr.New(apperr.KindInput, "method not allowed"))
		return
	}
	ctx := r.Context()
	b, ok, err := a.BatchStore.GetBatch(ctx, batchID)
	if err != nil {
		writeError(w, apperr.Wrap(apperr.KindInternal, "load batch", err))
		return
	}
	if !ok {
		writeError(w, apperr.New(apperr.KindNotFound, "batch not found"))
		return
	}
	results, err := a.BatchStore.ListResults(ctx, batchID)
	if err != nil {
		writeError(w, apperr.Wrap(apperr.KindInternal, "list batch results", err))
		return
	}

	progress := 100
	if b.TotalVariants > 0 {
		progress = len(results) * 100 / b.TotalVariants
	}
	isComplete := b.TotalVariants > 0 && len(results) >= b.TotalVariants

	writeOK(w, http.StatusOK, "analysis status", map[string]interface{}{
		"progress":    progress,
		"is_complete": isComplete,
		"data":        results,
	})
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// wsEvent is one message of the per-variant event stream described in
// spec §4.10.
type wsEvent struct {
	Status   string `json:"status,omitempty"`
	BatchID  string `json:"batch_id,omitempty"`
	Method   string `json:"method,omitempty"`
	Model    string `json:"model,omitempty"`
	Answer   string `json:"answer,omitempty"`
	Error    string `json:"error,omitempty"`
	Progress int    `json:"progress"`
}

// handleAnalysisWS implements WS /ws/analysis/<batch_id>: the caller
// connects, and every already-persisted and subsequently-produced
// AnalysisResult is forwarded as one JSON message, ending with a single
// COMPLETE event, per spec §4.10.
func (a *App) handleAnalysisWS(w http.ResponseWriter, r *http.Request, batchID string) {
	ctx := r.Context()
	b, ok, err := a.BatchStore.GetBatch(ctx, batchID)
	if err != nil || !ok {
		writeError(w, apperr.New(apperr.KindNotFound, "batch not found"))
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.Logger.Error().Err(err).Msg("websocket upgrade failed")
		return
	}
	defer conn.Close()

	existing, err := a.BatchStore.ListResults(ctx, batchID)
	if err != nil {
		a.Logger.Error().Err(err).Msg("load existing analysis results")
		return
	}

	total := b.TotalVariants
	if total == 0 {
		total = len(a.Registry.Variants())
	}
	completed := 0
	for _, res := range existing {
		completed++
		if err := conn.WriteJSON(resultEvent(res, completed, total)); err != nil {
			return
		}
	}

	if completed >= total {
		_ = conn.WriteJSON(wsEvent{Status: "COMPLETE", Progress: 100})
		return
	}

	ticker := time.NewTicker(analysisPollInterval)
	defer ticker.Stop()
	seen := len(existing)
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			results, err := a.BatchStore.ListResults(ctx, batchID)
			if err != nil {
				return
			}
			for _, res := range results[seen:] {
				completed++
				if err := conn.WriteJSON(resultEvent(res, completed, total)); err != nil {
					return
				}
			}
			seen = len(results)
			if completed >= total {
				_ = conn.WriteJSON(wsEvent{Status: "COMPLETE", Progress: 100})
				return
			}
		}
	}
}

func resultEvent(res batch.AnalysisResult, completed, total int) wsEvent {
	progress := 100
	if total > 0 {
		progress = completed * 100 / total
	}
	if res.Err != "" {
		return wsEvent{BatchID: res.BatchID, Method: string(res.Method), Model: res.Model, Error: res.Err, Progress: progress}
	}
	return wsEvent{BatchID: res.BatchID, Method: string(res.Method), Model: res.Model, Answer: res.Answer, Progress: progress}
}
