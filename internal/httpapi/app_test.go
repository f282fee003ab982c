package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	gorillaws "github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/thirza258/ragreader/internal/batch"
	"github.com/thirza258/ragreader/internal/chunker"
	"github.com/thirza258/ragreader/internal/config"
	"github.com/thirza258/ragreader/internal/documents"
	"github.com/thirza258/ragreader/internal/engine"
	"github.com/thirza258/ragreader/internal/indexstore"
	"github.com/thirza258/ragreader/internal/job"
	"github.com/thirza258/ragreader/internal/registry"
)

// newFakeOpenAIServer stands in for api.openai.com so tests never make a
// real network call. Each chat-completion reply echoes the text after the
// last "Question: " in the request's final message, so the pipeline's
// query-optimization call returns the user's own question as the search
// query and RAGGenerate returns it as the answer.
func newFakeOpenAIServer(t *testing.T) string {
	t.Helper()
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		reply := "test answer"
		if n := len(req.Messages); n > 0 {
			if i := strings.LastIndex(req.Messages[n-1].Content, "Question: "); i >= 0 {
				reply = req.Messages[n-1].Content[i+len("Question: "):]
			}
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"id": "1", "object": "chat.completion", "created": 1, "model": "gpt-4o-mini",
			"choices": []map[string]interface{}{{
				"index": 0, "finish_reason": "stop",
				"message": map[string]string{"role": "assistant", "content": reply},
			}},
		})
	}))
	t.Cleanup(ts.Close)
	return ts.URL
}

func testLLMConfig(baseURL string) config.LLMConfig {
	return config.LLMConfig{
		OpenAI:         config.ProviderConfig{APIKey: "test-openai-key", BaseURL: baseURL},
		EmbeddingsURL:  "http://localhost:0/embeddings",
		EmbeddingModel: "test-embedding-model",
	}
}

// newTestApp wires a full App over in-memory stores and the sparse-only
// variant, so tests exercise real ingestion/chunking/indexing against a
// stubbed OpenAI endpoint instead of the live API.
func newTestApp(t *testing.T) *App {
	t.Helper()
	root := t.TempDir()
	idxStore := indexstore.NewMemory()
	reg, err := registry.New(context.Background(), testLLMConfig(newFakeOpenAIServer(t)), root, idxStore,
		[]registry.Variant{{Method: engine.MethodSparse, Model: "gpt-4o-mini"}})
	require.NoError(t, err)

	jobStore := job.NewMemoryStore()
	batchStore := batch.NewMemoryStore()
	docStore := documents.NewMemory()
	c, err := chunker.New(chunker.Fixed, chunker.DefaultConfig())
	require.NoError(t, err)

	return &App{
		Logger:     zerolog.Nop(),
		Registry:   reg,
		Jobs:       job.NewManager(jobStore, 2, 8, time.Minute),
		JobStore:   jobStore,
		Documents:  docStore,
		Batches:    batch.New(reg, batchStore, batch.NewMemoryCache(), time.Minute, docStore, c),
		BatchStore: batchStore,
		Chunker:    c,
		Extractors: map[documents.SourceKind]documents.Extractor{
			documents.SourceText: documents.NewTextExtractor(),
		},
		MediaRoot:     root,
		DefaultMethod: engine.MethodSparse,
		DefaultModel:  "gpt-4o-mini",
	}
}

func formRequest(method, path string, form url.Values) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestInsertTextThenOpenChatBuildsReadyIndex(t *testing.T) {
	app := newTestApp(t)
	mux := NewMux(app)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, formRequest(http.MethodPost, "/insert-text", url.Values{
		"user": {"alice"},
		"text": {"Cats are mammals. Dogs are mammals. Fish live in water."},
	}))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, formRequest(http.MethodPost, "/open-chat", url.Values{"user": {"alice"}}))
	require.Equal(t, http.StatusAccepted, rec.Code)

	jobID := extractJSONField(t, rec.Body.String(), "job_id")
	require.NotEmpty(t, jobID)

	waitForJobReady(t, mux, jobID)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, formRequest(http.MethodPost, "/query", url.Values{
		"user": {"alice"}, "query": {"mammals"},
	}))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "answer")
}

func TestQueryBeforeOpenChatIsNotReady(t *testing.T) {
	app := newTestApp(t)
	mux := NewMux(app)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, formRequest(http.MethodPost, "/insert-text", url.Values{
		"user": {"bob"}, "text": {"some content about rivers and lakes."},
	}))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, formRequest(http.MethodPost, "/query", url.Values{
		"user": {"bob"}, "query": {"rivers"},
	}))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestStartAnalysisAndPollStatus(t *testing.T) {
	app := newTestApp(t)
	mux := NewMux(app)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, formRequest(http.MethodPost, "/insert-text", url.Values{
		"user": {"carol"}, "text": {"Paris is the capital of France."},
	}))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, formRequest(http.MethodPost, "/start-analysis", url.Values{
		"user": {"carol"}, "query": {"capital of France"},
	}))
	require.Equal(t, http.StatusAccepted, rec.Code)
	batchID := extractJSONField(t, rec.Body.String(), "batch_id")
	require.NotEmpty(t, batchID)

	require.Eventually(t, func() bool {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/analysis-status/"+batchID, nil))
		return rec.Code == http.StatusOK && strings.Contains(rec.Body.String(), `"is_complete":true`)
	}, 2*time.Second, 10*time.Millisecond)
}

func TestAnalysisWebSocketStreamsCompleteEvent(t *testing.T) {
	app := newTestApp(t)
	mux := NewMux(app)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, formRequest(http.MethodPost, "/insert-text", url.Values{
		"user": {"dana"}, "text": {"The sky is blue on a clear day."},
	}))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	mux.ServeHTTP(rec, formRequest(http.MethodPost, "/start-analysis", url.Values{
		"user": {"dana"}, "query": {"sky color"},
	}))
	require.Equal(t, http.StatusAccepted, rec.Code)
	batchID := extractJSONField(t, rec.Body.String(), "batch_id")

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/analysis/" + batchID
	conn, _, err := gorillaws.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	sawComplete := false
	for i := 0; i < 10; i++ {
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		var msg map[string]interface{}
		if err := conn.ReadJSON(&msg); err != nil {
			break
		}
		if msg["status"] == "COMPLETE" {
			sawComplete = true
			break
		}
	}
	assert.True(t, sawComplete, "expected a COMPLETE event on the analysis stream")
}

func waitForJobReady(t *testing.T, mux http.Handler, jobID string) {
	t.Helper()
	require.Eventually(t, func() bool {
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/job-status/"+jobID, nil))
		return rec.Code == http.StatusOK && strings.Contains(rec.Body.String(), `"status":"succeeded"`)
	}, 2*time.Second, 10*time.Millisecond)
}

// extractJSONField pulls a bare string or number field's value out of a
// response envelope's data object without pulling in a JSON path library
// for one-off test assertions.
func extractJSONField(t *testing.T, body, field string) string {
	t.Helper()
	idx := strings.Index(body, `"`+field+`":`)
	require.Greater(t, idx, -1, "field %q not found in %s", field, body)
	rest := body[idx+len(field)+3:]
	if strings.HasPrefix(rest, `"`) {
		end := strings.Index(rest[1:], `"`)
		require.GreaterOrEqual(t, end, 0)
		return rest[1 : 1+end]
	}
	end := strings.IndexAny(rest, ",}")
	if end < 0 {
		end = len(rest)
	}
	if _, err := strconv.Atoi(strings.TrimSpace(rest[:end])); err == nil {
		return strings.TrimSpace(rest[:end])
	}
	return strings.TrimSpace(rest[:end])
}
