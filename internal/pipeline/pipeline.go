// Package pipeline composes a chunker, a retrieval engine, an LLM
// adapter, and the index/document stores into the single Init/Run
// contract the Registry and BatchOrchestrator drive, grounded on the
// teacher's internal/rag/service/service.go staged sequential execution
// and functional-options construction.
package pipeline

import (
	"context"
	"fmt"
	"strings"

	"github.com/thirza258/ragreader/internal/apperr"
	"github.com/thirza258/ragreader/internal/chunker"
	"github.com/thirza258/ragreader/internal/documents"
	"github.com/thirza258/ragreader/internal/engine"
	"github.com/thirza258/ragreader/internal/indexstore"
	"github.com/thirza258/ragreader/internal/llm"
)

// RunResult is what Run returns to its caller: the generated answer plus
// the retrieved chunks it was grounded on, so callers (the batch
// orchestrator, the HTTP layer) can show provenance.
type RunResult struct {
	Answer   string
	Sources  []engine.Result
	Method   engine.Method
	Model    string
}

// Pipeline is the uniform contract for one (method, model) combination.
type Pipeline interface {
	Method() engine.Method
	Model() string
	Init(ctx context.Context, username, documentID string, chunks []engine.Chunk) error
	IsInitialized(ctx context.Context, username, documentID string) (bool, error)
	Run(ctx context.Context, username, documentID, query string) (RunResult, error)
}

type pipeline struct {
	method  engine.Method
	eng     engine.Engine
	adapter llm.Adapter
	root    string
	store   indexstore.Store
	loaded  map[string]bool // "username/documentID" keys already loaded into eng this process
	topK    int
}

// Option configures a Pipeline at construction time, following the
// teacher's WithLogger/WithMetrics functional-options idiom.
type Option func(*pipeline)

// WithTopK overrides the default retrieval width (10).
func WithTopK(k int) Option {
	return func(p *pipeline) { p.topK = k }
}

// New builds a Pipeline. root is the IndexStore filesystem root; store is
// the IndexRecord metadata store.
func New(method engine.Method, eng engine.Engine, adapter llm.Adapter, root string, store indexstore.Store, opts ...Option) Pipeline {
	p := &pipeline{
		method:  method,
		eng:     eng,
		adapter: adapter,
		root:    root,
		store:   store,
		loaded:  make(map[string]bool),
		topK:    10,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *pipeline) Method() engine.Method { return p.method }
func (p *pipeline) Model() string {
	if p.adapter == nil {
		return ""
	}
	return p.adapter.Model()
}

func key(username, documentID string) string { return username + "/" + documentID }

// Init builds the engine's in-memory index from chunks and publishes it
// to the filesystem, recording a Ready IndexRecord only once the publish
// step has fully succeeded.
func (p *pipeline) Init(ctx context.Context, username, documentID string, chunks []engine.Chunk) error {
	if len(chunks) == 0 {
		return apperr.New(apperr.KindCorpusEmpty, "cannot initialize an index with zero chunks")
	}

	recordID := fmt.Sprintf("%s:%s:%s", username, documentID, p.method)
	if err := p.store.Create(ctx, indexstore.Record{
		ID: recordID, Username: username, DocumentID: documentID,
		Method: string(p.method), Status: indexstore.StatusBuilding,
	}); err != nil {
		return fmt.Errorf("pipeline %s: record building state: %w", p.method, err)
	}

	if err := p.eng.Build(ctx, chunks); err != nil {
		_ = p.store.UpdateStatus(ctx, recordID, indexstore.StatusFailed)
		return apperr.Wrap(apperr.KindInternal, fmt.Sprintf("pipeline %s: build index", p.method), err)
	}

	path, err := indexstore.ArtifactPath(p.root, username, documentID, string(p.method))
	if err != nil {
		_ = p.store.UpdateStatus(ctx, recordID, indexstore.StatusFailed)
		return fmt.Errorf("pipeline %s: choose artifact path: %w", p.method, err)
	}
	if err := indexstore.Publish(p.root, username, p.eng, path); err != nil {
		_ = p.store.UpdateStatus(ctx, recordID, indexstore.StatusFailed)
		return apperr.Wrap(apperr.KindStateCorrupt, fmt.Sprintf("pipeline %s: publish artifact", p.method), err)
	}

	if err := p.store.Create(ctx, indexstore.Record{
		ID: recordID, Username: username, DocumentID: documentID,
		Method: string(p.method), Location: path, Status: indexstore.StatusReady,
	}); err != nil {
		return fmt.Errorf("pipeline %s: record ready state: %w", p.method, err)
	}

	p.loaded[key(username, documentID)] = true
	return nil
}

func (p *pipeline) IsInitialized(ctx context.Context, username, documentID string) (bool, error) {
	_, ok, err := p.store.GetReady(ctx, username, documentID, string(p.method))
	if err != nil {
		return false, fmt.Errorf("pipeline %s: check ready: %w", p.method, err)
	}
	return ok, nil
}

// ensureLoaded loads the engine's persisted artifact into memory the
// first time this process needs it for a given (username, documentID),
// so a cold-started pipeline can serve Run without rebuilding.
func (p *pipeline) ensureLoaded(ctx context.Context, username, documentID string) error {
	k := key(username, documentID)
	if p.loaded[k] {
		return nil
	}
	record, ok, err := p.store.GetReady(ctx, username, documentID, string(p.method))
	if err != nil {
		return fmt.Errorf("pipeline %s: lookup ready record: %w", p.method, err)
	}
	if !ok {
		return apperr.New(apperr.KindNotReady, fmt.Sprintf("index for %s/%s (%s) is not ready", username, documentID, p.method))
	}
	if err := p.eng.Load(record.Location); err != nil {
		return apperr.Wrap(apperr.KindStateCorrupt, fmt.Sprintf("pipeline %s: load artifact", p.method), err)
	}
	p.loaded[k] = true
	return nil
}

// SanitizeQuery trims whitespace, collapses internal runs of whitespace,
// and rejects blank queries.
func SanitizeQuery(q string) (string, error) {
	fields := strings.Fields(q)
	if len(fields) == 0 {
		return "", apperr.New(apperr.KindInput, "query must not be blank")
	}
	return strings.Join(fields, " "), nil
}

// optimizedQueryLeadingPhrases are stripped from the start of an adapter's
// optimized-query reply before it's used for retrieval.
var optimizedQueryLeadingPhrases = []string{"here is", "optimized query:", "answer:"}

// sanitizeOptimizedQuery applies the query-optimization contract: strip
// surrounding quotes, keep only the first line, strip known leading
// phrases, and fall back to original if the result exceeds 200 characters.
func sanitizeOptimizedQuery(reply, original string) string {
	line := strings.TrimSpace(strings.SplitN(reply, "\n", 2)[0])
	line = strings.Trim(line, `"'`)

	lower := strings.ToLower(line)
	for _, phrase := range optimizedQueryLeadingPhrases {
		if strings.HasPrefix(lower, phrase) {
			line = strings.TrimSpace(line[len(phrase):])
			lower = strings.ToLower(line)
		}
	}

	if line == "" || len(line) > 200 {
		return original
	}
	return line
}

func (p *pipeline) Run(ctx context.Context, username, documentID, query string) (RunResult, error) {
	clean, err := SanitizeQuery(query)
	if err != nil {
		return RunResult{}, err
	}

	if err := p.ensureLoaded(ctx, username, documentID); err != nil {
		return RunResult{}, err
	}

	optimized, err := p.adapter.PromptGenerate(ctx, fmt.Sprintf(
		"Rewrite the following question as a single, more effective search query. "+
			"Respond with the optimized query only, on one line, with no extra commentary.\n\nQuestion: %s",
		clean,
	))
	if err != nil {
		return RunResult{}, apperr.Wrap(apperr.KindProviderTransient, fmt.Sprintf("pipeline %s: optimize query", p.method), err)
	}
	clean = sanitizeOptimizedQuery(optimized, clean)

	results, err := p.eng.Retrieve(ctx, clean, p.topK)
	if err != nil {
		return RunResult{}, apperr.Wrap(apperr.KindInternal, fmt.Sprintf("pipeline %s: retrieve", p.method), err)
	}
	if len(results) == 0 {
		return RunResult{}, apperr.New(apperr.KindCorpusEmpty, "retrieval returned no candidates")
	}

	contexts := make([]string, len(results))
	for i, r := range results {
		contexts[i] = r.Chunk.Text
	}

	answer, err := p.adapter.RAGGenerate(ctx, clean, contexts)
	if err != nil {
		return RunResult{}, apperr.Wrap(apperr.KindProviderTransient, fmt.Sprintf("pipeline %s: generate", p.method), err)
	}

	return RunResult{Answer: answer, Sources: results, Method: p.method, Model: p.Model()}, nil
}

// BuildChunks runs a Chunker over raw document text and wraps each piece
// as an engine.Chunk with a stable, predictable ID.
func BuildChunks(ctx context.Context, c chunker.Chunker, documentID string, doc documents.Document) []engine.Chunk {
	pieces := c.Chunk(ctx, doc.Text)
	chunks := make([]engine.Chunk, len(pieces))
	for i, text := range pieces {
		chunks[i] = engine.Chunk{
			ID:   fmt.Sprintf("%s-%d", documentID, i),
			Text: text,
			Metadata: map[string]string{
				"username": doc.Username,
				"source":   string(doc.Source),
			},
		}
	}
	return chunks
}
