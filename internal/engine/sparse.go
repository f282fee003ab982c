package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/mapping"
)

// sparseEngine is a BM25-style lexical index backed by bleve, grounded on
// Aman-CERP-amanmcp/internal/store/bm25.go's bleve-directory-per-index
// pattern. Build writes into a process-local scratch directory; Save
// copies that directory to the caller's chosen artifact path, and Load
// opens an artifact path directly, so the same Engine value works both
// right after a build and after a cold-start reload.
type sparseEngine struct {
	mu    sync.RWMutex
	idx   bleve.Index
	dir   string
	order []string
}

// NewSparse constructs an empty sparse engine. Call Build or Load before
// Retrieve.
func NewSparse() Engine {
	return &sparseEngine{}
}

func (s *sparseEngine) Method() Method { return MethodSparse }

func (s *sparseEngine) Empty() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.idx == nil
}

func sparseMapping() mapping.IndexMapping {
	doc := bleve.NewDocumentMapping()

	text := bleve.NewTextFieldMapping()
	text.Store = true
	text.Index = true
	doc.AddFieldMappingsAt("text", text)

	meta := bleve.NewTextFieldMapping()
	meta.Store = true
	meta.Index = false
	meta.IncludeInAll = false
	doc.AddFieldMappingsAt("metadata", meta)

	seq := bleve.NewNumericFieldMapping()
	seq.Store = true
	seq.Index = false
	doc.AddFieldMappingsAt("seq", seq)

	m := bleve.NewIndexMapping()
	m.DefaultMapping = doc
	return m
}

func (s *sparseEngine) closeLocked() {
	if s.idx != nil {
		_ = s.idx.Close()
		s.idx = nil
	}
	if s.dir != "" {
		_ = os.RemoveAll(s.dir)
		s.dir = ""
	}
}

func (s *sparseEngine) Build(ctx context.Context, chunks []Chunk) error {
	dir, err := os.MkdirTemp("", "ragreader-sparse-*")
	if err != nil {
		return fmt.Errorf("sparse engine: scratch dir: %w", err)
	}

	idx, err := bleve.New(dir, sparseMapping())
	if err != nil {
		_ = os.RemoveAll(dir)
		return fmt.Errorf("sparse engine: create index: %w", err)
	}

	batch := idx.NewBatch()
	order := make([]string, 0, len(chunks))
	for i, c := range chunks {
		mdJSON, _ := json.Marshal(c.Metadata)
		doc := map[string]any{
			"text":     c.Text,
			"metadata": string(mdJSON),
			"seq":      float64(i),
		}
		if err := batch.Index(c.ID, doc); err != nil {
			_ = idx.Close()
			_ = os.RemoveAll(dir)
			return fmt.Errorf("sparse engine: batch index %s: %w", c.ID, err)
		}
		order = append(order, c.ID)
	}
	if err := idx.Batch(batch); err != nil {
		_ = idx.Close()
		_ = os.RemoveAll(dir)
		return fmt.Errorf("sparse engine: commit batch: %w", err)
	}

	s.mu.Lock()
	s.closeLocked()
	s.idx = idx
	s.dir = dir
	s.order = order
	s.mu.Unlock()
	return nil
}

func (s *sparseEngine) Retrieve(ctx context.Context, query string, k int) ([]Result, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.idx == nil {
		return nil, nil
	}
	if k <= 0 {
		k = 10
	}

	orderIdx := make(map[string]int, len(s.order))
	for i, id := range s.order {
		orderIdx[id] = i
	}

	q := bleve.NewMatchQuery(query)
	req := bleve.NewSearchRequestOptions(q, k, 0, false)
	req.Fields = []string{"text", "metadata"}

	res, err := s.idx.SearchInContext(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("sparse engine: search: %w", err)
	}

	hits := res.Hits
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return orderIdx[hits[i].ID] < orderIdx[hits[j].ID]
	})

	out := make([]Result, 0, len(hits))
	for rank, h := range hits {
		text, _ := h.Fields["text"].(string)
		var md map[string]string
		if raw, ok := h.Fields["metadata"].(string); ok && raw != "" {
			_ = json.Unmarshal([]byte(raw), &md)
		}
		out = append(out, Result{
			Chunk: Chunk{ID: h.ID, Text: text, Metadata: md},
			Score: h.Score,
			Rank:  rank + 1,
		})
	}
	return out, nil
}

func copyDir(src, dst string) error {
	return filepath.Walk(src, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, p)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if info.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		in, err := os.Open(p)
		if err != nil {
			return err
		}
		defer in.Close()
		out, err := os.Create(target)
		if err != nil {
			return err
		}
		defer out.Close()
		_, err = io.Copy(out, in)
		return err
	})
}

func (s *sparseEngine) Save(path string) error {
	s.mu.RLock()
	dir := s.dir
	s.mu.RUnlock()
	if dir == "" {
		return fmt.Errorf("sparse engine: nothing built to save")
	}
	if dir == path {
		return nil
	}
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("sparse engine: clear destination: %w", err)
	}
	if err := os.MkdirAll(path, 0o755); err != nil {
		return fmt.Errorf("sparse engine: create destination: %w", err)
	}
	return copyDir(dir, path)
}

func (s *sparseEngine) Load(path string) error {
	idx, err := bleve.Open(path)
	if err != nil {
		return fmt.Errorf("sparse engine: open %s: %w", path, err)
	}

	count, err := idx.DocCount()
	if err != nil {
		_ = idx.Close()
		return fmt.Errorf("sparse engine: doc count: %w", err)
	}

	var order []string
	if count > 0 {
		req := bleve.NewSearchRequestOptions(bleve.NewMatchAllQuery(), int(count), 0, false)
		req.Fields = []string{"seq"}
		res, err := idx.Search(req)
		if err != nil {
			_ = idx.Close()
			return fmt.Errorf("sparse engine: enumerate docs: %w", err)
		}
		type seqID struct {
			id  string
			seq float64
		}
		seqs := make([]seqID, 0, len(res.Hits))
		for _, h := range res.Hits {
			seq, _ := h.Fields["seq"].(float64)
			seqs = append(seqs, seqID{id: h.ID, seq: seq})
		}
		sort.Slice(seqs, func(i, j int) bool { return seqs[i].seq < seqs[j].seq })
		order = make([]string, 0, len(seqs))
		for _, s := range seqs {
			order = append(order, s.id)
		}
	}

	s.mu.Lock()
	s.closeLocked()
	s.idx = idx
	s.dir = path
	s.order = order
	s.mu.Unlock()
	return nil
}
