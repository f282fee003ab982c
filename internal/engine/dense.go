package engine

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"sort"
	"sync"
)

// denseFormatMagic/denseFormatVersion identify the on-disk binary layout
// for a DenseEngine artifact, per the forward-versioned binary format
// design note: header, then length-prefixed IDs/texts/metadata, then a
// flat float32 matrix in row-major order.
const (
	denseFormatMagic   uint32 = 0x52414744 // "RAGD"
	denseFormatVersion uint32 = 1
)

// denseEngine holds an in-memory (N, D) embedding matrix alongside the
// chunk each row came from, grounded on the teacher's
// internal/rag/embedder.Embedder contract generalized to a persisted
// cosine-similarity index.
type denseEngine struct {
	mu       sync.RWMutex
	embedder Embedder
	dim      int
	chunks   []Chunk
	vectors  [][]float32
}

// NewDense constructs a dense engine that embeds text via embedder at
// Build/Retrieve time.
func NewDense(embedder Embedder) Engine {
	return &denseEngine{embedder: embedder, dim: embedder.Dimension()}
}

func (d *denseEngine) Method() Method { return MethodDense }

func (d *denseEngine) Empty() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.chunks) == 0
}

// Build embeds every chunk and stores the resulting (N, D) matrix. Per
// §4.3's invariant, every embedded vector must share the same
// dimensionality as the engine's configured Embedder; a mismatch discards
// the partial index and fails the call rather than silently zero-padding
// or truncating rows.
func (d *denseEngine) Build(ctx context.Context, chunks []Chunk) error {
	vectors := make([][]float32, len(chunks))
	for i, c := range chunks {
		v, err := d.embedder.Embed(ctx, c.Text)
		if err != nil {
			return fmt.Errorf("dense engine: embed chunk %s: %w", c.ID, err)
		}
		if len(v) != d.dim {
			return fmt.Errorf("dense engine: chunk %s embedded to dimension %d, expected %d", c.ID, len(v), d.dim)
		}
		vectors[i] = v
	}

	d.mu.Lock()
	d.chunks = chunks
	d.vectors = vectors
	d.mu.Unlock()
	return nil
}

func cosineSim(a, b []float32) float64 {
	var dot, na, nb float64
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func (d *denseEngine) Retrieve(ctx context.Context, query string, k int) ([]Result, error) {
	d.mu.RLock()
	chunks := d.chunks
	vectors := d.vectors
	d.mu.RUnlock()

	if len(chunks) == 0 {
		return nil, nil
	}
	if k <= 0 {
		k = 10
	}

	qvec, err := d.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("dense engine: embed query: %w", err)
	}

	type scored struct {
		idx   int
		score float64
	}
	all := make([]scored, len(chunks))
	for i := range chunks {
		all[i] = scored{idx: i, score: cosineSim(qvec, vectors[i])}
	}
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].score != all[j].score {
			return all[i].score > all[j].score
		}
		return all[i].idx < all[j].idx
	})
	if k > len(all) {
		k = len(all)
	}

	out := make([]Result, 0, k)
	for rank, s := range all[:k] {
		out = append(out, Result{Chunk: chunks[s.idx], Score: s.score, Rank: rank + 1})
	}
	return out, nil
}

func (d *denseEngine) Save(path string) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("dense engine: create temp artifact: %w", err)
	}
	w := bufio.NewWriter(f)

	writeErr := func() error {
		if err := binary.Write(w, binary.LittleEndian, denseFormatMagic); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, denseFormatVersion); err != nil {
			return err
		}
		n := uint32(len(d.chunks))
		dim := uint32(d.dim)
		if err := binary.Write(w, binary.LittleEndian, n); err != nil {
			return err
		}
		if err := binary.Write(w, binary.LittleEndian, dim); err != nil {
			return err
		}
		for i, c := range d.chunks {
			if err := writeLPString(w, c.ID); err != nil {
				return err
			}
			if err := writeLPString(w, c.Text); err != nil {
				return err
			}
			if err := writeMetadata(w, c.Metadata); err != nil {
				return err
			}
			vec := d.vectors[i]
			for j := uint32(0); j < dim; j++ {
				var val float32
				if int(j) < len(vec) {
					val = vec[j]
				}
				if err := binary.Write(w, binary.LittleEndian, val); err != nil {
					return err
				}
			}
		}
		return w.Flush()
	}()

	closeErr := f.Close()
	if writeErr != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("dense engine: write artifact: %w", writeErr)
	}
	if closeErr != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("dense engine: close artifact: %w", closeErr)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("dense engine: publish artifact: %w", err)
	}
	return nil
}

func (d *denseEngine) Load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("dense engine: open %s: %w", path, err)
	}
	defer f.Close()
	r := bufio.NewReader(f)

	var magic, version, n, dim uint32
	if err := binary.Read(r, binary.LittleEndian, &magic); err != nil {
		return fmt.Errorf("dense engine: read magic: %w", err)
	}
	if magic != denseFormatMagic {
		return fmt.Errorf("dense engine: %s is not a dense artifact (bad magic)", path)
	}
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return fmt.Errorf("dense engine: read version: %w", err)
	}
	if version != denseFormatVersion {
		return fmt.Errorf("dense engine: %s has unsupported format version %d", path, version)
	}
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return fmt.Errorf("dense engine: read chunk count: %w", err)
	}
	if err := binary.Read(r, binary.LittleEndian, &dim); err != nil {
		return fmt.Errorf("dense engine: read dimension: %w", err)
	}

	chunks := make([]Chunk, n)
	vectors := make([][]float32, n)
	for i := uint32(0); i < n; i++ {
		id, err := readLPString(r)
		if err != nil {
			return fmt.Errorf("dense engine: read id %d: %w", i, err)
		}
		text, err := readLPString(r)
		if err != nil {
			return fmt.Errorf("dense engine: read text %d: %w", i, err)
		}
		md, err := readMetadata(r)
		if err != nil {
			return fmt.Errorf("dense engine: read metadata %d: %w", i, err)
		}
		vec := make([]float32, dim)
		for j := uint32(0); j < dim; j++ {
			if err := binary.Read(r, binary.LittleEndian, &vec[j]); err != nil {
				return fmt.Errorf("dense engine: read vector %d: %w", i, err)
			}
		}
		chunks[i] = Chunk{ID: id, Text: text, Metadata: md}
		vectors[i] = vec
	}

	d.mu.Lock()
	d.chunks = chunks
	d.vectors = vectors
	d.dim = int(dim)
	d.mu.Unlock()
	return nil
}

func writeLPString(w io.Writer, s string) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(s))); err != nil {
		return err
	}
	_, err := io.WriteString(w, s)
	return err
}

func readLPString(r io.Reader) (string, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func writeMetadata(w io.Writer, md map[string]string) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(md))); err != nil {
		return err
	}
	for k, v := range md {
		if err := writeLPString(w, k); err != nil {
			return err
		}
		if err := writeLPString(w, v); err != nil {
			return err
		}
	}
	return nil
}

func readMetadata(r io.Reader) (map[string]string, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, err
	}
	if n == 0 {
		return nil, nil
	}
	md := make(map[string]string, n)
	for i := uint32(0); i < n; i++ {
		k, err := readLPString(r)
		if err != nil {
			return nil, err
		}
		v, err := readLPString(r)
		if err != nil {
			return nil, err
		}
		md[k] = v
	}
	return md, nil
}
