package chunker

import (
	"context"
	"math"
	"regexp"
	"strings"

	"github.com/thirza258/ragreader/internal/engine"
)

// semanticChunker groups sentences by embedding each one and walking
// adjacent pairs: a sentence starts a new chunk when its cosine similarity
// to the running average of the current chunk's embeddings drops below
// Threshold, grounded on the teacher's textsplitters.SemanticConfig
// rolling-average boundary detection, generalized from a bag-of-words
// vector to a real embedding client per the chunker contract. Size still
// caps chunk length in runes as a hard backstop so a long run of similar
// sentences cannot produce an unbounded chunk. If no Embedder is
// configured, or a single Embed call fails, the whole call falls back to
// one-sentence-per-chunk.
type semanticChunker struct {
	cfg Config
}

func newSemantic(cfg Config) Chunker { return &semanticChunker{cfg: cfg} }

func (s *semanticChunker) Strategy() Strategy { return Semantic }

var sentenceSplitRE = regexp.MustCompile(`(?s)([.!?]+)\s+`)

func splitSentences(text string) []string {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	marked := sentenceSplitRE.ReplaceAllString(text, "$1\x00")
	parts := strings.Split(marked, "\x00")
	var out []string
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func cosineVec(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	var dot, na, nb float64
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
	}
	for _, v := range a {
		na += float64(v) * float64(v)
	}
	for _, v := range b {
		nb += float64(v) * float64(v)
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

func averageEmbedding(vecs [][]float32) []float32 {
	if len(vecs) == 0 {
		return nil
	}
	avg := make([]float32, len(vecs[0]))
	for _, v := range vecs {
		for i := range avg {
			if i < len(v) {
				avg[i] += v[i]
			}
		}
	}
	n := float32(len(vecs))
	for i := range avg {
		avg[i] /= n
	}
	return avg
}

// embedSentences embeds every sentence, returning ok=false on the first
// failure so the caller can fall back to one-sentence-per-chunk.
func embedSentences(ctx context.Context, embedder engine.Embedder, sentences []string) ([][]float32, bool) {
	vecs := make([][]float32, len(sentences))
	for i, sent := range sentences {
		v, err := embedder.Embed(ctx, sent)
		if err != nil {
			return nil, false
		}
		vecs[i] = v
	}
	return vecs, true
}

func (s *semanticChunker) Chunk(ctx context.Context, text string) []string {
	sentences := splitSentences(text)
	if len(sentences) == 0 {
		return nil
	}

	if s.cfg.Embedder == nil {
		return sentences
	}
	vecs, ok := embedSentences(ctx, s.cfg.Embedder, sentences)
	if !ok {
		return sentences
	}

	var out []string
	var curSentences []string
	var curVecs [][]float32
	curLen := 0

	flush := func() {
		if len(curSentences) == 0 {
			return
		}
		out = append(out, strings.Join(curSentences, " "))
	}

	for i, sent := range sentences {
		vec := vecs[i]
		sentLen := len([]rune(sent))

		boundary := false
		if len(curSentences) > 0 {
			avg := averageEmbedding(curVecs)
			sim := cosineVec(avg, vec)
			if sim < s.cfg.Threshold || curLen+sentLen > s.cfg.Size {
				boundary = true
			}
		}

		if boundary {
			flush()
			curSentences = nil
			curVecs = nil
			curLen = 0
		}

		curSentences = append(curSentences, sent)
		curVecs = append(curVecs, vec)
		curLen += sentLen
	}
	flush()
	return out
}
