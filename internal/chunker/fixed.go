package chunker

import (
	"context"
	"strings"
)

// fixedChunker splits text into fixed-size rune windows with a trailing
// overlap carried into the next window, grounded on the teacher's
// textsplitters.FixedConfig sliding-window logic.
type fixedChunker struct {
	cfg Config
}

func newFixed(cfg Config) Chunker { return &fixedChunker{cfg: cfg} }

func (f *fixedChunker) Strategy() Strategy { return Fixed }

func (f *fixedChunker) Chunk(_ context.Context, text string) []string {
	runes := []rune(strings.TrimSpace(text))
	if len(runes) == 0 {
		return nil
	}
	step := f.cfg.Size - f.cfg.Overlap
	if step <= 0 {
		step = 1
	}
	var out []string
	for start := 0; start < len(runes); start += step {
		end := start + f.cfg.Size
		if end > len(runes) {
			end = len(runes)
		}
		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			out = append(out, chunk)
		}
		if end == len(runes) {
			break
		}
	}
	return out
}
