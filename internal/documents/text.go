package documents

import (
	"context"
	"fmt"
	"strings"
)

// textExtractor passes raw text straight through after trimming, for
// inserts that are already plain text rather than a file or URL.
type textExtractor struct{}

// NewTextExtractor returns an Extractor for inline plain-text input.
func NewTextExtractor() Extractor { return &textExtractor{} }

func (t *textExtractor) Extract(ctx context.Context, input string) (string, error) {
	trimmed := strings.TrimSpace(input)
	if trimmed == "" {
		return "", fmt.Errorf("text extractor: empty input")
	}
	return trimmed, nil
}
