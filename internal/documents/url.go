package documents

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	readability "github.com/go-shiori/go-readability"
)

// urlExtractor fetches a page and extracts its main article text,
// grounded on the teacher's internal/tools/web/fetch.go Fetcher
// (readability-first extraction, hardened HTTP defaults).
type urlExtractor struct {
	timeout time.Duration
}

// NewURLExtractor returns an Extractor for http(s) URLs.
func NewURLExtractor() Extractor {
	return &urlExtractor{timeout: 20 * time.Second}
}

func (u *urlExtractor) Extract(ctx context.Context, rawURL string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || parsed.Scheme == "" {
		return "", fmt.Errorf("url extractor: invalid URL %q", rawURL)
	}

	article, err := readability.FromURL(parsed.String(), u.timeout)
	if err != nil {
		return "", fmt.Errorf("url extractor: fetch %s: %w", rawURL, err)
	}

	if strings.TrimSpace(article.TextContent) != "" {
		return article.TextContent, nil
	}

	// Fall back to converting the raw article HTML to markdown when
	// readability extracted no plain text content.
	md, err := htmltomarkdown.ConvertString(article.Content)
	if err != nil {
		return "", fmt.Errorf("url extractor: convert html to markdown for %s: %w", rawURL, err)
	}
	if strings.TrimSpace(md) == "" {
		return "", fmt.Errorf("url extractor: %s produced no extractable text", rawURL)
	}
	return md, nil
}
