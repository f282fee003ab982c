package documents

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/ledongthuc/pdf"
)

// pdfExtractor pulls plain text out of a PDF file, grounded on
// bbiangul-go-reason/parser/pdf.go's use of github.com/ledongthuc/pdf.
type pdfExtractor struct{}

// NewPDFExtractor returns an Extractor for local PDF file paths.
func NewPDFExtractor() Extractor { return &pdfExtractor{} }

func (p *pdfExtractor) Extract(ctx context.Context, path string) (string, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("pdf extractor: open %s: %w", path, err)
	}
	defer f.Close()

	reader, err := r.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("pdf extractor: extract text from %s: %w", path, err)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, reader); err != nil {
		return "", fmt.Errorf("pdf extractor: read text from %s: %w", path, err)
	}
	if buf.Len() == 0 {
		return "", fmt.Errorf("pdf extractor: %s produced no extractable text", path)
	}
	return buf.String(), nil
}
