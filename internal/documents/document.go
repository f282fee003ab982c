// Package documents holds the Document entity, its persistence, and the
// text extractors used during ingestion (PDF, URL, plain text).
package documents

import (
	"context"
	"time"
)

// SourceKind names where a Document's raw bytes came from.
type SourceKind string

const (
	SourcePDF  SourceKind = "pdf"
	SourceURL  SourceKind = "url"
	SourceText SourceKind = "text"
)

// Document is one ingested unit of text, prior to chunking.
type Document struct {
	ID        string
	Username  string
	Source    SourceKind
	Origin    string // file path or URL the text was extracted from
	Text      string
	CreatedAt time.Time
}

// Store persists Documents.
type Store interface {
	Create(ctx context.Context, d Document) error
	Get(ctx context.Context, id string) (Document, bool, error)
	ListByUser(ctx context.Context, username string) ([]Document, error)
}

// Extractor turns a raw input into plain text for chunking.
type Extractor interface {
	Extract(ctx context.Context, input string) (string, error)
}
