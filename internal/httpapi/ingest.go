package httpapi

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/thirza258/ragreader/internal/apperr"
	"github.com/thirza258/ragreader/internal/documents"
)

// mediaDir returns, and creates, documents/user_<username>/<docid>/
// under a.MediaRoot, per spec §6.
func (a *App) mediaDir(username, docID string) (string, error) {
	dir := filepath.Join(a.MediaRoot, "documents", "user_"+username, docID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("httpapi: create media dir: %w", err)
	}
	return dir, nil
}

// persistDocument runs extractor against input, writes the cleaned text
// blob alongside the source artifact, and records a Document.
func (a *App) persistDocument(w http.ResponseWriter, r *http.Request, username, input string, kind documents.SourceKind, sourcePath string) {
	ctx := r.Context()
	extractor, ok := a.Extractors[kind]
	if !ok {
		writeError(w, apperr.New(apperr.KindInput, fmt.Sprintf("no extractor configured for source kind %q", kind)))
		return
	}

	text, err := extractor.Extract(ctx, input)
	if err != nil {
		writeError(w, apperr.Wrap(apperr.KindInput, "extract text", err))
		return
	}

	docID := newID()
	dir, err := a.mediaDir(username, docID)
	if err != nil {
		writeError(w, apperr.Wrap(apperr.KindInternal, "prepare media directory", err))
		return
	}
	if err := os.WriteFile(filepath.Join(dir, "extracted.txt"), []byte(text), 0o644); err != nil {
		writeError(w, apperr.Wrap(apperr.KindInternal, "persist extracted text", err))
		return
	}

	doc := documents.Document{
		ID:        docID,
		Username:  username,
		Source:    kind,
		Origin:    sourcePath,
		Text:      text,
		CreatedAt: time.Now().UTC(),
	}
	if err := a.Documents.Create(ctx, doc); err != nil {
		writeError(w, apperr.Wrap(apperr.KindInternal, "record document", err))
		return
	}

	writeOK(w, http.StatusOK, "document ingested", map[string]string{"document_id": docID})
}

// handleInsertData implements POST /insert-data (multipart: user, file),
// saving the uploaded bytes under the media root before extraction.
func (a *App) handleInsertData(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, apperr.New(apperr.KindInput, "method not allowed"))
		return
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, apperr.Wrap(apperr.KindInput, "parse multipart form", err))
		return
	}
	username := strings.TrimSpace(r.FormValue("user"))
	if username == "" {
		writeError(w, apperr.New(apperr.KindInput, "user is required"))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, apperr.Wrap(apperr.KindInput, "file is required", err))
		return
	}
	defer file.Close()

	tmpID := newID()
	dir, err := a.mediaDir(username, tmpID)
	if err != nil {
		writeError(w, apperr.Wrap(apperr.KindInternal, "prepare media directory", err))
		return
	}
	sourcePath := filepath.Join(dir, header.Filename)
	out, err := os.Create(sourcePath)
	if err != nil {
		writeError(w, apperr.Wrap(apperr.KindInternal, "store uploaded file", err))
		return
	}
	if _, err := io.Copy(out, file); err != nil {
		out.Close()
		writeError(w, apperr.Wrap(apperr.KindInternal, "store uploaded file", err))
		return
	}
	out.Close()

	kind := documents.SourceText
	if strings.EqualFold(filepath.Ext(header.Filename), ".pdf") {
		kind = documents.SourcePDF
	}
	a.persistDocument(w, r, username, sourcePath, kind, sourcePath)
}

// handleInsertURL implements POST /insert-url (user, url).
func (a *App) handleInsertURL(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, apperr.New(apperr.KindInput, "method not allowed"))
		return
	}
	if err := r.ParseForm(); err != nil {
		writeError(w, apperr.Wrap(apperr.KindInput, "parse form", err))
		return
	}
	username := strings.TrimSpace(r.FormValue("user"))
	rawURL := strings.TrimSpace(r.FormValue("url"))
	if username == "" || rawURL == "" {
		writeError(w, apperr.New(apperr.KindInput, "user and url are required"))
		return
	}
	a.persistDocument(w, r, username, rawURL, documents.SourceURL, rawURL)
}

// handleInsertText implements POST /insert-text (user, text).
func (a *App) handleInsertText(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, apperr.New(apperr.KindInput, "method not allowed"))
		return
	}
	if err := r.ParseForm(); err != nil {
		writeError(w, apperr.Wrap(apperr.KindInput, "parse form", err))
		return
	}
	username := strings.TrimSpace(r.FormValue("user"))
	text := r.FormValue("text")
	if username == "" || strings.TrimSpace(text) == "" {
		writeError(w, apperr.New(apperr.KindInput, "user and text are required"))
		return
	}
	a.persistDocument(w, r, username, text, documents.SourceText, "")
}
