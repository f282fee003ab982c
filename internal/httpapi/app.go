// Package httpapi implements the HTTP/WebSocket transport, grounded on
// the teacher's internal/agentd/router.go stdlib ServeMux idiom (no web
// framework) and, for streaming, vasic-digital-SuperAgent's use of
// gorilla/websocket.
package httpapi

import (
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/thirza258/ragreader/internal/batch"
	"github.com/thirza258/ragreader/internal/chunker"
	"github.com/thirza258/ragreader/internal/documents"
	"github.com/thirza258/ragreader/internal/engine"
	"github.com/thirza258/ragreader/internal/job"
	"github.com/thirza258/ragreader/internal/registry"
)

// App holds every collaborator the HTTP layer dispatches to, following
// the teacher's internal/agentd/run.go dependency-injection "app" struct.
type App struct {
	Logger     zerolog.Logger
	Registry   *registry.Registry
	Jobs       *job.Manager
	JobStore   job.Store
	Documents  documents.Store
	Batches    *batch.Orchestrator
	BatchStore batch.Store
	Chunker    chunker.Chunker
	Extractors map[documents.SourceKind]documents.Extractor

	// MediaRoot is where uploaded/fetched source bytes and their
	// extracted text blobs are persisted, per spec §6's
	// documents/user_<username>/<docid>/ layout.
	MediaRoot string

	// DefaultMethod/DefaultModel select the variant POST /open-chat
	// builds an index for, per spec §6.
	DefaultMethod engine.Method
	DefaultModel  string
}

func newID() string { return uuid.NewString() }
