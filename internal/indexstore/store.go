// Package indexstore persists IndexRecord metadata to a relational store
// and retrieval engine artifacts to the filesystem, using a
// write-temp-then-rename publish step guarded by an advisory file lock,
// grounded on SPEC_FULL.md §5 and
// internal/persistence/databases/postgres_doc.go's bootstrap/upsert idiom.
package indexstore

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gofrs/flock"
)

// Status is the lifecycle state of a persisted index artifact.
type Status string

const (
	StatusBuilding Status = "building"
	StatusReady    Status = "ready"
	StatusFailed   Status = "failed"
)

// Record mirrors the IndexRecord entity: one row per (username, docID,
// method) build, pointing at the artifact location on disk.
type Record struct {
	ID         string
	Username   string
	DocumentID string
	Method     string
	Location   string
	Status     Status
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Store persists Records. Implementations must make GetReady return the
// last successfully-built record for a (username, docID, method) triple
// ("last-wins"), even when older builds are still marked building/failed.
type Store interface {
	Create(ctx context.Context, r Record) error
	UpdateStatus(ctx context.Context, id string, status Status) error
	GetReady(ctx context.Context, username, documentID, method string) (Record, bool, error)
	ListByUser(ctx context.Context, username string) ([]Record, error)
}

// ArtifactExt chooses the stable, method-specific extension used in the
// artifact naming scheme. Sparse (bleve), hybrid and rerank artifacts are
// directories; the extension is still meaningful metadata even though the
// "file" is a directory tree.
func ArtifactExt(method string) string {
	switch method {
	case "sparse":
		return "bleve"
	case "dense", "iterative":
		return "bin"
	case "hybrid", "rerank":
		return "dir"
	default:
		return "bin"
	}
}

// ArtifactPath builds the on-disk path for a (username, docID, method)
// build, following the naming convention
// <root>/<username>/<username>_<docId>_<method>_<6hex>.<ext>.
func ArtifactPath(root, username, documentID, method string) (string, error) {
	suffix, err := randomHex(3)
	if err != nil {
		return "", fmt.Errorf("indexstore: generate artifact suffix: %w", err)
	}
	dir := filepath.Join(root, username)
	name := fmt.Sprintf("%s_%s_%s_%s.%s", username, documentID, strings.ToLower(method), suffix, ArtifactExt(strings.ToLower(method)))
	return filepath.Join(dir, name), nil
}

func randomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// Publisher is satisfied by any retrieval engine's persistence methods;
// IndexStore drives Save against a scratch location, then promotes it
// into place atomically.
type Publisher interface {
	Save(path string) error
}

// Publish runs save against a scratch path under root, then atomically
// renames it to finalPath, guarded by an advisory lock on the
// user's artifact directory so concurrent builds for the same user never
// interleave renames, and syncs that directory after the rename so the
// new name is durable before Publish returns. Both scratch and finalPath
// may be directories (Sparse/Hybrid/Rerank artifacts) or single files
// (Dense/Iterative).
func Publish(root, username string, p Publisher, finalPath string) error {
	dir := filepath.Dir(finalPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("indexstore: create artifact dir: %w", err)
	}

	lockPath := filepath.Join(dir, ".lock")
	fl := flock.New(lockPath)
	lockCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	locked, err := fl.TryLockContext(lockCtx, 100*time.Millisecond)
	if err != nil {
		return fmt.Errorf("indexstore: acquire publish lock: %w", err)
	}
	if !locked {
		return fmt.Errorf("indexstore: artifact directory %s is locked by a concurrent build", dir)
	}
	defer fl.Unlock()

	scratch := finalPath + ".building"
	if err := p.Save(scratch); err != nil {
		return fmt.Errorf("indexstore: save to scratch location: %w", err)
	}
	if err := os.RemoveAll(finalPath); err != nil {
		return fmt.Errorf("indexstore: clear previous artifact: %w", err)
	}
	if err := os.Rename(scratch, finalPath); err != nil {
		return fmt.Errorf("indexstore: publish artifact: %w", err)
	}
	d, err := os.Open(dir)
	if err != nil {
		return fmt.Errorf("indexstore: open artifact dir for sync: %w", err)
	}
	syncErr := d.Sync()
	_ = d.Close()
	if syncErr != nil {
		return fmt.Errorf("indexstore: sync artifact dir: %w", syncErr)
	}
	return nil
}
