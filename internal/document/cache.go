// Package document renders certificate artifacts and caches them on disk.
//
// The cache is derived state: the ledger record stays authoritative, and any
// artifact can be regenerated by calling Ensure again.
package document

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/sync/singleflight"

	dErrors "certledger/pkg/domain-errors"
	"certledger/pkg/platform/sentinel"
)

const (
	filePrefix = "certificate_"
	fileExt    = ".pdf"
)

// Cache persists one artifact per identifier at a deterministic path.
//
// Ensure is idempotent and first-writer-wins: once an artifact exists it is
// never re-rendered or updated, even when later calls supply different
// fields. The cache trusts the first writer; the ledger record is the place
// to resolve disputes.
type Cache struct {
	dir      string
	renderer Renderer
	flight   singleflight.Group
}

// NewCache creates the artifact directory if needed.
func NewCache(dir string, renderer Renderer) (*Cache, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeDocument, "create artifact directory")
	}
	return &Cache{dir: dir, renderer: renderer}, nil
}

// Path returns the deterministic artifact location for an identifier.
func (c *Cache) Path(id string) string {
	return filepath.Join(c.dir, filePrefix+id+fileExt)
}

// Ensure renders and persists the artifact unless it already exists, and
// returns its path. Concurrent calls for the same identifier collapse to a
// single render via singleflight; calls for different identifiers do not
// contend. The write is atomic (temp file + rename) so readers never observe
// a partial artifact.
func (c *Cache) Ensure(ctx context.Context, doc Document) (string, error) {
	path := c.Path(doc.ID)

	_, err, _ := c.flight.Do(doc.ID, func() (any, error) {
		if _, err := os.Stat(path); err == nil {
			return nil, nil
		}
		if err := ctx.Err(); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeDocument, "ensure aborted")
		}

		if doc.IssueDate.IsZero() {
			doc.IssueDate = time.Now()
		}

		var buf bytes.Buffer
		if err := c.renderer.Render(&buf, doc); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeDocument, "render certificate")
		}
		return nil, c.commit(path, buf.Bytes())
	})
	if err != nil {
		return "", err
	}
	return path, nil
}

// commit writes content next to the target and renames it into place.
func (c *Cache) commit(path string, content []byte) error {
	tmp, err := os.CreateTemp(c.dir, ".artifact-*.tmp")
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeDocument, "create temp artifact")
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(content); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return dErrors.Wrap(err, dErrors.CodeDocument, "write artifact")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return dErrors.Wrap(err, dErrors.CodeDocument, "close artifact")
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return dErrors.Wrap(err, dErrors.CodeDocument, "commit artifact")
	}
	return nil
}

// Open returns the artifact bytes for an identifier, or sentinel.ErrNotFound
// when no artifact has ever been rendered for it.
func (c *Cache) Open(id string) ([]byte, error) {
	b, err := os.ReadFile(c.Path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("artifact %s: %w", id, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeDocument, "read artifact")
	}
	return b, nil
}

// Exists reports whether an artifact has been rendered for an identifier.
func (c *Cache) Exists(id string) bool {
	_, err := os.Stat(c.Path(id))
	return err == nil
}
