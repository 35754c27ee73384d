// Package export publishes reconstructed document versions to object storage.
package export

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/gogotex/gogotex/backend/collab-service/internal/clock"
	"github.com/gogotex/gogotex/backend/collab-service/pkg/logger"
	"github.com/gogotex/gogotex/backend/collab-service/pkg/metrics"
)

// VersionReader reconstructs a document version.
type VersionReader interface {
	ViewVersion(ctx context.Context, id string, version int) (string, error)
}

// ObjectStore is satisfied by *storage.MinIOStorage.
type ObjectStore interface {
	UploadFile(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error
	GetPresignedURL(ctx context.Context, key string, expires time.Duration) (string, error)
}

// Result is returned to API callers.
type Result struct {
	Record
	URL      string `json:"url"`
	Uploaded bool   `json:"uploaded"`
}

type Exporter struct {
	versions VersionReader
	objects  ObjectStore
	records  Store
	clock    clock.Clock
	urlTTL   time.Duration
}

func NewExporter(versions VersionReader, objects ObjectStore, records Store, c clock.Clock, urlTTL time.Duration) *Exporter {
	if c == nil {
		c = clock.RealClock{}
	}
	if urlTTL <= 0 {
		urlTTL = 15 * time.Minute
	}
	return &Exporter{versions: versions, objects: objects, records: records, clock: c, urlTTL: urlTTL}
}

// ObjectKey is where a version's text is stored.
func ObjectKey(documentID string, version int) string {
	return fmt.Sprintf("documents/%s/v%d.txt", documentID, version)
}

// Export uploads the text of documentID at version and returns a presigned
// download URL. Versions never change, so an existing upload with the same
// checksum is reused.
func (e *Exporter) Export(ctx context.Context, documentID string, version int, requestedBy string) (*Result, error) {
	res, err := e.export(ctx, documentID, version, requestedBy)
	result := "error"
	switch {
	case err == nil && res.Uploaded:
		result = "uploaded"
	case err == nil:
		result = "reused"
	}
	metrics.Exports.WithLabelValues(result).Inc()
	return res, err
}

func (e *Exporter) export(ctx context.Context, documentID string, version int, requestedBy string) (*Result, error) {
	text, err := e.versions.ViewVersion(ctx, documentID, version)
	if err != nil {
		return nil, err
	}
	sum := sha256.Sum256([]byte(text))
	checksum := hex.EncodeToString(sum[:])

	prev, err := e.records.Load(ctx, documentID, version)
	if err != nil {
		return nil, err
	}
	uploaded := false
	rec := prev
	if prev == nil || prev.SHA256 != checksum {
		rec = &Record{
			DocumentID: documentID,
			Version:    version,
			ObjectKey:  ObjectKey(documentID, version),
			Size:       int64(len(text)),
			SHA256:     checksum,
			ExportedBy: requestedBy,
			ExportedAt: e.clock.Now(),
		}
		if err := e.objects.UploadFile(ctx, rec.ObjectKey, strings.NewReader(text), rec.Size, "text/plain; charset=utf-8"); err != nil {
			return nil, fmt.Errorf("upload %s: %w", rec.ObjectKey, err)
		}
		if err := e.records.Save(ctx, rec); err != nil {
			return nil, err
		}
		uploaded = true
		logger.Infof("exported %s@%d to %s", documentID, version, rec.ObjectKey)
	}
	url, err := e.objects.GetPresignedURL(ctx, rec.ObjectKey, e.urlTTL)
	if err != nil {
		return nil, fmt.Errorf("presign %s: %w", rec.ObjectKey, err)
	}
	return &Result{Record: *rec, URL: url, Uploaded: uploaded}, nil
}
