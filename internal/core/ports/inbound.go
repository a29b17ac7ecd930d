package ports

import (
	"context"

	"github.com/kirillkom/bpmn-lod-mapper/internal/core/domain"
)

// UploadIngestor is the inbound contract for registering an uploaded BPMN file.
type UploadIngestor interface {
	Ingest(ctx context.Context, upload domain.IncomingUpload, rewriteURL string) (*domain.Descriptor, error)
}

// UploadReader is the inbound contract for looking up a registered upload.
type UploadReader interface {
	GetByID(ctx context.Context, uploadID, rewriteURL string) (*domain.Descriptor, error)
}
