package ports

import (
	"context"
	"io"

	"github.com/kirillkom/bpmn-lod-mapper/internal/core/rdf"
	"github.com/kirillkom/bpmn-lod-mapper/internal/core/sparql"
)

// Mapper turns raw BPMN/XML text into RDF triples.
type Mapper interface {
	Translate(ctx context.Context, content string) (rdf.Graph, error)
}

// TripleStore executes update and select commands against the knowledge store.
type TripleStore interface {
	Update(ctx context.Context, update sparql.Update) error
	Select(ctx context.Context, query sparql.Select) (sparql.Results, error)
}

// UploadStaging gives access to files staged by the transport layer.
type UploadStaging interface {
	Stage(ctx context.Context, body io.Reader) (path string, size int64, err error)
	ReadText(ctx context.Context, path string) (string, error)
	Discard(ctx context.Context, path string) error
}

// FileStorage moves a staged file into permanent storage under name.
type FileStorage interface {
	Promote(ctx context.Context, tempPath, name string) error
}

// IDGenerator supplies globally unique opaque identifiers.
type IDGenerator interface {
	Generate() string
}

// EventPublisher announces registered uploads.
type EventPublisher interface {
	PublishUploadRegistered(ctx context.Context, uploadID string) error
}
