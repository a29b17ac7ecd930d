package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/kirillkom/bpmn-lod-mapper/internal/core/domain"
	"github.com/kirillkom/bpmn-lod-mapper/internal/core/ports"
	"github.com/kirillkom/bpmn-lod-mapper/internal/core/sparql"
)

// IngestOptions tunes how an ingestion is written to the store.
type IngestOptions struct {
	// Graph scopes every insert to a named graph when set.
	Graph string
	// AtomicInsert sends mapped and resource triples as one update request
	// instead of two consecutive ones.
	AtomicInsert bool
}

type IngestUploadUseCase struct {
	mapper  ports.Mapper
	store   ports.TripleStore
	staging ports.UploadStaging
	files   ports.FileStorage
	ids     ports.IDGenerator
	events  ports.EventPublisher
	opts    IngestOptions
	now     func() time.Time
}

func NewIngestUploadUseCase(
	mapper ports.Mapper,
	store ports.TripleStore,
	staging ports.UploadStaging,
	files ports.FileStorage,
	ids ports.IDGenerator,
	events ports.EventPublisher,
	opts IngestOptions,
) *IngestUploadUseCase {
	return &IngestUploadUseCase{
		mapper:  mapper,
		store:   store,
		staging: staging,
		files:   files,
		ids:     ids,
		events:  events,
		opts:    opts,
		now:     time.Now,
	}
}

// Ingest validates and maps a staged upload, writes the mapped and resource
// triples, then moves the file into storage. Every failure before the move
// removes the staged file. A failure after the inserts but during the move
// leaves the triples in place.
func (uc *IngestUploadUseCase) Ingest(
	ctx context.Context,
	upload domain.IncomingUpload,
	linkBase string,
) (*domain.Descriptor, error) {
	moved := false
	defer func() {
		if !moved {
			uc.discard(ctx, upload.TempPath)
		}
	}()

	if strings.TrimSpace(linkBase) == "" {
		return nil, domain.NewUserError(domain.ErrMissingHeader, "X-Rewrite-URL header is missing.")
	}

	extension := filepath.Ext(upload.OriginalName)
	if !domain.IsAllowedExtension(extension) {
		return nil, domain.NewUserError(domain.ErrInvalidExtension, fmt.Sprintf(
			"Invalid file extension: The file extension '%s' is not allowed. Only %s are.",
			extension, strings.Join(domain.AllowedExtensions, ", "),
		))
	}

	content, err := uc.staging.ReadText(ctx, upload.TempPath)
	if err != nil {
		return nil, domain.WrapError(domain.ErrFileStorage, "read staged upload", err)
	}

	mapped, err := uc.mapper.Translate(ctx, content)
	if err != nil {
		return nil, err
	}

	uploadID := uc.ids.Generate()
	fileID := uc.ids.Generate()
	uploadRes, fileRes := newResources(upload, extension, uploadID, fileID, uc.now().UTC())

	mappedInsert := sparql.NewInsert(uc.opts.Graph, mapped)
	resourceInsert := sparql.NewInsert(uc.opts.Graph, BuildResourceTriples(uploadRes, fileRes))

	if uc.opts.AtomicInsert {
		if err := uc.store.Update(ctx, sparql.Merge(mappedInsert, resourceInsert)); err != nil {
			return nil, domain.WrapError(domain.ErrStoreWrite, "insert triples", err)
		}
	} else {
		if err := uc.store.Update(ctx, mappedInsert); err != nil {
			return nil, domain.WrapError(domain.ErrStoreWrite, "insert mapped triples", err)
		}
		if err := uc.store.Update(ctx, resourceInsert); err != nil {
			slog.Error("resource_insert_failed",
				"upload_id", uploadID,
				"mapped_triples", len(mapped),
				"error", err,
			)
			return nil, domain.WrapError(domain.ErrStoreWrite, "insert resource triples", err)
		}
	}

	if err := uc.files.Promote(ctx, upload.TempPath, fileRes.Name); err != nil {
		slog.Error("file_move_failed",
			"upload_id", uploadID,
			"file_name", fileRes.Name,
			"error", err,
		)
		return nil, domain.WrapError(domain.ErrFileStorage, "move upload into storage", err)
	}
	moved = true

	slog.Info("upload_registered",
		"upload_id", uploadID,
		"file_name", fileRes.Name,
		"mapped_triples", len(mapped),
		"size", uploadRes.Size,
	)

	if uc.events != nil {
		if err := uc.events.PublishUploadRegistered(ctx, uploadID); err != nil {
			slog.Warn("publish_upload_registered_failed", "upload_id", uploadID, "error", err)
		}
	}

	return &domain.Descriptor{
		ID:        uploadRes.ID,
		Name:      uploadRes.Name,
		Format:    uploadRes.Format,
		Size:      uploadRes.Size,
		Extension: uploadRes.Extension,
		SelfLink:  strings.TrimRight(linkBase, "/") + "/" + uploadRes.ID,
	}, nil
}

func (uc *IngestUploadUseCase) discard(ctx context.Context, path string) {
	if path == "" {
		return
	}
	if err := uc.staging.Discard(ctx, path); err != nil {
		slog.Warn("discard_staged_upload_failed", "path", path, "error", err)
	}
}
