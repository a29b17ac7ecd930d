package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/kirillkom/bpmn-lod-mapper/internal/core/domain"
	"github.com/kirillkom/bpmn-lod-mapper/internal/core/ports"
	"github.com/kirillkom/bpmn-lod-mapper/internal/core/sparql"
)

type GetUploadUseCase struct {
	store ports.TripleStore
	graph string
}

func NewGetUploadUseCase(store ports.TripleStore, graph string) *GetUploadUseCase {
	return &GetUploadUseCase{store: store, graph: graph}
}

// GetByID projects the first solution of the lookup into a descriptor. The
// self link is linkBase as given, since it already addresses the upload.
func (uc *GetUploadUseCase) GetByID(ctx context.Context, uploadID, linkBase string) (*domain.Descriptor, error) {
	if strings.TrimSpace(linkBase) == "" {
		return nil, domain.NewUserError(domain.ErrMissingHeader, "X-Rewrite-URL header is missing.")
	}
	if strings.TrimSpace(uploadID) == "" {
		return nil, domain.NewUserError(domain.ErrNotFound, "Not Found")
	}

	res, err := uc.store.Select(ctx, sparql.SelectUploadByID(uc.graph, uploadID))
	if err != nil {
		return nil, domain.WrapError(domain.ErrStoreRead, "select upload", err)
	}
	if res.Empty() {
		return nil, domain.NewUserError(domain.ErrNotFound, "Not Found")
	}

	row := res.Bindings[0]
	size, err := row[sparql.VarSize].Int()
	if err != nil {
		return nil, domain.WrapError(domain.ErrStoreRead, "decode upload size", fmt.Errorf("upload %s: %w", uploadID, err))
	}

	return &domain.Descriptor{
		ID:        uploadID,
		Name:      row[sparql.VarName].Value,
		Format:    row[sparql.VarFormat].Value,
		Size:      size,
		Extension: row[sparql.VarExtension].Value,
		SelfLink:  linkBase,
	}, nil
}
