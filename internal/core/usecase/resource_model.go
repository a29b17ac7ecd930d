package usecase

import (
	"time"

	"github.com/kirillkom/bpmn-lod-mapper/internal/core/domain"
	"github.com/kirillkom/bpmn-lod-mapper/internal/core/rdf"
)

// BuildResourceTriples describes an upload and its stored file as two linked
// blocks. The file block points back at the upload through nie:dataSource.
func BuildResourceTriples(upload domain.UploadResource, file domain.FileResource) rdf.Graph {
	uploadURI := rdf.UploadResourceURI(upload.ID)
	fileURI := rdf.FileResourceURI(file.Name)

	out := make(rdf.Graph, 0, 17)
	out = append(out,
		rdf.NewTriple(uploadURI, rdf.RDFType, rdf.IRI(rdf.FileDataObject)),
		rdf.NewTriple(uploadURI, rdf.FileName, rdf.Literal(upload.Name)),
		rdf.NewTriple(uploadURI, rdf.UUID, rdf.Literal(upload.ID)),
		rdf.NewTriple(uploadURI, rdf.Format, rdf.Literal(upload.Format)),
		rdf.NewTriple(uploadURI, rdf.FileSize, rdf.Integer(upload.Size)),
		rdf.NewTriple(uploadURI, rdf.FileExtension, rdf.Literal(upload.Extension)),
		rdf.NewTriple(uploadURI, rdf.Created, rdf.DateTime(upload.CreatedAt)),
		rdf.NewTriple(uploadURI, rdf.Modified, rdf.DateTime(upload.ModifiedAt)),
	)
	out = append(out,
		rdf.NewTriple(fileURI, rdf.RDFType, rdf.IRI(rdf.FileDataObject)),
		rdf.NewTriple(fileURI, rdf.DataSource, rdf.IRI(rdf.UploadResourceURI(file.DataSource))),
		rdf.NewTriple(fileURI, rdf.FileName, rdf.Literal(file.Name)),
		rdf.NewTriple(fileURI, rdf.UUID, rdf.Literal(file.ID)),
		rdf.NewTriple(fileURI, rdf.Format, rdf.Literal(file.Format)),
		rdf.NewTriple(fileURI, rdf.FileSize, rdf.Integer(file.Size)),
		rdf.NewTriple(fileURI, rdf.FileExtension, rdf.Literal(file.Extension)),
		rdf.NewTriple(fileURI, rdf.Created, rdf.DateTime(file.CreatedAt)),
		rdf.NewTriple(fileURI, rdf.Modified, rdf.DateTime(file.ModifiedAt)),
	)
	return out
}

// newResources derives both resources from one upload. now is captured once
// so every created/modified pair carries the same instant.
func newResources(in domain.IncomingUpload, extension, uploadID, fileID string, now time.Time) (domain.UploadResource, domain.FileResource) {
	upload := domain.UploadResource{
		ID:         uploadID,
		Name:       in.OriginalName,
		Format:     in.Format,
		Size:       in.Size,
		Extension:  extension,
		CreatedAt:  now,
		ModifiedAt: now,
	}
	file := domain.FileResource{
		ID:         fileID,
		Name:       fileID + extension,
		Format:     in.Format,
		Size:       in.Size,
		Extension:  extension,
		DataSource: uploadID,
		CreatedAt:  now,
		ModifiedAt: now,
	}
	return upload, file
}
