package domain

import (
	"strings"
	"time"
)

// AllowedExtensions lists the file extensions accepted for ingestion.
var AllowedExtensions = []string{".bpmn", ".xml"}

// IsAllowedExtension reports whether ext is accepted, ignoring case.
func IsAllowedExtension(ext string) bool {
	for _, allowed := range AllowedExtensions {
		if strings.EqualFold(ext, allowed) {
			return true
		}
	}
	return false
}

// UploadResource is the logical entity for a file a user submitted.
type UploadResource struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Format     string    `json:"format"`
	Size       int64     `json:"size"`
	Extension  string    `json:"extension"`
	CreatedAt  time.Time `json:"created_at"`
	ModifiedAt time.Time `json:"modified_at"`
}

// FileResource is the physical artifact kept under the storage root.
// DataSource holds the ID of the UploadResource it was derived from.
type FileResource struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Format     string    `json:"format"`
	Size       int64     `json:"size"`
	Extension  string    `json:"extension"`
	DataSource string    `json:"data_source"`
	CreatedAt  time.Time `json:"created_at"`
	ModifiedAt time.Time `json:"modified_at"`
}

// IncomingUpload describes a file staged by the transport layer before ingestion.
type IncomingUpload struct {
	TempPath     string
	OriginalName string
	Format       string
	Size         int64
}

// Descriptor is the externally visible view of an UploadResource.
type Descriptor struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Format    string `json:"format"`
	Size      int64  `json:"size"`
	Extension string `json:"extension"`
	SelfLink  string `json:"self"`
}
