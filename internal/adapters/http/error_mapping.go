package httpadapter

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/kirillkom/bpmn-lod-mapper/internal/core/domain"
)

var errUploadTooLarge = errors.New("upload exceeds the maximum allowed size")

func missingHeaderError() error {
	return domain.NewUserError(domain.ErrMissingHeader, "X-Rewrite-URL header is missing.")
}

func missingFileError() error {
	return domain.NewUserError(domain.ErrInvalidInput, "multipart field 'file' is required")
}

func mapErrorToHTTPStatus(err error) int {
	switch {
	case errors.Is(err, errUploadTooLarge):
		return http.StatusRequestEntityTooLarge
	case domain.IsKind(err, domain.ErrMissingHeader),
		domain.IsKind(err, domain.ErrInvalidExtension),
		domain.IsKind(err, domain.ErrEmptyContent),
		domain.IsKind(err, domain.ErrUnmappableContent),
		domain.IsKind(err, domain.ErrInvalidInput):
		return http.StatusBadRequest
	case domain.IsKind(err, domain.ErrNotFound):
		return http.StatusNotFound
	case domain.IsKind(err, domain.ErrStoreWrite),
		domain.IsKind(err, domain.ErrStoreRead),
		domain.IsKind(err, domain.ErrMappingEngine):
		return http.StatusInternalServerError
	case domain.IsKind(err, domain.ErrTemporary):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeError answers with the error's public message as plain text.
func writeError(w http.ResponseWriter, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= 500 {
		slog.Error("request_failed", "status", status, "error", err)
	}
	writeText(w, status, domain.PublicMessage(err))
}
