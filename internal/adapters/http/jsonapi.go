package httpadapter

import (
	"encoding/json"
	"net/http"

	"github.com/kirillkom/bpmn-lod-mapper/internal/core/domain"
)

const contentTypeJSONAPI = "application/vnd.api+json"

type fileDocument struct {
	Data  fileResource `json:"data"`
	Links links        `json:"links"`
}

type fileResource struct {
	Type       string         `json:"type"`
	ID         string         `json:"id"`
	Attributes fileAttributes `json:"attributes"`
}

type fileAttributes struct {
	Name      string `json:"name"`
	Format    string `json:"format"`
	Size      int64  `json:"size"`
	Extension string `json:"extension"`
}

type links struct {
	Self string `json:"self"`
}

func newFileDocument(desc *domain.Descriptor) fileDocument {
	return fileDocument{
		Data: fileResource{
			Type: "files",
			ID:   desc.ID,
			Attributes: fileAttributes{
				Name:      desc.Name,
				Format:    desc.Format,
				Size:      desc.Size,
				Extension: desc.Extension,
			},
		},
		Links: links{Self: desc.SelfLink},
	}
}

func writeJSONAPI(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", contentTypeJSONAPI)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeText(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}
