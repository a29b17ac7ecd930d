package httpadapter

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/kirillkom/bpmn-lod-mapper/internal/config"
)

func TestHealthzEndpoint(t *testing.T) {
	handler := newTestHandler(config.Config{})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
}

func TestHealthzReportsUnreachableStore(t *testing.T) {
	handler := NewRouter(config.Config{}, &ingestFake{}, &readerFake{}, newStagingFake(), nil, pingFake{err: errTestUnavailable}).Handler()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", res.Code)
	}
}

func TestUploadFileSuccess(t *testing.T) {
	ingestor := &ingestFake{}
	staging := newStagingFake()
	handler := NewRouter(config.Config{MaxUploadBytes: 1 << 20}, ingestor, &readerFake{}, staging, nil, nil).Handler()

	req := newUploadRequest(t, "order.bpmn", []byte("<definitions/>"))
	req.Host = "api.example.com"
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", res.Code, res.Body.String())
	}
	if got := res.Header().Get("Content-Type"); got != contentTypeJSONAPI {
		t.Fatalf("unexpected content type %q", got)
	}
	if ingestor.upload.OriginalName != "order.bpmn" || ingestor.upload.Format != "application/xml" {
		t.Fatalf("unexpected staged upload: %+v", ingestor.upload)
	}
	if ingestor.upload.Size != int64(len("<definitions/>")) {
		t.Fatalf("unexpected size %d", ingestor.upload.Size)
	}
	if ingestor.linkBase != "http://api.example.com/files" {
		t.Fatalf("unexpected link base %q", ingestor.linkBase)
	}

	var doc fileDocument
	if err := json.NewDecoder(res.Body).Decode(&doc); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if doc.Data.Type != "files" || doc.Data.ID != "up-1" {
		t.Fatalf("unexpected resource: %+v", doc.Data)
	}
	if doc.Links.Self != "http://api.example.com/files/up-1" {
		t.Fatalf("unexpected self link %q", doc.Links.Self)
	}
}

func TestUploadFileHonoursForwardedProto(t *testing.T) {
	ingestor := &ingestFake{}
	handler := NewRouter(config.Config{}, ingestor, &readerFake{}, newStagingFake(), nil, nil).Handler()

	req := newUploadRequest(t, "order.bpmn", []byte("<definitions/>"))
	req.Host = "api.example.com"
	req.Header.Set(forwardedProtoHeader, "https, http")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", res.Code)
	}
	if ingestor.linkBase != "https://api.example.com/files" {
		t.Fatalf("unexpected link base %q", ingestor.linkBase)
	}
}

func TestUploadFileDefaultsFormat(t *testing.T) {
	ingestor := &ingestFake{}
	handler := NewRouter(config.Config{}, ingestor, &readerFake{}, newStagingFake(), nil, nil).Handler()

	body, contentType := multipartBody(t, "file", "order.bpmn", "", []byte("<definitions/>"))
	req := httptest.NewRequest(http.MethodPost, "/", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set(rewriteURLHeader, "/files")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", res.Code)
	}
	if ingestor.upload.Format != "application/octet-stream" {
		t.Fatalf("unexpected format %q", ingestor.upload.Format)
	}
}

func TestUploadFileMissingRewriteHeader(t *testing.T) {
	ingestor := &ingestFake{}
	staging := newStagingFake()
	handler := NewRouter(config.Config{}, ingestor, &readerFake{}, staging, nil, nil).Handler()

	req := newUploadRequest(t, "order.bpmn", []byte("<definitions/>"))
	req.Header.Del(rewriteURLHeader)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
	if got := res.Body.String(); got != "X-Rewrite-URL header is missing." {
		t.Fatalf("unexpected body %q", got)
	}
	if ingestor.calls != 0 || len(staging.staged) != 0 {
		t.Fatalf("nothing should be staged or ingested without the header")
	}
}

func TestUploadFileMissingMultipartField(t *testing.T) {
	handler := newTestHandler(config.Config{})

	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("plain-text"))
	req.Header.Set("Content-Type", "text/plain")
	req.Header.Set(rewriteURLHeader, "/files")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestUploadFileWrongFieldName(t *testing.T) {
	ingestor := &ingestFake{}
	handler := NewRouter(config.Config{}, ingestor, &readerFake{}, newStagingFake(), nil, nil).Handler()

	body, contentType := multipartBody(t, "document", "order.bpmn", "application/xml", []byte("<definitions/>"))
	req := httptest.NewRequest(http.MethodPost, "/", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set(rewriteURLHeader, "/files")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
	if ingestor.calls != 0 {
		t.Fatalf("ingestor must not be called")
	}
}

func TestUploadFileTooLarge(t *testing.T) {
	ingestor := &ingestFake{}
	handler := NewRouter(config.Config{MaxUploadBytes: 512}, ingestor, &readerFake{}, newStagingFake(), nil, nil).Handler()

	req := newUploadRequest(t, "order.bpmn", []byte(strings.Repeat("x", 4096)))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", res.Code)
	}
	if ingestor.calls != 0 {
		t.Fatalf("ingestor must not be called")
	}
}

func TestGetFileSuccess(t *testing.T) {
	reader := &readerFake{}
	handler := NewRouter(config.Config{}, &ingestFake{}, reader, newStagingFake(), nil, nil).Handler()

	req := httptest.NewRequest(http.MethodGet, "/up-7", nil)
	req.Host = "api.example.com"
	req.Header.Set(rewriteURLHeader, "/files/up-7")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}

	var doc fileDocument
	if err := json.NewDecoder(res.Body).Decode(&doc); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if doc.Data.ID != "up-7" || doc.Data.Attributes.Size != 42 {
		t.Fatalf("unexpected resource: %+v", doc.Data)
	}
	if doc.Links.Self != "http://api.example.com/files/up-7" {
		t.Fatalf("unexpected self link %q", doc.Links.Self)
	}
}

func TestOpenAPIDocumentIsValid(t *testing.T) {
	doc, err := LoadOpenAPI(t.Context())
	if err != nil {
		t.Fatalf("LoadOpenAPI() error = %v", err)
	}
	for _, path := range []string{"/", "/{id}", "/healthz"} {
		if doc.Paths.Find(path) == nil {
			t.Fatalf("openapi document misses path %s", path)
		}
	}

	res := httptest.NewRecorder()
	newTestHandler(config.Config{}).ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/openapi.yaml", nil))
	if res.Code != http.StatusOK || !strings.Contains(res.Body.String(), "operationId: uploadFile") {
		t.Fatalf("expected served openapi document, got %d", res.Code)
	}
}
