package httpadapter

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/kirillkom/bpmn-lod-mapper/internal/config"
	"github.com/kirillkom/bpmn-lod-mapper/internal/core/domain"
)

type ingestFake struct {
	mu       sync.Mutex
	calls    int
	upload   domain.IncomingUpload
	linkBase string
	err      error
}

func (f *ingestFake) Ingest(_ context.Context, upload domain.IncomingUpload, linkBase string) (*domain.Descriptor, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.upload = upload
	f.linkBase = linkBase
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Descriptor{
		ID:        "up-1",
		Name:      "up-1.bpmn",
		Format:    upload.Format,
		Size:      upload.Size,
		Extension: ".bpmn",
		SelfLink:  linkBase + "/up-1",
	}, nil
}

type readerFake struct {
	linkBase string
	err      error
}

func (f *readerFake) GetByID(_ context.Context, id, linkBase string) (*domain.Descriptor, error) {
	f.linkBase = linkBase
	if f.err != nil {
		return nil, f.err
	}
	return &domain.Descriptor{
		ID:        id,
		Name:      id + ".bpmn",
		Format:    "application/xml",
		Size:      42,
		Extension: ".bpmn",
		SelfLink:  linkBase,
	}, nil
}

type stagingFake struct {
	mu     sync.Mutex
	staged map[string][]byte
	err    error
}

func newStagingFake() *stagingFake {
	return &stagingFake{staged: map[string][]byte{}}
}

func (f *stagingFake) Stage(_ context.Context, body io.Reader) (string, int64, error) {
	raw, err := io.ReadAll(body)
	if err != nil {
		return "", 0, err
	}
	if f.err != nil {
		return "", 0, f.err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	path := fmt.Sprintf("staged-%d", len(f.staged)+1)
	f.staged[path] = raw
	return path, int64(len(raw)), nil
}

func (f *stagingFake) ReadText(_ context.Context, path string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return string(f.staged[path]), nil
}

func (f *stagingFake) Discard(_ context.Context, path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.staged, path)
	return nil
}

type pingFake struct {
	err error
}

func (f pingFake) Ping(context.Context) error { return f.err }

func newTestHandler(cfg config.Config) http.Handler {
	return NewRouter(cfg, &ingestFake{}, &readerFake{}, newStagingFake(), nil, nil).Handler()
}

func multipartBody(t *testing.T, field, filename, contentType string, content []byte) (*bytes.Buffer, string) {
	t.Helper()

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	header := make(map[string][]string)
	header["Content-Disposition"] = []string{fmt.Sprintf(`form-data; name=%q; filename=%q`, field, filename)}
	if contentType != "" {
		header["Content-Type"] = []string{contentType}
	}
	part, err := writer.CreatePart(header)
	if err != nil {
		t.Fatalf("CreatePart() error = %v", err)
	}
	if _, err := part.Write(content); err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	return &body, writer.FormDataContentType()
}

func newUploadRequest(t *testing.T, filename string, content []byte) *http.Request {
	t.Helper()
	body, contentType := multipartBody(t, "file", filename, "application/xml", content)
	req := httptest.NewRequest(http.MethodPost, "/", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set(rewriteURLHeader, "/files")
	return req
}
