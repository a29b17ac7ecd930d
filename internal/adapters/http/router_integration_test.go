package httpadapter

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/kirillkom/bpmn-lod-mapper/internal/config"
	"github.com/kirillkom/bpmn-lod-mapper/internal/core/usecase"
	"github.com/kirillkom/bpmn-lod-mapper/internal/infrastructure/idgen"
	"github.com/kirillkom/bpmn-lod-mapper/internal/infrastructure/mapping"
	"github.com/kirillkom/bpmn-lod-mapper/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/bpmn-lod-mapper/internal/infrastructure/triplestore/memory"
	"github.com/kirillkom/bpmn-lod-mapper/internal/observability/metrics"
)

const sampleBPMN = `<?xml version="1.0" encoding="UTF-8"?>
<definitions xmlns="http://www.omg.org/spec/BPMN/20100524/MODEL" id="Defs">
  <process id="P1" isExecutable="false">
    <startEvent id="S1"/>
    <task id="T1" name="Review"/>
    <sequenceFlow id="F1" sourceRef="S1" targetRef="T1"/>
  </process>
</definitions>`

type pipeline struct {
	handler  http.Handler
	store    *memory.Store
	files    *localfs.Storage
	tempPath string
}

func newPipeline(t *testing.T) pipeline {
	t.Helper()

	root := t.TempDir()
	tempPath := filepath.Join(root, "temp")
	files, err := localfs.New(filepath.Join(root, "share"), tempPath)
	if err != nil {
		t.Fatalf("localfs.New() error = %v", err)
	}
	rules, err := mapping.DefaultRules()
	if err != nil {
		t.Fatalf("DefaultRules() error = %v", err)
	}
	ids, err := idgen.New("uuid", 0)
	if err != nil {
		t.Fatalf("idgen.New() error = %v", err)
	}

	store := memory.NewStore()
	ingest := usecase.NewIngestUploadUseCase(mapping.NewExecutor(rules, nil), store, files, files, ids, nil, usecase.IngestOptions{})
	get := usecase.NewGetUploadUseCase(store, "")
	httpMetrics := metrics.NewHTTPServerMetrics("bpmn-api-test")

	cfg := config.Config{MaxUploadBytes: 1 << 20}
	return pipeline{
		handler:  NewRouter(cfg, ingest, get, files, httpMetrics, store).Handler(),
		store:    store,
		files:    files,
		tempPath: tempPath,
	}
}

func (p pipeline) upload(t *testing.T, name, content string) *httptest.ResponseRecorder {
	t.Helper()
	req := newUploadRequest(t, name, []byte(content))
	req.Host = "api.example.com"
	res := httptest.NewRecorder()
	p.handler.ServeHTTP(res, req)
	return res
}

func TestIngestThenRetrieveRoundTrip(t *testing.T) {
	p := newPipeline(t)

	res := p.upload(t, "review.bpmn", sampleBPMN)
	if res.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", res.Code, res.Body.String())
	}
	var created fileDocument
	if err := json.NewDecoder(res.Body).Decode(&created); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	id := created.Data.ID
	attrs := created.Data.Attributes
	if id == "" || attrs.Extension != ".bpmn" || attrs.Size != int64(len(sampleBPMN)) {
		t.Fatalf("unexpected created resource: %+v", created.Data)
	}
	if created.Links.Self != "http://api.example.com/files/"+id {
		t.Fatalf("unexpected self link %q", created.Links.Self)
	}
	if _, err := os.Stat(filepath.Join(p.files.BasePath(), attrs.Name)); err != nil {
		t.Fatalf("stored file missing: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/"+id, nil)
	req.Host = "api.example.com"
	req.Header.Set(rewriteURLHeader, "/files/"+id)
	got := httptest.NewRecorder()
	p.handler.ServeHTTP(got, req)
	if got.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", got.Code, got.Body.String())
	}

	var fetched fileDocument
	if err := json.NewDecoder(got.Body).Decode(&fetched); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if fetched.Data.Attributes != created.Data.Attributes {
		t.Fatalf("retrieved attributes %+v differ from created %+v", fetched.Data.Attributes, created.Data.Attributes)
	}
	if fetched.Links.Self != created.Links.Self {
		t.Fatalf("retrieved self link %q differs from %q", fetched.Links.Self, created.Links.Self)
	}
}

func TestRetrieveUnknownIDReturns404(t *testing.T) {
	p := newPipeline(t)

	req := httptest.NewRequest(http.MethodGet, "/does-not-exist", nil)
	req.Header.Set(rewriteURLHeader, "/files/does-not-exist")
	res := httptest.NewRecorder()
	p.handler.ServeHTTP(res, req)

	if res.Code != http.StatusNotFound || res.Body.String() != "Not Found" {
		t.Fatalf("expected 404 Not Found, got %d %q", res.Code, res.Body.String())
	}
}

func TestRejectedUploadLeavesNoTraces(t *testing.T) {
	p := newPipeline(t)

	for name, content := range map[string]string{
		"notes.txt":   sampleBPMN,
		"empty.bpmn":  "  \n",
		"broken.bpmn": "<definitions><process id=\"P\"></definitions>",
	} {
		res := p.upload(t, name, content)
		if res.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", name, res.Code)
		}
	}

	if p.store.Len() != 0 {
		t.Fatalf("expected no triples, got %d", p.store.Len())
	}
	entries, err := os.ReadDir(p.tempPath)
	if err != nil {
		t.Fatalf("read temp dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected staged files to be removed, found %d", len(entries))
	}
}

func TestConcurrentIngestionsGetDistinctIDs(t *testing.T) {
	p := newPipeline(t)

	const workers = 8
	requests := make([]*http.Request, workers)
	for i := range requests {
		requests[i] = newUploadRequest(t, "review.bpmn", []byte(sampleBPMN))
	}

	ids := make(chan string, workers)
	var wg sync.WaitGroup
	for _, req := range requests {
		wg.Add(1)
		go func(req *http.Request) {
			defer wg.Done()
			res := httptest.NewRecorder()
			p.handler.ServeHTTP(res, req)
			if res.Code != http.StatusCreated {
				return
			}
			var doc fileDocument
			if err := json.NewDecoder(res.Body).Decode(&doc); err == nil {
				ids <- doc.Data.ID
			}
		}(req)
	}
	wg.Wait()
	close(ids)

	seen := map[string]bool{}
	for id := range ids {
		if seen[id] {
			t.Fatalf("duplicate upload id %s", id)
		}
		seen[id] = true
	}
	if len(seen) != workers {
		t.Fatalf("expected %d successful ingestions, got %d", workers, len(seen))
	}
}

func TestMetricsEndpointExposesIngestionCounters(t *testing.T) {
	p := newPipeline(t)
	if res := p.upload(t, "review.bpmn", sampleBPMN); res.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", res.Code)
	}

	res := httptest.NewRecorder()
	p.handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if body := res.Body.String(); !containsAll(body, "bpmn_http_requests_total", "bpmn_ingest_uploads_total") {
		t.Fatalf("metrics output misses expected series")
	}
}

func containsAll(s string, subs ...string) bool {
	for _, sub := range subs {
		if !strings.Contains(s, sub) {
			return false
		}
	}
	return true
}
