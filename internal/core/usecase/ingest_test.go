package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kirillkom/bpmn-lod-mapper/internal/core/domain"
	"github.com/kirillkom/bpmn-lod-mapper/internal/core/rdf"
	"github.com/kirillkom/bpmn-lod-mapper/internal/core/sparql"
)

type mapperFake struct {
	graph  rdf.Graph
	err    error
	called bool
}

func (f *mapperFake) Translate(_ context.Context, content string) (rdf.Graph, error) {
	f.called = true
	if f.err != nil {
		return nil, f.err
	}
	return f.graph, nil
}

type storeFake struct {
	mu        sync.Mutex
	updates   []sparql.Update
	failOnNth int
	err       error
	results   sparql.Results
	selectErr error
	selects   []sparql.Select
}

func (f *storeFake) Update(_ context.Context, update sparql.Update) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.updates = append(f.updates, update)
	if f.err != nil && (f.failOnNth == 0 || f.failOnNth == len(f.updates)) {
		return f.err
	}
	return nil
}

func (f *storeFake) Select(_ context.Context, query sparql.Select) (sparql.Results, error) {
	f.selects = append(f.selects, query)
	if f.selectErr != nil {
		return sparql.Results{}, f.selectErr
	}
	return f.results, nil
}

type stagingFake struct {
	content   string
	readErr   error
	discarded []string
}

func (f *stagingFake) Stage(context.Context, io.Reader) (string, int64, error) {
	return "", 0, errors.New("not implemented")
}

func (f *stagingFake) ReadText(context.Context, string) (string, error) {
	if f.readErr != nil {
		return "", f.readErr
	}
	return f.content, nil
}

func (f *stagingFake) Discard(_ context.Context, path string) error {
	f.discarded = append(f.discarded, path)
	return nil
}

type filesFake struct {
	tempPath string
	name     string
	err      error
}

func (f *filesFake) Promote(_ context.Context, tempPath, name string) error {
	if f.err != nil {
		return f.err
	}
	f.tempPath = tempPath
	f.name = name
	return nil
}

type idsFake struct {
	mu sync.Mutex
	n  int
}

func (f *idsFake) Generate() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.n++
	return fmt.Sprintf("id-%d", f.n)
}

type eventsFake struct {
	uploadID string
	err      error
}

func (f *eventsFake) PublishUploadRegistered(_ context.Context, uploadID string) error {
	f.uploadID = uploadID
	return f.err
}

type ingestFixture struct {
	mapper  *mapperFake
	store   *storeFake
	staging *stagingFake
	files   *filesFake
	events  *eventsFake
	uc      *IngestUploadUseCase
}

func newIngestFixture(opts IngestOptions) *ingestFixture {
	f := &ingestFixture{
		mapper: &mapperFake{graph: rdf.Graph{
			rdf.NewTriple("https://example.org/Task_1", rdf.RDFType, rdf.IRI("https://example.org/Task")),
		}},
		store:   &storeFake{},
		staging: &stagingFake{content: "<definitions/>"},
		files:   &filesFake{},
		events:  &eventsFake{},
	}
	f.uc = NewIngestUploadUseCase(f.mapper, f.store, f.staging, f.files, &idsFake{}, f.events, opts)
	f.uc.now = func() time.Time { return time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC) }
	return f
}

func sampleUpload(name string) domain.IncomingUpload {
	return domain.IncomingUpload{
		TempPath:     "temp/abc",
		OriginalName: name,
		Format:       "application/octet-stream",
		Size:         321,
	}
}

func TestIngestSuccess(t *testing.T) {
	f := newIngestFixture(IngestOptions{})

	desc, err := f.uc.Ingest(context.Background(), sampleUpload("order.BPMN"), "http://localhost/files")
	if err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if desc.ID != "id-1" {
		t.Fatalf("expected upload id id-1, got %s", desc.ID)
	}
	if desc.Name != "order.BPMN" || desc.Extension != ".BPMN" || desc.Size != 321 || desc.Format != "application/octet-stream" {
		t.Fatalf("unexpected descriptor: %+v", desc)
	}
	if desc.SelfLink != "http://localhost/files/id-1" {
		t.Fatalf("unexpected self link %s", desc.SelfLink)
	}
	if len(f.store.updates) != 2 {
		t.Fatalf("expected 2 update requests, got %d", len(f.store.updates))
	}
	if !strings.Contains(f.store.updates[0].String(), "https://example.org/Task_1") {
		t.Fatalf("first update must carry mapped triples: %s", f.store.updates[0])
	}
	if !strings.Contains(f.store.updates[1].String(), `<http://mu.semte.ch/vocabularies/core/uuid> "id-1"`) {
		t.Fatalf("second update must carry resource triples: %s", f.store.updates[1])
	}
	if f.files.name != "id-2.BPMN" || f.files.tempPath != "temp/abc" {
		t.Fatalf("unexpected promote call: %+v", f.files)
	}
	if len(f.staging.discarded) != 0 {
		t.Fatalf("staged file must not be discarded after move, got %v", f.staging.discarded)
	}
	if f.events.uploadID != "id-1" {
		t.Fatalf("expected registered event for id-1, got %q", f.events.uploadID)
	}
}

func TestIngestAtomicInsertSendsSingleRequest(t *testing.T) {
	f := newIngestFixture(IngestOptions{AtomicInsert: true, Graph: "http://mu.semte.ch/application"})

	if _, err := f.uc.Ingest(context.Background(), sampleUpload("a.xml"), "/files"); err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
	if len(f.store.updates) != 1 {
		t.Fatalf("expected 1 update request, got %d", len(f.store.updates))
	}
	if ops := len(f.store.updates[0].Operations); ops != 2 {
		t.Fatalf("expected 2 operations, got %d", ops)
	}
	if f.store.updates[0].Operations[1].Graph != "http://mu.semte.ch/application" {
		t.Fatalf("expected graph on resource insert")
	}
}

func TestIngestRejectsMissingLinkBase(t *testing.T) {
	f := newIngestFixture(IngestOptions{})

	_, err := f.uc.Ingest(context.Background(), sampleUpload("a.bpmn"), " ")
	if !domain.IsKind(err, domain.ErrMissingHeader) {
		t.Fatalf("expected ErrMissingHeader, got %v", err)
	}
	if f.mapper.called || len(f.store.updates) != 0 || f.files.name != "" {
		t.Fatalf("missing header must not have side effects")
	}
	if len(f.staging.discarded) != 1 {
		t.Fatalf("expected staged file removal")
	}
}

func TestIngestRejectsExtensions(t *testing.T) {
	for _, name := range []string{"notes.txt", "diagram.pdf", "no-extension"} {
		t.Run(name, func(t *testing.T) {
			f := newIngestFixture(IngestOptions{})

			_, err := f.uc.Ingest(context.Background(), sampleUpload(name), "/files")
			if !domain.IsKind(err, domain.ErrInvalidExtension) {
				t.Fatalf("expected ErrInvalidExtension, got %v", err)
			}
			if f.mapper.called {
				t.Fatalf("mapper must not run for rejected extensions")
			}
			if len(f.staging.discarded) != 1 || f.staging.discarded[0] != "temp/abc" {
				t.Fatalf("expected temp file removal, got %v", f.staging.discarded)
			}
		})
	}
}

func TestIngestInvalidExtensionMessageNamesExtension(t *testing.T) {
	f := newIngestFixture(IngestOptions{})

	_, err := f.uc.Ingest(context.Background(), sampleUpload("notes.txt"), "/files")
	want := "Invalid file extension: The file extension '.txt' is not allowed. Only .bpmn, .xml are."
	if domain.PublicMessage(err) != want {
		t.Fatalf("unexpected message %q", domain.PublicMessage(err))
	}
}

func TestIngestMappingErrorsStopBeforeStore(t *testing.T) {
	kinds := []error{domain.ErrEmptyContent, domain.ErrUnmappableContent, domain.ErrMappingEngine}
	for _, kind := range kinds {
		t.Run(kind.Error(), func(t *testing.T) {
			f := newIngestFixture(IngestOptions{})
			f.mapper.err = domain.NewUserError(kind, "mapping failed")

			_, err := f.uc.Ingest(context.Background(), sampleUpload("a.bpmn"), "/files")
			if !domain.IsKind(err, kind) {
				t.Fatalf("expected %v, got %v", kind, err)
			}
			if len(f.store.updates) != 0 {
				t.Fatalf("no insert may be issued, got %d", len(f.store.updates))
			}
			if len(f.staging.discarded) != 1 {
				t.Fatalf("expected temp file removal")
			}
		})
	}
}

func TestIngestStoreFailureLeavesNoStoredFile(t *testing.T) {
	for _, nth := range []int{1, 2} {
		t.Run(fmt.Sprintf("update-%d", nth), func(t *testing.T) {
			f := newIngestFixture(IngestOptions{})
			f.store.err = errors.New("store unavailable")
			f.store.failOnNth = nth

			_, err := f.uc.Ingest(context.Background(), sampleUpload("a.bpmn"), "/files")
			if !domain.IsKind(err, domain.ErrStoreWrite) {
				t.Fatalf("expected ErrStoreWrite, got %v", err)
			}
			if !strings.Contains(err.Error(), "store unavailable") {
				t.Fatalf("expected underlying message, got %v", err)
			}
			if len(f.store.updates) != nth {
				t.Fatalf("expected %d update calls, got %d", nth, len(f.store.updates))
			}
			if f.files.name != "" {
				t.Fatalf("file must not be moved after failed insert")
			}
			if len(f.staging.discarded) != 1 {
				t.Fatalf("expected temp file removal")
			}
		})
	}
}

func TestIngestMoveFailure(t *testing.T) {
	f := newIngestFixture(IngestOptions{})
	f.files.err = errors.New("disk full")

	_, err := f.uc.Ingest(context.Background(), sampleUpload("a.bpmn"), "/files")
	if !domain.IsKind(err, domain.ErrFileStorage) {
		t.Fatalf("expected ErrFileStorage, got %v", err)
	}
	if len(f.store.updates) != 2 {
		t.Fatalf("inserts happen before the move, got %d", len(f.store.updates))
	}
	if len(f.staging.discarded) != 1 {
		t.Fatalf("expected temp file removal")
	}
	if f.events.uploadID != "" {
		t.Fatalf("no event may be published for a failed ingestion")
	}
}

func TestIngestEventFailureDoesNotFailIngestion(t *testing.T) {
	f := newIngestFixture(IngestOptions{})
	f.events.err = errors.New("nats down")

	if _, err := f.uc.Ingest(context.Background(), sampleUpload("a.bpmn"), "/files"); err != nil {
		t.Fatalf("Ingest() error = %v", err)
	}
}

func TestIngestReadFailure(t *testing.T) {
	f := newIngestFixture(IngestOptions{})
	f.staging.readErr = errors.New("gone")

	_, err := f.uc.Ingest(context.Background(), sampleUpload("a.bpmn"), "/files")
	if !domain.IsKind(err, domain.ErrFileStorage) {
		t.Fatalf("expected ErrFileStorage, got %v", err)
	}
	if f.mapper.called {
		t.Fatalf("mapper must not run when content cannot be read")
	}
}
