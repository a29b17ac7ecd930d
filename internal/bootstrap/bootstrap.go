package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	httpadapter "github.com/kirillkom/bpmn-lod-mapper/internal/adapters/http"
	"github.com/kirillkom/bpmn-lod-mapper/internal/config"
	"github.com/kirillkom/bpmn-lod-mapper/internal/core/ports"
	"github.com/kirillkom/bpmn-lod-mapper/internal/core/usecase"
	"github.com/kirillkom/bpmn-lod-mapper/internal/infrastructure/idgen"
	"github.com/kirillkom/bpmn-lod-mapper/internal/infrastructure/mapping"
	"github.com/kirillkom/bpmn-lod-mapper/internal/infrastructure/queue/nats"
	"github.com/kirillkom/bpmn-lod-mapper/internal/infrastructure/resilience"
	"github.com/kirillkom/bpmn-lod-mapper/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/bpmn-lod-mapper/internal/infrastructure/storage/minio"
	"github.com/kirillkom/bpmn-lod-mapper/internal/infrastructure/triplestore/memory"
	"github.com/kirillkom/bpmn-lod-mapper/internal/infrastructure/triplestore/postgres"
	"github.com/kirillkom/bpmn-lod-mapper/internal/infrastructure/triplestore/sparqlhttp"
	"github.com/kirillkom/bpmn-lod-mapper/internal/observability/metrics"
)

// TripleStore is a store that can also report its reachability.
type TripleStore interface {
	ports.TripleStore
	httpadapter.HealthChecker
}

type App struct {
	Config config.Config

	Store    TripleStore
	Staging  *localfs.Storage
	Mapper   *mapping.Executor
	Metrics  *metrics.HTTPServerMetrics
	Queue    *nats.Queue
	IngestUC ports.UploadIngestor
	GetUC    ports.UploadReader

	closeFns []func()
}

func New(ctx context.Context, cfg config.Config) (*App, error) {
	app := &App{Config: cfg}
	ok := false
	defer func() {
		if !ok {
			app.Close()
		}
	}()

	exec := resilience.NewExecutor(cfg.Resilience, slog.Default())

	store, err := app.openStore(ctx, cfg, exec)
	if err != nil {
		return nil, err
	}
	app.Store = store

	mapper, err := NewMapper(cfg)
	if err != nil {
		return nil, err
	}
	app.Mapper = mapper

	staging, err := localfs.New(cfg.StoragePath, cfg.UploadTempPath)
	if err != nil {
		return nil, fmt.Errorf("init upload staging: %w", err)
	}
	app.Staging = staging

	var files ports.FileStorage = staging
	if cfg.StorageBackend == config.StorageMinIO {
		bucket, err := minio.New(ctx, minio.Config{
			Endpoint:  cfg.MinIOEndpoint,
			AccessKey: cfg.MinIOAccessKey,
			SecretKey: cfg.MinIOSecretKey,
			Bucket:    cfg.MinIOBucket,
			UseSSL:    cfg.MinIOUseSSL,
		}, slog.Default())
		if err != nil {
			return nil, fmt.Errorf("init object storage: %w", err)
		}
		files = bucket
	}

	ids, err := idgen.New(cfg.IDGenerator, int64(cfg.SnowflakeNode))
	if err != nil {
		return nil, fmt.Errorf("init id generator: %w", err)
	}

	var events ports.EventPublisher
	if cfg.NATSURL != "" {
		queue, err := nats.New(cfg.NATSURL, cfg.NATSSubject, nats.Options{
			ResilienceExecutor: exec,
			Logger:             slog.Default(),
		})
		if err != nil {
			return nil, fmt.Errorf("init message queue: %w", err)
		}
		app.closeFns = append(app.closeFns, queue.Close)
		app.Queue = queue
		events = queue
	}

	app.Metrics = metrics.NewHTTPServerMetrics("bpmn-api")
	app.IngestUC = usecase.NewIngestUploadUseCase(mapper, store, staging, files, ids, events, usecase.IngestOptions{
		Graph:        cfg.StoreGraph,
		AtomicInsert: cfg.IngestAtomicInsert,
	})
	app.GetUC = usecase.NewGetUploadUseCase(store, cfg.StoreGraph)

	slog.Info("bootstrap_ready",
		"store_backend", cfg.StoreBackend,
		"storage_backend", cfg.StorageBackend,
		"id_generator", cfg.IDGenerator,
		"events", events != nil,
	)
	ok = true
	return app, nil
}

// Router builds the HTTP API on top of the wired use cases.
func (a *App) Router() *httpadapter.Router {
	return httpadapter.NewRouter(a.Config, a.IngestUC, a.GetUC, a.Staging, a.Metrics, a.Store)
}

// NewMapper loads the configured mapping rules and applies the base IRI override.
func NewMapper(cfg config.Config) (*mapping.Executor, error) {
	rules, err := mapping.LoadRules(cfg.MappingRulesPath)
	if err != nil {
		return nil, fmt.Errorf("load mapping rules: %w", err)
	}
	rules, err = rules.WithBase(cfg.MappingBaseIRI)
	if err != nil {
		return nil, fmt.Errorf("apply mapping base: %w", err)
	}
	return mapping.NewExecutor(rules, slog.Default()), nil
}

// NewTripleStore opens the configured triple store backend. The returned
// close function releases its connections.
func NewTripleStore(ctx context.Context, cfg config.Config, exec *resilience.Executor) (TripleStore, func(), error) {
	switch cfg.StoreBackend {
	case config.StoreSPARQL, "":
		store := sparqlhttp.New(sparqlhttp.Config{
			QueryEndpoint:  cfg.SPARQLEndpoint,
			UpdateEndpoint: cfg.SPARQLUpdateEndpoint,
			Timeout:        cfg.StoreTimeout(),
		}, exec, slog.Default())
		return store, func() {}, nil
	case config.StorePostgres:
		db, err := postgres.OpenDB(cfg.PostgresDSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open postgres: %w", err)
		}
		store := postgres.NewStore(db)
		if err := store.EnsureSchema(ctx); err != nil {
			closeDB(db)
			return nil, nil, fmt.Errorf("ensure schema: %w", err)
		}
		return store, func() { closeDB(db) }, nil
	case config.StoreMemory:
		return memory.NewStore(), func() {}, nil
	default:
		return nil, nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}

func (a *App) openStore(ctx context.Context, cfg config.Config, exec *resilience.Executor) (TripleStore, error) {
	store, closeFn, err := NewTripleStore(ctx, cfg, exec)
	if err != nil {
		return nil, err
	}
	a.closeFns = append(a.closeFns, closeFn)
	return store, nil
}

func closeDB(db *sql.DB) {
	if err := db.Close(); err != nil {
		slog.Warn("postgres_close_failed", "error", err)
	}
}

func (a *App) Close() {
	for i := len(a.closeFns) - 1; i >= 0; i-- {
		a.closeFns[i]()
	}
	a.closeFns = nil
}
