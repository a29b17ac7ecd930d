package httpadapter

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/julienschmidt/httprouter"

	"github.com/kirillkom/bpmn-lod-mapper/internal/config"
	"github.com/kirillkom/bpmn-lod-mapper/internal/core/domain"
	"github.com/kirillkom/bpmn-lod-mapper/internal/core/ports"
	"github.com/kirillkom/bpmn-lod-mapper/internal/observability/metrics"
)

const (
	rewriteURLHeader     = "X-Rewrite-URL"
	forwardedProtoHeader = "X-Forwarded-Proto"
	uploadFormField      = "file"
	serviceName          = "bpmn-api"
)

// HealthChecker reports whether a backing dependency is reachable.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

type Router struct {
	cfg      config.Config
	ingestor ports.UploadIngestor
	reader   ports.UploadReader
	staging  ports.UploadStaging
	metrics  *metrics.HTTPServerMetrics
	health   HealthChecker
}

func NewRouter(
	cfg config.Config,
	ingestor ports.UploadIngestor,
	reader ports.UploadReader,
	staging ports.UploadStaging,
	httpMetrics *metrics.HTTPServerMetrics,
	health HealthChecker,
) *Router {
	return &Router{
		cfg:      cfg,
		ingestor: ingestor,
		reader:   reader,
		staging:  staging,
		metrics:  httpMetrics,
		health:   health,
	}
}

func (rt *Router) Handler() http.Handler {
	api := &httprouter.Router{
		HandleMethodNotAllowed: true,
		NotFound: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			writeText(w, http.StatusNotFound, "Not Found")
		}),
		MethodNotAllowed: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			writeText(w, http.StatusMethodNotAllowed, "Method Not Allowed")
		}),
		PanicHandler: func(w http.ResponseWriter, r *http.Request, v any) {
			slog.Error("http_handler_panic", "request_id", requestIDFromContext(r.Context()), "panic", v)
			writeText(w, http.StatusInternalServerError, "Internal Server Error")
		},
	}
	api.POST("/", rt.uploadFile)
	api.GET("/:id", rt.getFile)

	var apiHandler http.Handler = api
	apiHandler = backpressureMiddleware(apiHandler, rt.cfg.APIMaxInFlight, time.Duration(rt.cfg.APIQueueTimeoutMS)*time.Millisecond)
	apiHandler = rateLimitMiddleware(apiHandler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst)

	// Operational endpoints live on exact paths so they never collide with /:id.
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	mux.HandleFunc("GET /openapi.yaml", serveOpenAPI)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}
	mux.Handle("/", apiHandler)

	var handler http.Handler = mux
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, r *http.Request) {
	if rt.health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := rt.health.Ping(ctx); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable", "error": err.Error()})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) uploadFile(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	outcome := metrics.OutcomeFailed
	if rt.metrics != nil {
		done := rt.metrics.StartIngestion()
		defer func() { done(outcome) }()
	}

	linkBase, ok := selfLinkBase(r)
	if !ok {
		outcome = metrics.OutcomeRejected
		writeError(w, missingHeaderError())
		return
	}

	upload, err := rt.stageUpload(r.Context(), w, r)
	if err != nil {
		outcome = outcomeFor(err)
		writeError(w, err)
		return
	}

	desc, err := rt.ingestor.Ingest(r.Context(), upload, linkBase)
	if err != nil {
		outcome = outcomeFor(err)
		writeError(w, err)
		return
	}

	outcome = metrics.OutcomeSuccess
	writeJSONAPI(w, http.StatusCreated, newFileDocument(desc))
}

func (rt *Router) getFile(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	linkBase, ok := selfLinkBase(r)
	if !ok {
		writeError(w, missingHeaderError())
		return
	}

	desc, err := rt.reader.GetByID(r.Context(), ps.ByName("id"), linkBase)
	if err != nil {
		if rt.metrics != nil {
			rt.metrics.RecordLookup(outcomeFor(err))
		}
		writeError(w, err)
		return
	}
	if rt.metrics != nil {
		rt.metrics.RecordLookup(metrics.OutcomeSuccess)
	}
	writeJSONAPI(w, http.StatusOK, newFileDocument(desc))
}

// stageUpload streams the "file" part of the multipart body into staging.
func (rt *Router) stageUpload(ctx context.Context, w http.ResponseWriter, r *http.Request) (domain.IncomingUpload, error) {
	if rt.cfg.MaxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, rt.cfg.MaxUploadBytes)
	}

	mr, err := r.MultipartReader()
	if err != nil {
		return domain.IncomingUpload{}, missingFileError()
	}
	for {
		part, err := mr.NextPart()
		if err != nil {
			if isTooLarge(err) {
				return domain.IncomingUpload{}, errUploadTooLarge
			}
			return domain.IncomingUpload{}, missingFileError()
		}
		if part.FormName() != uploadFormField || part.FileName() == "" {
			_ = part.Close()
			continue
		}

		path, size, err := rt.staging.Stage(ctx, part)
		_ = part.Close()
		if err != nil {
			if isTooLarge(err) {
				return domain.IncomingUpload{}, errUploadTooLarge
			}
			return domain.IncomingUpload{}, domain.WrapError(domain.ErrFileStorage, "stage upload", err)
		}

		format := part.Header.Get("Content-Type")
		if format == "" {
			format = "application/octet-stream"
		}
		return domain.IncomingUpload{
			TempPath:     path,
			OriginalName: part.FileName(),
			Format:       format,
			Size:         size,
		}, nil
	}
}

// selfLinkBase builds {scheme}://{host}{X-Rewrite-URL}. It reports false when
// the rewrite header is absent.
func selfLinkBase(r *http.Request) (string, bool) {
	rewrite := strings.TrimSpace(r.Header.Get(rewriteURLHeader))
	if rewrite == "" {
		return "", false
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := strings.TrimSpace(r.Header.Get(forwardedProtoHeader)); proto != "" {
		scheme, _, _ = strings.Cut(proto, ",")
		scheme = strings.TrimSpace(scheme)
	}
	if !strings.HasPrefix(rewrite, "/") {
		rewrite = "/" + rewrite
	}
	return scheme + "://" + r.Host + rewrite, true
}

func isTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	return errors.As(err, &maxErr)
}

func outcomeFor(err error) string {
	status := mapErrorToHTTPStatus(err)
	switch {
	case status == http.StatusNotFound:
		return metrics.OutcomeNotFound
	case status < 500:
		return metrics.OutcomeRejected
	default:
		return metrics.OutcomeFailed
	}
}
