// Package sparqlhttp talks to a SPARQL 1.1 endpoint over the HTTP protocol.
package sparqlhttp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kirillkom/bpmn-lod-mapper/internal/core/domain"
	"github.com/kirillkom/bpmn-lod-mapper/internal/core/sparql"
	"github.com/kirillkom/bpmn-lod-mapper/internal/infrastructure/resilience"
)

const (
	contentTypeUpdate  = "application/sparql-update"
	contentTypeForm    = "application/x-www-form-urlencoded"
	acceptResultsJSON  = "application/sparql-results+json"
	maxErrorBodyBytes  = 2048
	serviceName        = "sparql"
	operationUpdate    = "sparql.update"
	operationSelect    = "sparql.select"
	operationAskHealth = "sparql.ping"
)

type Config struct {
	QueryEndpoint  string
	UpdateEndpoint string
	Timeout        time.Duration
}

type Store struct {
	queryURL   string
	updateURL  string
	httpClient *http.Client
	exec       *resilience.Executor
	logger     *slog.Logger
}

func New(cfg Config, exec *resilience.Executor, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	if exec == nil {
		exec = resilience.NewExecutor(resilience.DefaultConfig(), logger)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	updateURL := strings.TrimSpace(cfg.UpdateEndpoint)
	if updateURL == "" {
		updateURL = cfg.QueryEndpoint
	}
	return &Store{
		queryURL:   cfg.QueryEndpoint,
		updateURL:  updateURL,
		httpClient: &http.Client{Timeout: timeout},
		exec:       exec,
		logger:     logger,
	}
}

// Update sends the update as a single request. Writes are never retried:
// a timed-out request may still have been applied by the store.
func (s *Store) Update(ctx context.Context, update sparql.Update) error {
	body := update.String()
	call := resilience.Call{Operation: operationUpdate, Classifier: resilience.ClassifyHTTPError}

	start := time.Now()
	err := s.exec.Do(ctx, call, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.updateURL, strings.NewReader(body))
		if err != nil {
			return fmt.Errorf("create %s request: %w", operationUpdate, err)
		}
		req.Header.Set("Content-Type", contentTypeUpdate)
		return s.do(req, operationUpdate, nil)
	})
	if err != nil {
		return wrapTemporaryIfNeeded(operationUpdate, err)
	}
	s.logger.Debug("sparql_update_applied",
		"triples", update.TripleCount(),
		"duration_ms", float64(time.Since(start).Microseconds())/1000.0,
	)
	return nil
}

func (s *Store) Select(ctx context.Context, query sparql.Select) (sparql.Results, error) {
	var decoded resultsDocument
	err := s.query(ctx, operationSelect, query.String(), &decoded)
	if err != nil {
		return sparql.Results{}, err
	}
	return decoded.toResults()
}

// Ping checks that the endpoint answers queries.
func (s *Store) Ping(ctx context.Context) error {
	var decoded struct {
		Boolean *bool `json:"boolean"`
	}
	if err := s.query(ctx, operationAskHealth, "ASK {}", &decoded); err != nil {
		return err
	}
	if decoded.Boolean == nil {
		return fmt.Errorf("%s: response has no boolean", operationAskHealth)
	}
	return nil
}

func (s *Store) query(ctx context.Context, operation, text string, out any) error {
	form := url.Values{"query": {text}}.Encode()
	call := resilience.Call{Operation: operation, Idempotent: true, Classifier: resilience.ClassifyHTTPError}

	err := s.exec.Do(ctx, call, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.queryURL, strings.NewReader(form))
		if err != nil {
			return fmt.Errorf("create %s request: %w", operation, err)
		}
		req.Header.Set("Content-Type", contentTypeForm)
		req.Header.Set("Accept", acceptResultsJSON)
		return s.do(req, operation, out)
	})
	return wrapTemporaryIfNeeded(operation, err)
}

// wrapTemporaryIfNeeded tags outages the endpoint may recover from.
func wrapTemporaryIfNeeded(operation string, err error) error {
	if err == nil || domain.IsKind(err, domain.ErrTemporary) {
		return err
	}
	if resilience.IsTransient(err) {
		return domain.WrapError(domain.ErrTemporary, operation, err)
	}
	return err
}

func (s *Store) do(req *http.Request, operation string, out any) error {
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s request: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return &resilience.HTTPStatusError{
			Service:    serviceName,
			Operation:  operation,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(body),
		}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", operation, err)
	}
	return nil
}
