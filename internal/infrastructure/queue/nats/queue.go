// Package nats announces registered uploads on a NATS subject so downstream
// services can react to new process models.
package nats

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/bpmn-lod-mapper/internal/core/rdf"
	"github.com/kirillkom/bpmn-lod-mapper/internal/infrastructure/resilience"
)

// UploadRegistered is the message body published for every stored upload.
type UploadRegistered struct {
	UploadID     string    `json:"uploadId"`
	UploadURI    string    `json:"uploadUri"`
	RegisteredAt time.Time `json:"registeredAt"`
}

type publisher interface {
	Publish(subject string, data []byte) error
}

type Queue struct {
	conn     *nats.Conn
	pub      publisher
	subject  string
	executor *resilience.Executor
	logger   *slog.Logger
	now      func() time.Time
}

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
	Logger               *slog.Logger
}

func New(url, subject string, options Options) (*Queue, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := nats.Connect(
		url,
		nats.Name("bpmn-lod-mapper"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	q := newQueue(conn, subject, options.ResilienceExecutor, logger)
	q.conn = conn
	return q, nil
}

func newQueue(pub publisher, subject string, executor *resilience.Executor, logger *slog.Logger) *Queue {
	return &Queue{
		pub:      pub,
		subject:  subject,
		executor: executor,
		logger:   logger,
		now:      time.Now,
	}
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

func (q *Queue) PublishUploadRegistered(ctx context.Context, uploadID string) error {
	body, err := json.Marshal(UploadRegistered{
		UploadID:     uploadID,
		UploadURI:    rdf.UploadResourceURI(uploadID),
		RegisteredAt: q.now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal upload event: %w", err)
	}

	call := func(_ context.Context) error {
		if err := q.pub.Publish(q.subject, body); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}

	if q.executor != nil {
		err = q.executor.Do(ctx, resilience.Call{
			Operation:  "nats.publish",
			Idempotent: true,
			Classifier: classifyNATSError,
		}, call)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return wrapTemporaryIfNeeded(err)
	}
	return nil
}

// SubscribeUploadRegistered delivers events to handler until ctx is cancelled,
// then drains the subscription.
func (q *Queue) SubscribeUploadRegistered(ctx context.Context, handler func(context.Context, UploadRegistered) error) error {
	if q.conn == nil {
		return fmt.Errorf("nats subscribe: queue has no connection")
	}
	sub, err := q.conn.Subscribe(q.subject, func(msg *nats.Msg) {
		if ctx.Err() != nil {
			return
		}
		var event UploadRegistered
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			q.logger.Warn("upload_event_malformed", "error", err)
			return
		}
		if err := handler(ctx, event); err != nil {
			q.logger.Error("upload_event_handler_failed", "upload_id", event.UploadID, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := q.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := q.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}
