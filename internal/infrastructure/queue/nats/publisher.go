package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/docqa/internal/core/domain"
	"github.com/kirillkom/docqa/internal/infrastructure/resilience"
)

// SessionIndexed is the payload published once a session becomes queryable.
type SessionIndexed struct {
	SessionID  string              `json:"session_id"`
	Filename   string              `json:"filename"`
	Kind       domain.DocumentKind `json:"doc_kind"`
	PageCount  int                 `json:"page_count"`
	ChunkCount int                 `json:"chunk_count"`
	Degraded   bool                `json:"degraded"`
	IndexedAt  time.Time           `json:"indexed_at"`
}

type Publisher struct {
	conn     *nats.Conn
	subject  string
	executor *resilience.Executor
	logger   *slog.Logger
}

type Options struct {
	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor
	Logger               *slog.Logger
}

func New(url, subject string) (*Publisher, error) {
	return NewWithOptions(url, subject, Options{})
}

func NewWithOptions(url, subject string, options Options) (*Publisher, error) {
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
		nats.Name("docqa"),
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
	return &Publisher{
		conn:     conn,
		subject:  subject,
		executor: options.ResilienceExecutor,
		logger:   logger,
	}, nil
}

func (p *Publisher) Close() {
	if p.conn != nil {
		p.conn.Close()
	}
}

func (p *Publisher) PublishSessionIndexed(ctx context.Context, session domain.Session) error {
	payload, err := encodeSessionIndexed(session)
	if err != nil {
		return err
	}
	call := func(_ context.Context) error {
		if err := p.conn.Publish(p.subject, payload); err != nil {
			return fmt.Errorf("nats publish: %w", err)
		}
		return nil
	}

	if p.executor != nil {
		err = p.executor.Execute(ctx, "nats.publish", call, classifyNATSError)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return publishError("publish session event", err)
	}
	return nil
}

// SubscribeSessionIndexed delivers events to handler until ctx is done, then
// drains the subscription.
func (p *Publisher) SubscribeSessionIndexed(ctx context.Context, handler func(context.Context, SessionIndexed) error) error {
	sub, err := p.conn.Subscribe(p.subject, func(msg *nats.Msg) {
		if ctx.Err() != nil {
			return
		}
		event, err := decodeSessionIndexed(msg.Data)
		if err != nil {
			p.logger.Warn("session_event_decode_failed", "error", err)
			return
		}
		if err := handler(ctx, event); err != nil {
			p.logger.Error("session_event_handler_failed", "session_id", event.SessionID, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}
	if err := p.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil && !errors.Is(err, nats.ErrConnectionClosed) {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	return nil
}

func encodeSessionIndexed(session domain.Session) ([]byte, error) {
	payload, err := json.Marshal(SessionIndexed{
		SessionID:  session.ID,
		Filename:   session.Filename,
		Kind:       session.Kind,
		PageCount:  session.PageCount,
		ChunkCount: session.ChunkCount,
		Degraded:   session.Degraded,
		IndexedAt:  session.CreatedAt,
	})
	if err != nil {
		return nil, fmt.Errorf("encode session event: %w", err)
	}
	return payload, nil
}

func decodeSessionIndexed(data []byte) (SessionIndexed, error) {
	var event SessionIndexed
	if err := json.Unmarshal(data, &event); err != nil {
		return SessionIndexed{}, domain.WrapError(domain.ErrMalformedOutput, "decode session event", err)
	}
	if event.SessionID == "" {
		return SessionIndexed{}, fmt.Errorf("%w: session event without session_id", domain.ErrMalformedOutput)
	}
	return event, nil
}
