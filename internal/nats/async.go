package nats

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/panjf2000/ants/v2"
	"go.uber.org/zap"

	"github.com/capitalize-ai/lead-automation/internal/model"
	"github.com/capitalize-ai/lead-automation/pkg/logger"
	"github.com/capitalize-ai/lead-automation/pkg/metrics"
)

// EventSink publishes a single event synchronously.
type EventSink interface {
	PublishEvent(ctx context.Context, event *model.LifecycleEvent) (uint64, error)
}

// AsyncConfig configures the publishing pool.
type AsyncConfig struct {
	PoolSize       int
	PublishTimeout time.Duration
}

// AsyncPublisher publishes lifecycle events on a bounded worker pool so that
// request handlers never wait on the broker. When the pool is saturated the
// event is published inline.
type AsyncPublisher struct {
	sink    EventSink
	pool    *ants.Pool
	timeout time.Duration
	logger  *logger.Logger
}

type antsLogger struct {
	log *logger.Logger
}

func (a antsLogger) Printf(format string, args ...any) {
	a.log.Info(fmt.Sprintf(format, args...))
}

// NewAsyncPublisher creates the pool.
func NewAsyncPublisher(sink EventSink, cfg AsyncConfig, log *logger.Logger) (*AsyncPublisher, error) {
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = 16
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = 5 * time.Second
	}

	named := log.With(zap.String("component", "event_publisher"))
	pool, err := ants.NewPool(cfg.PoolSize,
		ants.WithNonblocking(true),
		ants.WithLogger(antsLogger{log: named}),
		ants.WithPanicHandler(func(p any) {
			named.Error("panic in event publisher", zap.Any("panic", p), zap.Stack("stack"))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create event publisher pool: %w", err)
	}

	return &AsyncPublisher{
		sink:    sink,
		pool:    pool,
		timeout: cfg.PublishTimeout,
		logger:  named,
	}, nil
}

// Publish hands the event to the pool. The request context's values are kept
// but its cancellation is not, so events outlive the request.
func (p *AsyncPublisher) Publish(ctx context.Context, event *model.LifecycleEvent) {
	detached := context.WithoutCancel(ctx)

	err := p.pool.Submit(func() {
		metrics.EventPoolRunning.Set(float64(p.pool.Running()))
		p.publish(detached, event)
	})
	if err == nil {
		return
	}

	if errors.Is(err, ants.ErrPoolOverload) {
		p.logger.Warn("event pool saturated, publishing inline", zap.String("type", string(event.Type)))
	} else {
		p.logger.Warn("event pool unavailable, publishing inline", zap.Error(err))
	}
	p.publish(detached, event)
}

func (p *AsyncPublisher) publish(ctx context.Context, event *model.LifecycleEvent) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	seq, err := p.sink.PublishEvent(ctx, event)
	metrics.RecordEventPublish(string(event.Type), err)
	if err != nil {
		p.logger.Error("failed to publish lifecycle event",
			zap.String("event_id", event.ID),
			zap.String("type", string(event.Type)),
			zap.String("contact_id", event.ContactID),
			zap.Error(err),
		)
		return
	}

	p.logger.Debug("published lifecycle event",
		zap.String("event_id", event.ID),
		zap.String("type", string(event.Type)),
		zap.Uint64("sequence", seq),
	)
}

// Close waits up to timeout for in-flight publishes and releases the pool.
func (p *AsyncPublisher) Close(timeout time.Duration) error {
	return p.pool.ReleaseTimeout(timeout)
}
