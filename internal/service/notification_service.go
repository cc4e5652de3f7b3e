package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/spec-kit/query-desk/internal/config"
	"github.com/spec-kit/query-desk/internal/events"
	"github.com/spec-kit/query-desk/internal/observability"
)

// NotificationService handles emitting notifications for domain events.
type NotificationService struct {
	dispatcher events.Dispatcher
	logger     *zap.Logger
	metrics    *observability.Metrics
	cfg        config.NotificationConfig
}

// NewNotificationService creates the service.
func NewNotificationService(dispatcher events.Dispatcher, logger *zap.Logger, metrics *observability.Metrics, cfg config.NotificationConfig) *NotificationService {
	return &NotificationService{
		dispatcher: dispatcher,
		logger:     logger,
		metrics:    metrics,
		cfg:        cfg,
	}
}

// RegisterHandlers subscribes to events.
func (n *NotificationService) RegisterHandlers() {
	if n.dispatcher == nil {
		return
	}
	n.dispatcher.Subscribe(events.EventQuerySubmitted, n.handleQuerySubmitted)
	n.dispatcher.Subscribe(events.EventQueryClosed, n.handleQueryClosed)
}

func (n *NotificationService) handleQuerySubmitted(ctx context.Context, event events.Event) error {
	n.metrics.RecordQueryEvent(string(event.Type))
	n.logger.Info("QuerySubmitted",
		zap.String("query_id", event.QueryID),
		zap.String("by", event.Actor.Username),
		zap.Any("payload", event.Payload))
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) handleQueryClosed(ctx context.Context, event events.Event) error {
	n.metrics.RecordQueryEvent(string(event.Type))
	n.logger.Info("QueryClosed",
		zap.String("query_id", event.QueryID),
		zap.String("by", event.Actor.Username),
		zap.Any("payload", event.Payload))
	if payload, ok := event.Payload.(events.QueryClosedPayload); ok {
		n.sendEmailNotificationStub(ctx, event, payload.ClientEmail)
	}
	n.sendWebhookNotificationStub(ctx, event)
	return nil
}

func (n *NotificationService) sendEmailNotificationStub(_ context.Context, event events.Event, to string) {
	if strings.TrimSpace(n.cfg.EmailFrom) == "" || to == "" {
		return
	}
	n.logger.Debug("sendEmailNotificationStub",
		zap.String("from", n.cfg.EmailFrom),
		zap.String("to", to),
		zap.String("query_id", event.QueryID),
		zap.String("event_type", string(event.Type)))
}

func (n *NotificationService) sendWebhookNotificationStub(_ context.Context, event events.Event) {
	if strings.TrimSpace(n.cfg.WebhookURL) == "" {
		return
	}
	n.logger.Debug("sendWebhookNotificationStub",
		zap.String("url", n.cfg.WebhookURL),
		zap.String("query_id", event.QueryID),
		zap.String("event_type", string(event.Type)))
}
