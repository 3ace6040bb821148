package handler

import (
	"context"

	"coaching-rag-be/internal/pkg/logger"
	"coaching-rag-be/pkg/events"
	pktNats "coaching-rag-be/pkg/nats"
)

const (
	auditModule  = "AUDIT"
	auditDurable = "audit-trail"
)

// AuditHandler copies audit events from NATS into the isolated audit log.
type AuditHandler struct {
	subscriber *pktNats.Subscriber
	logger     logger.ILogger
}

func NewAuditHandler(subscriber *pktNats.Subscriber, auditLogger logger.ILogger) *AuditHandler {
	return &AuditHandler{
		subscriber: subscriber,
		logger:     auditLogger,
	}
}

// Start subscribes to every audit subject. It is a no-op without a subscriber.
func (h *AuditHandler) Start(ctx context.Context) error {
	if h.subscriber == nil {
		return nil
	}
	return h.subscriber.Subscribe(ctx, pktNats.Subject(">"), auditDurable, h.Handle)
}

func (h *AuditHandler) Handle(_ context.Context, event events.Event) error {
	details := map[string]interface{}{
		"event_type":  event.EventType(),
		"occurred_at": event.Timestamp(),
	}
	for k, v := range event.Payload() {
		details[k] = v
	}

	switch event.EventType() {
	case events.TypeTurnPersistenceFailed:
		h.logger.Warn(auditModule, "Conversation turn was not persisted", details)
	case events.TypeRetentionSweepCompleted:
		h.logger.Info(auditModule, "Retention sweep completed", details)
	default:
		h.logger.Info(auditModule, "Audit event", details)
	}
	return nil
}
