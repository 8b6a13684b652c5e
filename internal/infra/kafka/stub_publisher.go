package kafka

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/abelngansop-dot/studio-sub000/internal/core/domain"
	"github.com/abelngansop-dot/studio-sub000/internal/core/port"
	"github.com/abelngansop-dot/studio-sub000/internal/infra/logger"
)

// StubPublisher logs audit events instead of sending them to Kafka. Used when no brokers are configured.
type StubPublisher struct {
	log *zap.Logger
}

// NewStubPublisher constructs a development-friendly audit publisher.
func NewStubPublisher(log *zap.Logger) *StubPublisher {
	if log == nil {
		log = zap.NewNop()
	}
	return &StubPublisher{log: log}
}

// PublishPermissionDenied logs permission.denied events.
func (p *StubPublisher) PublishPermissionDenied(_ context.Context, event domain.PermissionDeniedEvent) error {
	at := event.OccurredAt
	if at.IsZero() {
		at = time.Now().UTC()
	}

	p.log.Info("stub event published",
		zap.String("event_type", permissionDeniedEventKey),
		zap.String("subject_id", event.SubjectID),
		zap.Time("timestamp", at.UTC()),
		zap.String("path", event.Path),
		zap.String("operation", string(event.Operation)),
		zap.Strings("payload_keys", logger.PayloadKeys(event.RequestPayload)),
	)
	return nil
}

var _ port.AuditPublisher = (*StubPublisher)(nil)
