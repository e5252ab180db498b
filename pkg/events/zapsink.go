package events

import (
	"context"

	"go.uber.org/zap"
)

// ZapAuditSink writes audit events to a zap logger
type ZapAuditSink struct {
	logger *zap.Logger
}

func NewZapAuditSink(logger *zap.Logger) *ZapAuditSink {
	return &ZapAuditSink{logger: logger.Named("audit")}
}

func (s *ZapAuditSink) Record(ctx context.Context, event Event) error {
	fields := []zap.Field{
		zap.String("kind", string(event.Kind)),
		zap.Time("at", event.At),
		zap.String("subject", event.Subject),
	}
	for k, v := range event.Fields {
		fields = append(fields, zap.Any(k, v))
	}
	s.logger.Info("Audit event", fields...)
	return nil
}
