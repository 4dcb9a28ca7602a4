package event

import (
	"context"

	appcert "github.com/afp/backend/internal/application/certification"
	"go.uber.org/zap"
)

// LogPublisher logs events instead of sending them. It is used when Kafka
// is disabled.
type LogPublisher struct {
	logger *zap.Logger
}

// NewLogPublisher creates a LogPublisher
func NewLogPublisher(logger *zap.Logger) *LogPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogPublisher{logger: logger.Named("events")}
}

// Publish logs the event at info level
func (p *LogPublisher) Publish(_ context.Context, e appcert.FileEvent) error {
	p.logger.Info("file event",
		zap.String("event_type", e.Type),
		zap.String("source_file", e.SourceFile),
		zap.String("state", string(e.State)),
		zap.Int("rows", e.Rows),
		zap.String("total_certified", e.TotalCertified.String()),
		zap.String("reason", e.Reason),
	)
	return nil
}

var _ appcert.EventPublisher = (*LogPublisher)(nil)
