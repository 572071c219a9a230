// Package telemetry ships pipeline events to analytics without ever blocking an extraction
package telemetry

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/alchemorsel/cookcard/internal/ports/outbound"
)

// Envelope is the wire form of one analytics event
type Envelope struct {
	ID      string         `json:"id"`
	Type    string         `json:"type"`
	Source  string         `json:"source"`
	At      time.Time      `json:"at"`
	Payload map[string]any `json:"payload"`
}

// NewEnvelope stamps an event with an id and time
func NewEnvelope(source, eventType string, fields map[string]any) Envelope {
	return Envelope{
		ID:      uuid.NewString(),
		Type:    eventType,
		Source:  source,
		At:      time.Now().UTC(),
		Payload: fields,
	}
}

// partitionKey keeps one requester's events ordered on a single partition
func (e Envelope) partitionKey() string {
	if id, ok := e.Payload["requester_id"].(string); ok && id != "" {
		return id
	}
	if id, ok := e.Payload["extraction_id"].(string); ok && id != "" {
		return id
	}
	return e.Type
}

// LogEmitter writes every event as a structured log line
type LogEmitter struct {
	logger *zap.Logger
}

var _ outbound.TelemetryEmitter = (*LogEmitter)(nil)

// NewLogEmitter creates a log-only emitter
func NewLogEmitter(logger *zap.Logger) *LogEmitter {
	return &LogEmitter{logger: logger.Named("telemetry")}
}

// Emit logs the event at info level
func (l *LogEmitter) Emit(_ context.Context, eventType string, fields map[string]any) {
	zf := make([]zap.Field, 0, len(fields)+1)
	zf = append(zf, zap.String("event", eventType))
	for k, v := range fields {
		zf = append(zf, zap.Any(k, v))
	}
	l.logger.Info("telemetry event", zf...)
}

// Multi fans an event out to several emitters
type Multi []outbound.TelemetryEmitter

var _ outbound.TelemetryEmitter = Multi(nil)

// Emit forwards to every non-nil emitter
func (m Multi) Emit(ctx context.Context, eventType string, fields map[string]any) {
	for _, e := range m {
		if e != nil {
			e.Emit(ctx, eventType, fields)
		}
	}
}
