package trinity

import (
	"go.uber.org/zap"
)

// Outcome tags the terminal state of a request for telemetry purposes.
type Outcome string

const (
	OutcomeSuccess   Outcome = "success"
	OutcomeFailed    Outcome = "failed"
	OutcomeCancelled Outcome = "cancelled"
)

// TelemetryRecord is emitted once per request by the Orchestrator's
// post-execution guards (spec §4.6).
type TelemetryRecord struct {
	RequestID         string
	Tier              Tier
	TotalTokens       int
	DowngradeDetected bool
	LatencyMs         int64
	ReflectionApplied bool
	Outcome           Outcome
}

// TelemetrySink receives telemetry records. Implementations must not block
// the caller for long — the orchestrator treats emission as best-effort.
type TelemetrySink interface {
	Emit(rec TelemetryRecord)
}

// ChannelSink forwards records onto a buffered channel, dropping (with a
// warn log) when the channel is full. This mirrors the teacher's
// non-blocking-send-with-warn-drop idiom for event channels
// (internal/domain/service/sanitize.go's emitEvent).
type ChannelSink struct {
	ch     chan TelemetryRecord
	logger *zap.Logger
}

// NewChannelSink creates a sink with the given buffer size.
func NewChannelSink(bufferSize int, logger *zap.Logger) *ChannelSink {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	return &ChannelSink{ch: make(chan TelemetryRecord, bufferSize), logger: logger}
}

// Emit implements TelemetrySink.
func (s *ChannelSink) Emit(rec TelemetryRecord) {
	select {
	case s.ch <- rec:
	default:
		s.logger.Warn("telemetry channel full, dropping record",
			zap.String("requestId", rec.RequestID),
			zap.String("tier", string(rec.Tier)),
		)
	}
}

// Records exposes the channel for a consumer loop to drain.
func (s *ChannelSink) Records() <-chan TelemetryRecord {
	return s.ch
}
