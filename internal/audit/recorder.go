package audit

import (
	"context"
	"log/slog"
	"time"

	"clearclaim/internal/platform/metrics"
)

// Recorder accepts events from domain logic and hands them to the worker
// through a buffered inbox. Record never blocks and never returns an error:
// when the inbox is full the event is dropped, counted, and logged.
type Recorder struct {
	inbox   chan Event
	logger  *slog.Logger
	metrics *metrics.Metrics
}

const defaultInboxSize = 1024

func NewRecorder(logger *slog.Logger, m *metrics.Metrics) *Recorder {
	return &Recorder{
		inbox:   make(chan Event, defaultInboxSize),
		logger:  logger,
		metrics: m,
	}
}

// Record enqueues an event, stamping the timestamp if unset.
func (r *Recorder) Record(ctx context.Context, event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	select {
	case r.inbox <- event:
	default:
		if r.metrics != nil {
			r.metrics.AuditDropped.Inc()
		}
		r.logger.WarnContext(ctx, "audit inbox full, event dropped",
			"action", event.Action,
			"claim_id", event.ClaimID.String(),
		)
	}
}

// Inbox exposes the receive side for the worker.
func (r *Recorder) Inbox() <-chan Event { return r.inbox }
