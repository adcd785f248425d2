package feedbackAuth

import (
	"context"
	"time"

	"github.com/MrEthical07/feedbackAuth/internal/audit"
)

// emit stamps event with time and client IP, counts it and queues it for
// the audit sink.
func (e *Engine) emit(ctx context.Context, event audit.Event) {
	if e == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}
	if event.IP == "" {
		event.IP = clientIPFromContext(ctx)
	}
	if e.metrics != nil {
		e.metrics.Inc(event.Type)
	}
	e.audit.Emit(ctx, event)
}
