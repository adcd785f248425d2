package feedbackAuth

import (
	"io"

	"github.com/sirupsen/logrus"

	"github.com/MrEthical07/feedbackAuth/internal/audit"
)

// AuditEvent is one security-relevant account event.
type AuditEvent = audit.Event

// AuditSink receives audit events from the engine's async dispatcher.
type AuditSink = audit.Sink

// Audit event types.
const (
	AuditRegister       = audit.EventRegister
	AuditLoginSuccess   = audit.EventLoginSuccess
	AuditLoginFailure   = audit.EventLoginFailure
	AuditLoginThrottled = audit.EventLoginThrottled
	AuditRefreshSuccess = audit.EventRefreshSuccess
	AuditRefreshFailure = audit.EventRefreshFailure
	AuditRefreshReuse   = audit.EventRefreshReuse
	AuditLogout         = audit.EventLogout
	AuditPasswordChange = audit.EventPasswordChange
	AuditProfileUpdate  = audit.EventProfileUpdate
	AuditRoleChange     = audit.EventRoleChange
	AuditDeactivate     = audit.EventDeactivate
	AuditActivate       = audit.EventActivate
)

// NewChannelSink buffers events in a channel, mostly for tests.
func NewChannelSink(buffer int) *audit.ChannelSink {
	return audit.NewChannelSink(buffer)
}

// NewJSONWriterSink writes one JSON object per event to w.
func NewJSONWriterSink(w io.Writer) *audit.JSONWriterSink {
	return audit.NewJSONWriterSink(w)
}

// NewLogSink writes events through logger.
func NewLogSink(logger logrus.FieldLogger) *audit.LogSink {
	return audit.NewLogSink(logger)
}

// MultiAuditSink delivers each event to every sink in order.
func MultiAuditSink(sinks ...AuditSink) AuditSink {
	return audit.MultiSink(sinks)
}
