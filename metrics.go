package feedbackAuth

// MetricsSink counts engine events. The metrics package provides a
// Prometheus implementation.
type MetricsSink interface {
	Inc(event string)
}

// Metric events in addition to the audit event types, which are counted
// under their own names.
const (
	MetricAuthenticateFailure = "authenticate_failure"
	MetricAuthorizeDenied     = "authorize_denied"
	MetricPasswordRehash      = "password_rehash"
)

type noopMetrics struct{}

func (noopMetrics) Inc(string) {}
