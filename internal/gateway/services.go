package gateway

// Service names resolved from the AppContext at Start.
const (
	ServiceSessions    = "session.store"
	ServiceBridge      = "stream.bridge"
	ServiceFailover    = "provider.failover"
	ServiceScheduler   = "cron.scheduler"
	ServiceTranscripts = "transcript.archive"
	ServiceAudit       = "security.audit"
	ServiceRedactor    = "security.redactor"
	ServiceConfig      = "config.view"
	ServiceMetrics     = "gateway.metrics"
	ServiceLimiter     = "gateway.chat_limiter"
)
