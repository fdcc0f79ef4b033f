package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ReportTransitions counts committed report commands by command and resulting status.
	ReportTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "casedesk_report_transitions_total",
		Help: "Total number of committed report commands",
	}, []string{"command", "to_status"})

	// ReportCommandFailures counts rejected report commands by command and error code.
	ReportCommandFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "casedesk_report_command_failures_total",
		Help: "Total number of rejected report commands",
	}, []string{"command", "code"})

	// AttachmentBytes observes accepted upload sizes.
	AttachmentBytes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "casedesk_attachment_upload_bytes",
		Help:    "Size of accepted attachment uploads in bytes",
		Buckets: prometheus.ExponentialBuckets(1024, 4, 8),
	})

	// AttachmentOperations counts attachment operations by operation and outcome.
	AttachmentOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "casedesk_attachment_operations_total",
		Help: "Total attachment operations by outcome",
	}, []string{"operation", "outcome"})

	// RedisErrors counts Redis errors by command.
	RedisErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "casedesk_redis_errors_total",
		Help: "Total number of Redis errors by command",
	}, []string{"command"})

	// CacheLookups counts report cache lookups by result.
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "casedesk_cache_lookups_total",
		Help: "Report cache lookups by result",
	}, []string{"result"})
)
