package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Pipeline metrics
var (
	ActionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "warden_actions_total",
		Help: "Total number of moderation actions run through the pipeline",
	}, []string{"action", "status"})

	DMTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "warden_dm_total",
		Help: "Total number of direct messages sent to moderated users",
	}, []string{"action", "result"})

	ModLogPostsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "warden_modlog_posts_total",
		Help: "Total number of mod-log messages sent or edited",
	}, []string{"status"})
)

// Audit log metrics
var (
	AuditLogEventsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "warden_auditlog_events_total",
		Help: "Total number of audit log entries processed",
	}, []string{"action", "outcome"})
)

// Case maintenance metrics
var (
	CasesDeletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "warden_cases_deleted_total",
		Help: "Total number of cases deleted",
	})

	CaseReasonsUpdatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "warden_case_reasons_updated_total",
		Help: "Total number of case reasons changed",
	})

	TempBansExpiredTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "warden_tempbans_expired_total",
		Help: "Total number of temporary bans lifted by the expiry worker",
	}, []string{"status"})
)

// Command metrics
var (
	CommandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "warden_commands_total",
		Help: "Total number of slash command invocations",
	}, []string{"command", "status"})
)

// Gauges updated periodically by collector
var (
	TempBansActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "warden_tempbans_active",
		Help: "Number of temporary bans waiting to expire",
	})

	GatewayConnectionState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "warden_gateway_connection_state",
		Help: "Gateway connection state (1=connected, 0=disconnected)",
	})
)
