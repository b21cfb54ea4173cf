// Package metrics holds the Prometheus collectors of the service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	ActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_active_connections",
			Help: "Number of in-flight HTTP requests",
		},
	)

	leadsCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_leads_created_total",
			Help: "Leads created through intake",
		},
		[]string{"source"},
	)

	leadTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_lead_transitions_total",
			Help: "Leads moved to a workflow state",
		},
		[]string{"state"},
	)

	notificationsSent = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_notifications_total",
			Help: "Lead emails handed to the mail transport",
		},
		[]string{"kind", "status"},
	)

	intakeRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crm_intake_rejected_total",
			Help: "Intake submissions refused before persistence",
		},
		[]string{"reason"},
	)
)

// RecordLeadCreated counts a new lead; source is "website" or "staff".
func RecordLeadCreated(source string) {
	leadsCreated.WithLabelValues(source).Inc()
}

func RecordTransition(state string, n int64) {
	leadTransitions.WithLabelValues(state).Add(float64(n))
}

func RecordNotification(kind, status string) {
	notificationsSent.WithLabelValues(kind, status).Inc()
}

func RecordIntakeRejected(reason string) {
	intakeRejected.WithLabelValues(reason).Inc()
}
