// Package metrics provides Prometheus metrics for the leave engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Labels stay low-cardinality: category names come from configuration,
// never member or channel IDs.
var (
	// LeaveAdmitTotal counts admitted leave requests by category.
	LeaveAdmitTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "izin_leave_admit_total",
		Help: "Total number of admitted leave requests, by category.",
	}, []string{"category"})

	// LeaveRejectTotal counts rejected admissions by reason.
	LeaveRejectTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "izin_leave_reject_total",
		Help: "Total number of rejected leave requests, by category and reason.",
	}, []string{"category", "reason"})

	// LeaveResolvedTotal counts leaves that reached a terminal status.
	LeaveResolvedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "izin_leave_resolved_total",
		Help: "Total number of resolved leave requests, by category and terminal status.",
	}, []string{"category", "status"})

	// LeaveActive tracks currently active leaves by category across all groups.
	LeaveActive = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "izin_leave_active",
		Help: "Current number of active leave requests, by category.",
	}, []string{"category"})

	// EscalationDeliveryTotal counts escalation deliveries by outcome
	// (delivered, delivery_failed, lookup_failed).
	EscalationDeliveryTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "izin_escalation_delivery_total",
		Help: "Total number of escalation delivery attempts, by outcome.",
	}, []string{"outcome"})
)

// RecordAdmit increments the admit counter and the active gauge.
func RecordAdmit(category string) {
	LeaveAdmitTotal.WithLabelValues(category).Inc()
	LeaveActive.WithLabelValues(category).Inc()
}

// RecordReject increments the reject counter.
func RecordReject(category, reason string) {
	LeaveRejectTotal.WithLabelValues(category, reason).Inc()
}

// RecordResolved increments the resolved counter and decrements the active gauge.
func RecordResolved(category, status string) {
	LeaveResolvedTotal.WithLabelValues(category, status).Inc()
	LeaveActive.WithLabelValues(category).Dec()
}

// RecordDelivery increments the escalation delivery counter.
func RecordDelivery(outcome string) {
	EscalationDeliveryTotal.WithLabelValues(outcome).Inc()
}
