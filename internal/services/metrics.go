// Package services – Prometheus instrumentation for the messaging core.
//
// Label cardinality is kept bounded: outcomes and trigger types are small
// fixed enumerations.
package services

import "github.com/prometheus/client_golang/prometheus"

var (
	// smsDispatched counts outbound dispatch attempts by terminal status
	// (sent, simulated, failed).
	smsDispatched = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sms_outbound_total",
			Help: "Total outbound SMS dispatch attempts by terminal status.",
		},
		[]string{"status"},
	)

	// smsInbound counts routed inbound messages and drops.
	smsInbound = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sms_inbound_total",
			Help: "Total inbound SMS webhook deliveries by routing outcome.",
		},
		[]string{"outcome"}, // routed, dropped, duplicate
	)

	// automationFires counts automation log outcomes per trigger type.
	automationFires = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "automation_fires_total",
			Help: "Automation rule evaluation outcomes by trigger and status.",
		},
		[]string{"trigger", "status"},
	)
)

func init() {
	prometheus.MustRegister(smsDispatched, smsInbound, automationFires)
}
