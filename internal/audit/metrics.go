package audit

import "github.com/prometheus/client_golang/prometheus"

var (
	eventsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "loginshield_audit_events_total",
		Help: "Audit events recorded, by type and severity.",
	}, []string{"event_type", "severity"})

	writeFailuresTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "loginshield_audit_write_failures_total",
		Help: "Audit events that could not be written to the sink.",
	})
)

func init() {
	prometheus.MustRegister(eventsTotal, writeFailuresTotal)
}
