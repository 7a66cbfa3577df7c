// Package metrics exposes the portal's Prometheus counters.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	Registrations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "educlass",
		Name:      "registrations_total",
		Help:      "Registration attempts by outcome.",
	}, []string{"result"})

	Logins = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "educlass",
		Name:      "logins_total",
		Help:      "Login attempts by role and outcome.",
	}, []string{"role", "result"})

	ConfirmationsFailed = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "educlass",
		Name:      "confirmation_failures_total",
		Help:      "Confirmation emails that could not be dispatched.",
	})

	CSVExports = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "educlass",
		Name:      "csv_exports_total",
		Help:      "Roster CSV downloads.",
	})
)

// RegisterGauges publishes live gauges backed by the given funcs. Call once.
func RegisterGauges(browserSessions, rosterSize func() float64) {
	prometheus.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "educlass",
			Name:      "browser_sessions",
			Help:      "Browser sessions currently held in memory.",
		}, browserSessions),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "educlass",
			Name:      "roster_students",
			Help:      "Students in the roster.",
		}, rosterSize),
	)
}
